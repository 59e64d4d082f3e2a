// Package filecache is the on-disk filing cache shared across questions.
// Entries are keyed by identifier (company+form+date) and written with an
// atomic replace so a read never observes a partially-written entry.
package filecache

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/sys/atomicwriter"
)

type Store struct {
	dir string
}

// New creates the cache directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Get returns the cached bytes for key, or ok=false if the key was never
// written (or its write never committed).
func (s *Store) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return data, true, nil
}

// Put commits data under key. The write is atomic: concurrent readers see
// either the previous entry or the full new one, never a partial write.
func (s *Store) Put(key string, data []byte) error {
	if err := atomicwriter.WriteFile(s.path(key), data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// path maps an arbitrary key to a filename. The sanitized key keeps cache
// contents inspectable; the hash suffix keeps distinct keys distinct.
func (s *Store) path(key string) string {
	h := fnv.New32a()
	h.Write([]byte(key))

	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if len(name) > 120 {
		name = name[:120]
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s-%08x", name, h.Sum32()))
}
