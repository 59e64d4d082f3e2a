package filecache

import (
	"bytes"
	"crypto/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripIsByteIdentical(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	payload := make([]byte, 64*1024)
	_, err = rand.Read(payload)
	require.NoError(t, err)

	require.NoError(t, store.Put("nvda-10k-2024", payload))

	got, ok, err := store.Get("nvda-10k-2024")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, bytes.Equal(payload, got))
}

func TestAbsentKey(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	got, ok, err := store.Get("never-written")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestOverwriteReplacesContent(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put("k", []byte("first")))
	require.NoError(t, store.Put("k", []byte("second")))

	got, ok, err := store.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("second"), got)
}

func TestAwkwardKeysAreSafe(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	keys := []string{
		"https://www.sec.gov/Archives/edgar/data/1045810/000104581024000029/nvda-20240128.htm",
		"../escape/attempt",
		"key with spaces & symbols!",
	}
	for _, key := range keys {
		require.NoError(t, store.Put(key, []byte(key)))
	}
	for _, key := range keys {
		got, ok, err := store.Get(key)
		require.NoError(t, err)
		require.True(t, ok, "key %q", key)
		assert.Equal(t, []byte(key), got)
	}
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put("shared", []byte("v0")))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, ok, err := store.Get("shared")
				assert.NoError(t, err)
				if ok {
					// Atomic replace: readers see a complete value, never
					// a partial write.
					assert.True(t, bytes.HasPrefix(got, []byte("v")))
				}
			}
		}()
	}
	for j := 0; j < 20; j++ {
		require.NoError(t, store.Put("shared", []byte("v1")))
	}
	wg.Wait()
}
