// Package tools provides the financial tool providers registered with the
// assessor: SEC EDGAR full-text search, stock quote lookup, and a cached
// filing fetch/read pair backed by a per-run document store.
package tools

import (
	"sort"
	"sync"
)

// DocumentStore holds fetched filing text for the duration of one run,
// keyed by caller-chosen labels. It is shared across questions and cleared
// on reset. Safe for concurrent use.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]string
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]string)}
}

// Put stores text under key, replacing any previous document.
func (s *DocumentStore) Put(key, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = text
}

// Get returns the document under key, if present.
func (s *DocumentStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.docs[key]
	return text, ok
}

// Keys returns the stored keys in sorted order.
func (s *DocumentStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear drops all stored documents.
func (s *DocumentStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]string)
}
