package search

import (
	"context"
	"fmt"
	"sync"

	"rosterclaim/pkg/platform/sentinel"
)

// InMemory is a process-local index that keeps insertion order, for tests and
// single-node development.
type InMemory struct {
	mu      sync.RWMutex
	indexes map[string]*memIndex
}

type memIndex struct {
	order []string
	docs  map[string]Document
}

// NewInMemory creates an empty index.
func NewInMemory() *InMemory {
	return &InMemory{indexes: make(map[string]*memIndex)}
}

func (m *InMemory) Search(_ context.Context, q Query) ([]Document, error) {
	if q.Index == "" {
		return nil, fmt.Errorf("search index is required")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[q.Index]
	if !ok {
		return nil, nil
	}
	var hits []Document
	for _, id := range idx.order {
		doc := idx.docs[id]
		if !matches(doc, q) {
			continue
		}
		hits = append(hits, doc.Project(q.Fields))
		if len(hits) >= q.limit() {
			break
		}
	}
	return hits, nil
}

func (m *InMemory) GetByID(_ context.Context, index, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if idx, ok := m.indexes[index]; ok {
		if doc, ok := idx.docs[id]; ok {
			return doc.Project(nil), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Upsert merges doc into the stored document, creating it when absent.
func (m *InMemory) Upsert(_ context.Context, index, id string, doc Document) error {
	if index == "" || id == "" {
		return fmt.Errorf("index and id are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indexes[index]
	if !ok {
		idx = &memIndex{docs: make(map[string]Document)}
		m.indexes[index] = idx
	}
	existing, ok := idx.docs[id]
	if !ok {
		existing = Document{}
		idx.order = append(idx.order, id)
	}
	for k, v := range doc {
		existing[k] = v
	}
	existing[FieldID] = id
	idx.docs[id] = existing
	return nil
}
