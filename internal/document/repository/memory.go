package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/docindex/docindex/internal/document"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepo is an in-memory repository used when no MongoDB URI is
// configured and in unit tests. Ids come from the same ObjectID generator the
// Mongo store uses, so ordering semantics match.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*document.Document
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*document.Document)}
}

func (m *MemoryRepo) Create(_ context.Context, doc *document.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = primitive.NewObjectID().Hex()
	}
	cp := *doc
	m.store[doc.ID] = &cp
	return doc.ID, nil
}

func (m *MemoryRepo) Update(_ context.Context, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[doc.ID]; !ok {
		return ErrNotFound
	}
	cp := *doc
	m.store[doc.ID] = &cp
	return nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.store[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) FindByFileName(ctx context.Context, name string) (*document.Document, error) {
	list, _ := m.List(ctx)
	for _, d := range list {
		if d.FileName == name {
			return d, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) List(_ context.Context) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*document.Document, 0, len(m.store))
	for _, d := range m.store {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepo) ListIndexedBefore(ctx context.Context, cutoff time.Time, limit int, exclude []string) ([]*document.Document, error) {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	list, _ := m.List(ctx)
	out := []*document.Document{}
	for _, d := range list {
		if limit > 0 && len(out) >= limit {
			break
		}
		if _, ok := skip[d.ID]; ok {
			continue
		}
		if d.IndexedAt.Before(cutoff) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MemoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}
