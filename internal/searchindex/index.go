// Package searchindex keeps the full-text index of document content. The
// metadata store stays the source of truth; the index only maps keywords to
// document ids.
package searchindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// ErrClosed indicates an operation on a closed index.
var ErrClosed = errors.New("search index is closed")

// Entry is the searchable projection of a document.
type Entry struct {
	ID       string `json:"-"`
	Title    string `json:"title"`
	FileName string `json:"file_name"`
	MIMEType string `json:"mime_type"`
	Content  string `json:"content"`
}

type Index interface {
	Upsert(ctx context.Context, e Entry) error
	Delete(ctx context.Context, id string) error
	// Search returns up to limit matching ids, best match first. An empty
	// keyword matches every entry.
	Search(ctx context.Context, keyword string, limit int) ([]string, error)
	Count(ctx context.Context) (uint64, error)
	// Reset drops every entry.
	Reset(ctx context.Context) error
	Close() error
}

// Bleve is an Index backed by a bleve index on disk, or in memory when path
// is empty.
type Bleve struct {
	mu    sync.RWMutex
	path  string
	index bleve.Index
}

// Open opens the index at path, creating it when missing.
func Open(path string) (*Bleve, error) {
	if path == "" {
		return NewMemory()
	}
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, buildMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return &Bleve{path: path, index: idx}, nil
}

func NewMemory() (*Bleve, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, err
	}
	return &Bleve{index: idx}, nil
}

func buildMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = "en"

	doc := bleve.NewDocumentMapping()
	for _, name := range []string{"title", "file_name", "content"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = "en"
		doc.AddFieldMappingsAt(name, f)
	}
	mime := bleve.NewKeywordFieldMapping()
	mime.IncludeInAll = false
	doc.AddFieldMappingsAt("mime_type", mime)

	m.DefaultMapping = doc
	return m
}

func (b *Bleve) Upsert(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return ErrClosed
	}
	return b.index.Index(e.ID, e)
}

// Delete removes id. Deleting an id that is not indexed is not an error.
func (b *Bleve) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return ErrClosed
	}
	return b.index.Delete(id)
}

func (b *Bleve) Search(ctx context.Context, keyword string, limit int) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return nil, ErrClosed
	}
	var q query.Query
	if keyword == "" {
		q = bleve.NewMatchAllQuery()
	} else {
		q = bleve.NewMatchQuery(keyword)
	}
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

func (b *Bleve) Count(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return 0, ErrClosed
	}
	return b.index.DocCount()
}

// Reset closes the index, removes its files and recreates it empty.
// Concurrent calls wait for the reset to finish.
func (b *Bleve) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return ErrClosed
	}
	if err := b.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	b.index = nil
	var (
		idx bleve.Index
		err error
	)
	if b.path == "" {
		idx, err = bleve.NewMemOnly(buildMapping())
	} else {
		if err := os.RemoveAll(b.path); err != nil {
			return fmt.Errorf("remove index %s: %w", b.path, err)
		}
		idx, err = bleve.New(b.path, buildMapping())
	}
	if err != nil {
		return fmt.Errorf("recreate index: %w", err)
	}
	b.index = idx
	return nil
}

func (b *Bleve) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	return err
}
