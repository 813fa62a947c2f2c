package repository

import (
	"context"
	"errors"
	"time"

	"github.com/docindex/docindex/internal/document"
)

var (
	ErrNotFound = errors.New("document not found")
)

// Repository is the metadata store for documents. Implementations return
// List results in ascending id order; ids are allocated in creation order, so
// the first document of a name in List is the oldest one.
type Repository interface {
	Create(ctx context.Context, doc *document.Document) (string, error)
	Update(ctx context.Context, doc *document.Document) error
	Get(ctx context.Context, id string) (*document.Document, error)
	// FindByFileName returns the lowest-id document with the given name, or ErrNotFound.
	FindByFileName(ctx context.Context, name string) (*document.Document, error)
	List(ctx context.Context) ([]*document.Document, error)
	// ListIndexedBefore returns up to limit documents with IndexedAt strictly
	// before cutoff, in ascending id order, skipping any id in exclude.
	ListIndexedBefore(ctx context.Context, cutoff time.Time, limit int, exclude []string) ([]*document.Document, error)
	Delete(ctx context.Context, id string) error
}
