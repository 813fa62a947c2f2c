package service

import (
	"context"
	"errors"
	"time"

	"github.com/docindex/docindex/internal/document"
	"github.com/docindex/docindex/internal/document/repository"
	"github.com/docindex/docindex/internal/extract"
	"github.com/docindex/docindex/internal/locks"
	"github.com/docindex/docindex/internal/searchindex"
	"github.com/docindex/docindex/internal/storage"
	"github.com/docindex/docindex/internal/uploadlog"
)

var (
	// ErrValidation marks a request the caller must fix before retrying.
	ErrValidation = errors.New("invalid request")
)

// Service defines the document operations used by the handler layer.
type Service interface {
	Ingest(ctx context.Context, up Upload) (Result, error)
	IngestAll(ctx context.Context, uploads []Upload) []Result
	Search(ctx context.Context, keyword string) ([]document.Summary, error)
	RepairDuplicates(ctx context.Context) (RepairReport, error)
	PurgeByKeyword(ctx context.Context, keyword string) (int, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int, error)
	ResetIndex(ctx context.Context) error
	// Today is the current UTC calendar date.
	Today() time.Time
}

// Extractor decodes a stored upload into raw text.
type Extractor interface {
	Extract(ctx context.Context, src extract.Source) (extract.Result, error)
}

// Deps are the collaborators shared by every operation. UploadLog and Locker
// are optional.
type Deps struct {
	Repo      repository.Repository
	Index     searchindex.Index
	Blobs     storage.BlobStore
	Extractor Extractor
	UploadLog uploadlog.Log
	Locker    locks.Locker
	Now       func() time.Time
}

type Options struct {
	// Workers bounds concurrent ingests within one batch.
	Workers int
	// MaxHits caps the ids read from the index per query.
	MaxHits int
	// BatchSize is the default age-purge batch size.
	BatchSize int
	// BatchDelay is the pause between two age-purge batches.
	BatchDelay time.Duration
}

const (
	defaultWorkers   = 4
	defaultMaxHits   = 1000
	defaultBatchSize = 50
	defaultDelay     = 100 * time.Millisecond
)

type docService struct {
	deps   Deps
	opts   Options
	byName *keyedMutex
}

func New(deps Deps, opts Options) Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Locker == nil {
		deps.Locker = locks.NewLocalLocker()
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.MaxHits <= 0 {
		opts.MaxHits = defaultMaxHits
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = defaultDelay
	}
	return &docService{deps: deps, opts: opts, byName: newKeyedMutex()}
}

func (s *docService) Today() time.Time {
	return document.Day(s.deps.Now())
}
