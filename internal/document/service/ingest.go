package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docindex/docindex/internal/document"
	"github.com/docindex/docindex/internal/document/repository"
	"github.com/docindex/docindex/internal/extract"
	"github.com/docindex/docindex/internal/searchindex"
	"github.com/docindex/docindex/internal/storage"
	"github.com/docindex/docindex/internal/textnorm"
	"github.com/docindex/docindex/pkg/logger"
	"github.com/docindex/docindex/pkg/metrics"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
)

var ingestLog = logger.Named("ingest")

// Upload is one file of an upload request. Open may be called once.
type Upload struct {
	FileName string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeFailed  Outcome = "failed"
)

// Result reports what happened to one uploaded file.
type Result struct {
	FileName   string  `json:"file_name"`
	ID         string  `json:"id,omitempty"`
	Outcome    Outcome `json:"outcome"`
	Format     string  `json:"format,omitempty"`
	Extraction string  `json:"extraction,omitempty"`
	Error      string  `json:"error,omitempty"`
	Err        error   `json:"-"`
}

// IngestAll ingests every upload on a bounded worker pool. A failing file
// does not affect the others; results keep the input order.
func (s *docService) IngestAll(ctx context.Context, uploads []Upload) []Result {
	results := make([]Result, len(uploads))
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, up := range uploads {
		g.Go(func() error {
			res, err := s.Ingest(ctx, up)
			if err != nil {
				res.FileName = up.FileName
				res.Outcome = OutcomeFailed
				res.Error = err.Error()
				res.Err = err
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Ingest stores, decodes and indexes one file, creating the document or
// updating the existing one with the same file name in place. The stored
// blob is removed on every path.
func (s *docService) Ingest(ctx context.Context, up Upload) (res Result, err error) {
	defer func() {
		if err != nil {
			metrics.IngestedFiles.WithLabelValues(string(OutcomeFailed)).Inc()
			ingestLog.Warnf("%s: %v", up.FileName, err)
			return
		}
		metrics.IngestedFiles.WithLabelValues(string(res.Outcome)).Inc()
	}()

	name := strings.TrimSpace(up.FileName)
	if name == "" || up.Open == nil {
		return Result{}, fmt.Errorf("%w: upload has no file name", ErrValidation)
	}

	key := storage.UploadKey(name)
	path, size, err := s.store(ctx, key, up)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if derr := s.deps.Blobs.Delete(context.WithoutCancel(ctx), key); derr != nil {
			ingestLog.Warnf("%s: remove stored upload %s: %v", name, key, derr)
		}
	}()

	mimeType := "application/octet-stream"
	if mt, derr := mimetype.DetectFile(path); derr == nil {
		mimeType, _, _ = strings.Cut(mt.String(), ";")
	}

	ext := document.Extension(name)
	extracted, err := s.deps.Extractor.Extract(ctx, extract.Source{Path: path, Name: name, MIMEType: mimeType, Ext: ext})
	if err != nil {
		return Result{Format: string(extracted.Format), Extraction: string(extracted.Status)}, err
	}

	doc := &document.Document{
		Title:     textnorm.Normalize(document.TitleFromFileName(name)),
		FileName:  name,
		FileSize:  size,
		MIMEType:  mimeType,
		Content:   textnorm.Normalize(extracted.Text),
		IndexedAt: s.Today(),
	}
	res = Result{FileName: name, Format: string(extracted.Format), Extraction: string(extracted.Status)}

	unlock := s.byName.Lock(name)
	defer unlock()

	existing, err := s.deps.Repo.FindByFileName(ctx, name)
	switch {
	case err == nil:
		doc.ID = existing.ID
		if err := s.deps.Repo.Update(ctx, doc); err != nil {
			return res, fmt.Errorf("update document %s: %w", doc.ID, err)
		}
		res.Outcome = OutcomeUpdated
	case errors.Is(err, repository.ErrNotFound):
		if _, err := s.deps.Repo.Create(ctx, doc); err != nil {
			return res, fmt.Errorf("create document: %w", err)
		}
		res.Outcome = OutcomeCreated
	default:
		return res, fmt.Errorf("look up %s: %w", name, err)
	}
	res.ID = doc.ID

	if err := s.deps.Index.Upsert(ctx, entryFor(doc)); err != nil {
		return res, fmt.Errorf("index document %s: %w", doc.ID, err)
	}

	if res.Outcome == OutcomeCreated && s.deps.UploadLog != nil {
		if err := s.deps.UploadLog.Append(ctx, doc.Metadata()); err != nil {
			ingestLog.Warnf("%s: append upload log: %v", name, err)
		}
	}
	ingestLog.Infof("%s %s as %s (%s, %s)", res.Outcome, name, doc.ID, res.Format, res.Extraction)
	return res, nil
}

// store writes the upload to blob storage and returns the local path and
// the number of bytes written.
func (s *docService) store(ctx context.Context, key string, up Upload) (string, int64, error) {
	rc, err := up.Open()
	if err != nil {
		return "", 0, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()
	path, err := s.deps.Blobs.Put(ctx, key, rc, up.Size, "")
	if err != nil {
		return "", 0, fmt.Errorf("store upload: %w", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		_ = s.deps.Blobs.Delete(context.WithoutCancel(ctx), key)
		return "", 0, fmt.Errorf("stat upload: %w", err)
	}
	return path, fi.Size(), nil
}

func entryFor(d *document.Document) searchindex.Entry {
	return searchindex.Entry{
		ID:       d.ID,
		Title:    d.Title,
		FileName: d.FileName,
		MIMEType: d.MIMEType,
		Content:  d.Content,
	}
}
