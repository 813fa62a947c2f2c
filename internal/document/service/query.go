package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docindex/docindex/internal/document"
	"github.com/docindex/docindex/internal/document/repository"
	"github.com/docindex/docindex/internal/textnorm"
)

// PreviewRunes bounds the content preview of a search result.
const PreviewRunes = 500

// Search returns a summary of every document the index matches for keyword,
// in index order. Ids the store no longer knows are skipped.
func (s *docService) Search(ctx context.Context, keyword string) ([]document.Summary, error) {
	ids, err := s.deps.Index.Search(ctx, strings.TrimSpace(keyword), s.opts.MaxHits)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	out := make([]document.Summary, 0, len(ids))
	for _, id := range ids {
		d, err := s.deps.Repo.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", id, err)
		}
		out = append(out, summarize(d))
	}
	return out, nil
}

func summarize(d *document.Document) document.Summary {
	return document.Summary{
		ID:       d.ID,
		Title:    textnorm.Normalize(d.Title),
		FileName: textnorm.Normalize(d.FileName),
		FileSize: d.FileSize,
		MIMEType: textnorm.Normalize(d.MIMEType),
		Content:  Preview(d.Content),
	}
}

// Preview returns the first PreviewRunes runes of content followed by "...",
// which is appended even when nothing was cut.
func Preview(content string) string {
	return textnorm.Truncate(textnorm.Normalize(content), PreviewRunes) + "..."
}
