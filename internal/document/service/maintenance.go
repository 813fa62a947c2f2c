package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docindex/docindex/internal/document/repository"
	"github.com/docindex/docindex/pkg/logger"
	"github.com/docindex/docindex/pkg/metrics"
)

var maintenanceLog = logger.Named("maintenance")

// maintenanceLock is shared by every maintenance operation: purges, repairs
// and resets never overlap.
const maintenanceLock = "index-maintenance"

const (
	opRepair  = "repair_duplicates"
	opKeyword = "purge_keyword"
	opAge     = "purge_age"
	opReset   = "reset_index"
)

// RepairReport summarizes a duplicate repair run.
type RepairReport struct {
	Removed int `json:"removed"`
	Skipped int `json:"skipped"`
}

func (s *docService) lock(ctx context.Context, op string) (func(), error) {
	release, err := s.deps.Locker.TryLock(ctx, maintenanceLock)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return release, nil
}

// remove deletes a document from the index, then from the store. A document
// already gone from the store still counts as removed.
func (s *docService) remove(ctx context.Context, id, op string) error {
	if err := s.deps.Index.Delete(ctx, id); err != nil {
		return fmt.Errorf("unindex %s: %w", id, err)
	}
	if err := s.deps.Repo.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	metrics.MaintenanceDeleted.WithLabelValues(op).Inc()
	return nil
}

func (s *docService) skip(op, id string, err error) {
	metrics.MaintenanceSkipped.WithLabelValues(op).Inc()
	maintenanceLog.Warnf("%s: skipping %s: %v", op, id, err)
}

// RepairDuplicates keeps the lowest-id (oldest) document of every file name
// and removes the rest.
func (s *docService) RepairDuplicates(ctx context.Context) (RepairReport, error) {
	var report RepairReport
	release, err := s.lock(ctx, opRepair)
	if err != nil {
		return report, err
	}
	defer release()

	docs, err := s.deps.Repo.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list documents: %w", err)
	}
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, dup := seen[d.FileName]; !dup {
			seen[d.FileName] = struct{}{}
			continue
		}
		if err := s.remove(ctx, d.ID, opRepair); err != nil {
			s.skip(opRepair, d.ID, err)
			report.Skipped++
			continue
		}
		report.Removed++
	}
	maintenanceLog.Infof("duplicate repair removed %d, skipped %d", report.Removed, report.Skipped)
	return report, nil
}

// PurgeByKeyword deletes the documents the index returns for keyword whose
// content also contains keyword as a case-insensitive substring.
func (s *docService) PurgeByKeyword(ctx context.Context, keyword string) (int, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return 0, fmt.Errorf("%w: keyword is required", ErrValidation)
	}
	release, err := s.lock(ctx, opKeyword)
	if err != nil {
		return 0, err
	}
	defer release()

	needle := strings.ToLower(keyword)
	// retained holds hits that stay in the index: content without the
	// keyword, or removals that failed. Each query asks for enough hits to
	// get past them.
	retained := make(map[string]struct{})
	deleted := 0
	for {
		limit := s.opts.MaxHits + len(retained)
		ids, err := s.deps.Index.Search(ctx, keyword, limit)
		if err != nil {
			return deleted, fmt.Errorf("query index: %w", err)
		}
		fresh := 0
		for _, id := range ids {
			if _, ok := retained[id]; ok {
				continue
			}
			fresh++
			if err := ctx.Err(); err != nil {
				return deleted, err
			}
			doc, err := s.deps.Repo.Get(ctx, id)
			if errors.Is(err, repository.ErrNotFound) {
				// stale index entry
				if err := s.deps.Index.Delete(ctx, id); err != nil {
					s.skip(opKeyword, id, err)
					retained[id] = struct{}{}
				}
				continue
			}
			if err != nil {
				s.skip(opKeyword, id, err)
				retained[id] = struct{}{}
				continue
			}
			if !strings.Contains(strings.ToLower(doc.Content), needle) {
				retained[id] = struct{}{}
				continue
			}
			if err := s.remove(ctx, id, opKeyword); err != nil {
				s.skip(opKeyword, id, err)
				retained[id] = struct{}{}
				continue
			}
			deleted++
		}
		if fresh == 0 || len(ids) < limit {
			break
		}
	}
	maintenanceLog.Infof("keyword purge %q deleted %d", keyword, deleted)
	return deleted, nil
}

// PurgeOlderThan deletes, in paced batches, every document indexed strictly
// before cutoff. On a systemic failure the count so far is returned with the
// error. Documents that fail to delete are skipped for the rest of the run.
func (s *docService) PurgeOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = s.opts.BatchSize
	}
	release, err := s.lock(ctx, opAge)
	if err != nil {
		return 0, err
	}
	defer release()

	var failed []string
	deleted := 0
	for {
		batch, err := s.deps.Repo.ListIndexedBefore(ctx, cutoff, batchSize, failed)
		if err != nil {
			return deleted, fmt.Errorf("list documents before %s: %w", cutoff.Format(time.DateOnly), err)
		}
		metrics.PurgeBatchSize.Observe(float64(len(batch)))
		for _, d := range batch {
			if err := ctx.Err(); err != nil {
				return deleted, err
			}
			if err := s.remove(ctx, d.ID, opAge); err != nil {
				s.skip(opAge, d.ID, err)
				failed = append(failed, d.ID)
				continue
			}
			deleted++
		}
		if len(batch) < batchSize {
			break
		}
		if err := s.pause(ctx); err != nil {
			return deleted, err
		}
	}
	maintenanceLog.Infof("age purge before %s deleted %d, skipped %d", cutoff.Format(time.DateOnly), deleted, len(failed))
	return deleted, nil
}

// pause waits BatchDelay between two age-purge batches.
func (s *docService) pause(ctx context.Context) error {
	if s.opts.BatchDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.opts.BatchDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ResetIndex empties the search index. The metadata store is untouched.
func (s *docService) ResetIndex(ctx context.Context) error {
	release, err := s.lock(ctx, opReset)
	if err != nil {
		return err
	}
	defer release()
	if err := s.deps.Index.Reset(ctx); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	maintenanceLog.Infof("search index reset")
	return nil
}

// DaysBefore returns the calendar date n days before today (UTC).
func DaysBefore(today time.Time, n int) time.Time {
	return today.AddDate(0, 0, -n)
}

// YearsBefore returns the calendar date n years before today (UTC).
func YearsBefore(today time.Time, n int) time.Time {
	return today.AddDate(-n, 0, 0)
}
