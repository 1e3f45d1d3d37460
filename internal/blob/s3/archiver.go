package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Archiver moves old cycle outcomes out of the hot store: records past the
// retention window are serialized to JSONL, uploaded, and only then deleted
// from Postgres. Deletion never runs when the upload failed.
type Archiver struct {
	writer    domain.BlobWriter
	outcomes  domain.OutcomeStore
	retention time.Duration
	batch     int
	logger    *slog.Logger
	now       func() time.Time
}

// NewArchiver creates an Archiver keeping retention worth of outcomes hot.
func NewArchiver(writer domain.BlobWriter, outcomes domain.OutcomeStore, retention time.Duration, logger *slog.Logger) *Archiver {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &Archiver{
		writer:    writer,
		outcomes:  outcomes,
		retention: retention,
		batch:     1_000,
		logger:    logger.With(slog.String("component", "archiver")),
		now:       time.Now,
	}
}

// Run archives on the given interval until the context ends.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.ArchiveOnce(ctx); err != nil {
				a.logger.Error("archive pass failed", slog.Any("error", err))
			}
		}
	}
}

// ArchiveOnce uploads and prunes everything past the retention window. It
// returns the number of archived records.
func (a *Archiver) ArchiveOnce(ctx context.Context) (int64, error) {
	cutoff := a.now().Add(-a.retention)

	var total int64
	for {
		outcomes, err := a.outcomes.ListBefore(ctx, cutoff, a.batch)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive query: %w", err)
		}
		if len(outcomes) == 0 {
			break
		}

		buf, err := marshalJSONL(outcomes)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive marshal: %w", err)
		}

		path := archivePath(outcomes[0].FinishedAt, outcomes[len(outcomes)-1].FinishedAt)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return total, fmt.Errorf("s3blob: archive upload: %w", err)
		}

		// Delete only what the uploaded batch covered.
		deleted, err := a.outcomes.DeleteBefore(ctx, outcomes[len(outcomes)-1].FinishedAt.Add(time.Microsecond))
		if err != nil {
			return total, fmt.Errorf("s3blob: archive prune: %w", err)
		}
		total += deleted

		a.logger.Info("archived outcomes",
			slog.String("path", path),
			slog.Int("records", len(outcomes)),
			slog.Int64("deleted", deleted),
		)
		if len(outcomes) < a.batch {
			break
		}
	}
	return total, nil
}

// archivePath builds the object key from the batch's time range:
//
//	archive/outcomes/2026-08-01T00-00-00Z_2026-08-02T12-30-00Z.jsonl
func archivePath(from, to time.Time) string {
	const layout = "2006-01-02T15-04-05Z"
	return fmt.Sprintf("archive/outcomes/%s_%s.jsonl",
		from.UTC().Format(layout), to.UTC().Format(layout))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
