package domain

import (
	"context"
	"io"
	"time"
)

// OutcomeStore persists one record per completed analysis cycle.
type OutcomeStore interface {
	Create(ctx context.Context, outcome CycleOutcome) error
	ListRecent(ctx context.Context, limit int) ([]CycleOutcome, error)
	// ListBefore returns outcomes that finished before the cutoff, oldest
	// first, for archival.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]CycleOutcome, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
