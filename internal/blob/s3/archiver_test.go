package s3blob

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

type memBlobWriter struct {
	mu   sync.Mutex
	puts map[string]string
	err  error
}

func (w *memBlobWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.err != nil {
		return w.err
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.puts == nil {
		w.puts = make(map[string]string)
	}
	w.puts[path] = string(body)
	return nil
}

type memOutcomeStore struct {
	outcomes []domain.CycleOutcome
}

func (s *memOutcomeStore) Create(_ context.Context, o domain.CycleOutcome) error {
	s.outcomes = append(s.outcomes, o)
	return nil
}

func (s *memOutcomeStore) ListRecent(_ context.Context, _ int) ([]domain.CycleOutcome, error) {
	return nil, nil
}

func (s *memOutcomeStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.CycleOutcome, error) {
	var out []domain.CycleOutcome
	for _, o := range s.outcomes {
		if o.FinishedAt.Before(cutoff) {
			out = append(out, o)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memOutcomeStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []domain.CycleOutcome
	var deleted int64
	for _, o := range s.outcomes {
		if o.FinishedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, o)
	}
	s.outcomes = kept
	return deleted, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func outcomeAt(id string, finished time.Time) domain.CycleOutcome {
	return domain.CycleOutcome{
		ID:         id,
		Status:     domain.CycleExecuted,
		NetUSD:     1.2,
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
	}
}

func TestArchiveOncePrunesOnlyUploadedRecords(t *testing.T) {
	now := time.Now()
	store := &memOutcomeStore{outcomes: []domain.CycleOutcome{
		outcomeAt("old-1", now.Add(-72*time.Hour)),
		outcomeAt("old-2", now.Add(-49*time.Hour)),
		outcomeAt("fresh", now.Add(-time.Hour)),
	}}
	writer := &memBlobWriter{}

	a := NewArchiver(writer, store, 48*time.Hour, testLogger())
	archived, err := a.ArchiveOnce(context.Background())
	if err != nil {
		t.Fatalf("ArchiveOnce: %v", err)
	}
	if archived != 2 {
		t.Fatalf("archived got=%d want=2", archived)
	}
	if len(store.outcomes) != 1 || store.outcomes[0].ID != "fresh" {
		t.Fatalf("hot store after archive: %+v", store.outcomes)
	}
	if len(writer.puts) != 1 {
		t.Fatalf("uploads got=%d want=1", len(writer.puts))
	}
	for path, body := range writer.puts {
		if !strings.HasPrefix(path, "archive/outcomes/") || !strings.HasSuffix(path, ".jsonl") {
			t.Fatalf("unexpected archive path %s", path)
		}
		if got := strings.Count(body, "\n"); got != 2 {
			t.Fatalf("jsonl lines got=%d want=2", got)
		}
		if !strings.Contains(body, "old-1") || !strings.Contains(body, "old-2") {
			t.Fatalf("archive body missing records: %s", body)
		}
	}
}

func TestArchiveOnceKeepsRecordsWhenUploadFails(t *testing.T) {
	now := time.Now()
	store := &memOutcomeStore{outcomes: []domain.CycleOutcome{
		outcomeAt("old-1", now.Add(-72*time.Hour)),
	}}
	writer := &memBlobWriter{err: errors.New("bucket unavailable")}

	a := NewArchiver(writer, store, 48*time.Hour, testLogger())
	if _, err := a.ArchiveOnce(context.Background()); err == nil {
		t.Fatal("want upload error")
	}
	if len(store.outcomes) != 1 {
		t.Fatal("records must survive a failed upload")
	}
}

func TestArchiveOnceNoOldRecords(t *testing.T) {
	store := &memOutcomeStore{outcomes: []domain.CycleOutcome{
		outcomeAt("fresh", time.Now()),
	}}
	writer := &memBlobWriter{}

	a := NewArchiver(writer, store, 48*time.Hour, testLogger())
	archived, err := a.ArchiveOnce(context.Background())
	if err != nil {
		t.Fatalf("ArchiveOnce: %v", err)
	}
	if archived != 0 || len(writer.puts) != 0 {
		t.Fatalf("nothing should be archived: archived=%d puts=%d", archived, len(writer.puts))
	}
}
