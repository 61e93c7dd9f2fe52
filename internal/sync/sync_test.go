package sync

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/modelbase/internal/store/memory"
)

// mockDestination records calls to Write.
type mockDestination struct {
	name   string
	err    error
	writes atomic.Int64
	last   atomic.Value // []byte
}

func (d *mockDestination) Name() string { return d.name }

func (d *mockDestination) Write(_ context.Context, data []byte) error {
	d.writes.Add(1)
	cp := make([]byte, len(data))
	copy(cp, data)
	d.last.Store(cp)
	return d.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestSchedulerStartStop(t *testing.T) {
	s := memory.New()
	seedModel(t, s, "person", `{"name":"a"}`, `{"id":"p1","name":"Ann"}`)

	dest := &mockDestination{name: "mock"}
	sched := NewScheduler(s, []Destination{dest}, 50*time.Millisecond, testLogger())
	sched.Start()

	// Wait for at least the initial sync + one tick.
	time.Sleep(120 * time.Millisecond)
	sched.Stop()

	if writes := dest.writes.Load(); writes < 2 {
		t.Fatalf("expected at least 2 writes, got %d", writes)
	}

	data, ok := dest.last.Load().([]byte)
	if !ok || len(data) == 0 {
		t.Fatal("expected non-empty data")
	}

	// 1 header + 1 model + 1 document = 3
	if lines := nonEmptyLines(string(data)); len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	sched := NewScheduler(memory.New(), nil, time.Minute, testLogger())
	// Stop without Start should not panic.
	sched.Stop()
}

func TestSchedulerSyncOnce_FailingDestinationDoesNotStopOthers(t *testing.T) {
	bad := &mockDestination{name: "bad", err: errors.New("unreachable")}
	good := &mockDestination{name: "good"}

	sched := NewScheduler(memory.New(), []Destination{bad, good}, time.Minute, testLogger())
	if failed := sched.SyncOnce(context.Background()); failed != 1 {
		t.Fatalf("SyncOnce failed = %d, want 1", failed)
	}
	if good.writes.Load() != 1 || bad.writes.Load() != 1 {
		t.Fatalf("writes = good %d, bad %d; want 1 each", good.writes.Load(), bad.writes.Load())
	}
}

func TestS3DestinationName(t *testing.T) {
	d := &S3Destination{bucket: "backups", key: "mb/export.jsonl"}
	if got := d.Name(); got != "s3://backups/mb/export.jsonl" {
		t.Errorf("Name() = %q", got)
	}
	if opts := endpointOptions(""); opts != nil {
		t.Errorf("endpointOptions(\"\") = %d options, want none", len(opts))
	}
	if opts := endpointOptions("http://localhost:9000"); len(opts) != 1 {
		t.Errorf("endpointOptions(custom) = %d options, want 1", len(opts))
	}
}
