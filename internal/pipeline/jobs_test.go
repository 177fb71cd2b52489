package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wangqiqi/md2docx/internal/convert"
	"github.com/wangqiqi/md2docx/internal/engine"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob("notes.md", []byte("# hi"))
	if _, err := uuid.Parse(job.ID); err != nil {
		t.Fatalf("expected uuid job id, got %q: %v", job.ID, err)
	}
	if job.Status != StatusQueued {
		t.Errorf("expected status %q, got %q", StatusQueued, job.Status)
	}
	if string(job.FileData()) != "# hi" {
		t.Errorf("expected file data to be kept, got %q", job.FileData())
	}
	if NewJob("a.md", nil).ID == job.ID {
		t.Error("expected distinct job ids")
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("a.md", nil)

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusParsing, "parsing"},
		{StatusAssembling, "assembling"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_Complete(t *testing.T) {
	job := NewJob("a.md", []byte("# a"))
	if _, ok := job.Result(); ok {
		t.Fatal("expected no result before completion")
	}

	job.Complete([]byte("docx"), convert.Result{
		Blocks:   3,
		Duration: 42 * time.Millisecond,
		Report: engine.Report{
			Malformed:     []*engine.UnitError{{Index: 1, Err: engine.ErrMissingContent}},
			ImageFailures: 2,
		},
	})

	data, ok := job.Result()
	if !ok || string(data) != "docx" {
		t.Fatalf("expected result bytes, got %q ok=%v", data, ok)
	}
	if job.FileData() != nil {
		t.Error("expected upload to be released")
	}
	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Errorf("expected status %q, got %q", StatusCompleted, snap.Status)
	}
	if snap.Progress.Blocks != 3 || snap.Progress.MalformedUnits != 1 || snap.Progress.ImageFailures != 2 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}
	if snap.Progress.DurationMs != 42 {
		t.Errorf("expected duration 42ms, got %d", snap.Progress.DurationMs)
	}
	if snap.ContentHash != ContentHashHex([]byte("docx")) {
		t.Errorf("expected content hash of result, got %q", snap.ContentHash)
	}
}

func TestJob_Fail(t *testing.T) {
	job := NewJob("a.pdf", []byte("%PDF"))
	job.Fail("parsing", errors.New("unsupported file type"))

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "parsing" {
		t.Errorf("expected failed/parsing, got %s/%s", snap.Status, snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 || snap.Progress.Errors[0] != "unsupported file type" {
		t.Errorf("unexpected errors %v", snap.Progress.Errors)
	}
	if _, ok := job.Result(); ok {
		t.Error("failed job must not expose a result")
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("unit 3 malformed")
	job.AddError("unit 7 malformed")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "unit 3 malformed" {
		t.Errorf("expected first error %q, got %q", "unit 3 malformed", snap.Progress.Errors[0])
	}

	// The snapshot must not alias the job's slice.
	snap.Progress.Errors[0] = "changed"
	if job.Snapshot().Progress.Errors[0] != "unit 3 malformed" {
		t.Error("snapshot aliases job errors")
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 job, got %d", store.Len())
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
