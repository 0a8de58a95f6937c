package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	errs "github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/modgraph"
	"github.com/matzehuels/modgraph/pkg/observability"
)

var errFlaky = errors.New("flaky")

func init() {
	defaultRetry.delay = time.Millisecond
}

func TestNullStore(t *testing.T) {
	ctx := context.Background()
	s := NewNullStore()
	defer s.Close()

	// Get always returns miss
	data, hit, err := s.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullStore.Get should always return miss")
	}
	if data != nil {
		t.Error("NullStore.Get should return nil data")
	}

	if err := s.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	// Still a miss after Set
	_, hit, _ = s.Get(ctx, "key")
	if hit {
		t.Error("NullStore should not store data")
	}

	if err := s.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, hit, err := s.Get(ctx, "key"); hit || err != nil {
		t.Fatalf("Get on empty store = %v, %v", hit, err)
	}
	if err := s.Set(ctx, "key", []byte("value"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := s.Get(ctx, "key")
	if err != nil || !hit || string(data) != "value" {
		t.Errorf("Get() = %q, %v, %v", data, hit, err)
	}

	// Entry files are spread over hash-prefix subdirectories.
	rel, _ := filepath.Rel(s.Dir(), s.Path("key"))
	if filepath.Dir(rel) != Hash([]byte("key"))[:2] {
		t.Errorf("entry path %s not below hash prefix dir", rel)
	}

	if err := s.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := s.Get(ctx, "key"); hit {
		t.Error("deleted key should miss")
	}
	if err := s.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestFileStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())

	if err := s.Set(ctx, "short", []byte("x"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if _, hit, _ := s.Get(ctx, "short"); hit {
		t.Error("expired entry should miss")
	}
	if _, err := os.Stat(s.Path("short")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}

	// Corrupt entries are treated as misses.
	if err := os.MkdirAll(filepath.Dir(s.Path("bad")), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path("bad"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := s.Get(ctx, "bad"); hit || err != nil {
		t.Errorf("corrupt entry Get() = %v, %v", hit, err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		location string
		backend  string
	}{
		{"", "null"},
		{"null", "null"},
		{dir, "file"},
		{"file://" + dir, "file"},
	}
	for _, tt := range tests {
		s, backend, err := Open(ctx, tt.location)
		if err != nil {
			t.Errorf("Open(%q): %v", tt.location, err)
			continue
		}
		if backend != tt.backend {
			t.Errorf("Open(%q) backend = %s, want %s", tt.location, backend, tt.backend)
		}
		_ = s.Close()
	}

	if _, _, err := Open(ctx, "redis://localhost:6379/notanumber"); !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("Open(bad redis url) error = %v, want INVALID_INPUT", err)
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}

	a, err := HashJSON(map[string]int{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if b, _ := HashJSON(map[string]int{"a": 1}); a != b {
		t.Error("HashJSON should be deterministic")
	}
	if _, err := HashJSON(func() {}); err == nil {
		t.Error("HashJSON of a func should fail")
	}
}

func TestRetryableError(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	err := Retryable(errFlaky)
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if err.Error() != errFlaky.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}
	if !errors.Is(err, errFlaky) {
		t.Error("wrapped error should unwrap to the cause")
	}
	if IsRetryable(errFlaky) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("success: err=%v calls=%d", err, calls)
	}

	// Non-retryable error stops immediately
	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return errFlaky
	})
	if err != errFlaky || calls != 1 {
		t.Errorf("non-retryable: err=%v calls=%d", err, calls)
	}

	// Retryable error triggers retries
	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 2 {
			return Retryable(errFlaky)
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("retry: err=%v calls=%d", err, calls)
	}

	// Gives up after three attempts
	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return Retryable(errFlaky)
	})
	if !errors.Is(err, errFlaky) || calls != 3 {
		t.Errorf("exhausted: err=%v calls=%d", err, calls)
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(errFlaky)
	})
	if err != context.Canceled {
		t.Errorf("Should return context error: %v", err)
	}
}

type storeRecorder struct {
	observability.NoopStoreHooks
	hits, misses, sets int
}

func (r *storeRecorder) OnSnapshotHit(context.Context, string)      { r.hits++ }
func (r *storeRecorder) OnSnapshotMiss(context.Context, string)     { r.misses++ }
func (r *storeRecorder) OnSnapshotSet(context.Context, string, int) { r.sets++ }

func TestSnapshots(t *testing.T) {
	rec := &storeRecorder{}
	observability.SetStoreHooks(rec)
	defer observability.Reset()

	ctx := context.Background()
	fs, _ := NewFileStore(t.TempDir())
	snaps := NewSnapshots(fs, "file")

	snap := &modgraph.Snapshot{
		Modules: []modgraph.ModuleSnapshot{{Path: "::view", Class: "View3D"}},
		Calls:   []modgraph.CallSnapshot{},
	}
	hash, err := snaps.Save(ctx, "spheres", snap, 0)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("Save hash = %q", hash)
	}

	got, err := snaps.Load(ctx, "spheres")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, snap) {
		t.Errorf("Load() = %+v, want %+v", got, snap)
	}

	if _, err := snaps.Load(ctx, "missing"); !errs.Is(err, errs.ErrCodeNotFound) {
		t.Errorf("Load(missing) error = %v, want NOT_FOUND", err)
	}
	if _, err := snaps.Save(ctx, "a::b", snap, 0); !errs.Is(err, errs.ErrCodeInvalidName) {
		t.Errorf("Save(a::b) error = %v, want INVALID_NAME", err)
	}
	if err := snaps.Delete(ctx, "spheres"); err != nil {
		t.Fatal(err)
	}
	if _, err := snaps.Load(ctx, "spheres"); !errs.Is(err, errs.ErrCodeNotFound) {
		t.Errorf("Load after Delete error = %v, want NOT_FOUND", err)
	}

	if rec.sets != 1 || rec.hits != 1 || rec.misses != 2 {
		t.Errorf("hooks: sets=%d hits=%d misses=%d", rec.sets, rec.hits, rec.misses)
	}
}

func TestSnapshotsRejectInvalidNames(t *testing.T) {
	rec := &storeRecorder{}
	observability.SetStoreHooks(rec)
	defer observability.Reset()

	ctx := context.Background()
	fs, _ := NewFileStore(t.TempDir())
	snaps := NewSnapshots(fs, "file")
	snap := &modgraph.Snapshot{Modules: []modgraph.ModuleSnapshot{{Path: "::view", Class: "View3D"}}}

	for _, name := range []string{"", "a::b", "a:b", "has space"} {
		if _, err := snaps.Save(ctx, name, snap, 0); !errs.Is(err, errs.ErrCodeInvalidName) {
			t.Errorf("Save(%q) error = %v, want INVALID_NAME", name, err)
		}
		if _, err := snaps.Load(ctx, name); !errs.Is(err, errs.ErrCodeInvalidName) {
			t.Errorf("Load(%q) error = %v, want INVALID_NAME", name, err)
		}
		if err := snaps.Delete(ctx, name); !errs.Is(err, errs.ErrCodeInvalidName) {
			t.Errorf("Delete(%q) error = %v, want INVALID_NAME", name, err)
		}
	}
	if rec.misses != 0 {
		t.Errorf("invalid names reached the store: %d misses", rec.misses)
	}
}
