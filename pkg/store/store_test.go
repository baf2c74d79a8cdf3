package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hearthai/hearth/pkg/modelspec"
)

func digest(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Options{ModelsRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected error constructing store: %v", err)
	}
	return s
}

func TestRegister_RejectsInvalidSpec(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	err := s.Register(modelspec.ModelSpec{})
	if err == nil {
		t.Fatal("expected validation error for empty spec")
	}
}

func TestRegister_RejectsDuplicateID(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	spec := modelspec.ModelSpec{ID: "m1", Task: modelspec.TaskTextCompletion, Engine: "llama", Source: modelspec.Source{File: "m.gguf"}}
	if err := s.Register(spec); err != nil {
		t.Fatalf("unexpected error on first register: %v", err)
	}
	if err := s.Register(spec); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestGet_ReturnsModelNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.Get("missing")
	if err == nil {
		t.Fatal("expected error for unregistered model")
	}
}

func TestPrepareModel_LocalFileAlreadyPresent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	artifact := filepath.Join(dir, "model.gguf")
	if err := os.WriteFile(artifact, []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := New(Options{ModelsRoot: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Register(modelspec.ModelSpec{
		ID: "local", Task: modelspec.TaskTextCompletion, Engine: "llama",
		Source: modelspec.Source{File: "model.gguf"},
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.PrepareModel(context.Background(), "local"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.GetStatus("local"); got != StatusReady {
		t.Fatalf("expected ready status, got %s", got)
	}
}

func TestPrepareModel_DownloadsAndVerifiesChecksum(t *testing.T) {
	t.Parallel()

	content := "downloaded weights"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(content))
	}))
	defer server.Close()

	dir := t.TempDir()
	var progressCalls int32
	s, err := New(Options{
		ModelsRoot: dir,
		OnProgress: func(modelID string, downloaded, total int64) {
			atomic.AddInt32(&progressCalls, 1)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Register(modelspec.ModelSpec{
		ID: "remote", Task: modelspec.TaskTextCompletion, Engine: "llama",
		Source: modelspec.Source{URL: server.URL, SHA256: digest(content)},
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.PrepareModel(context.Background(), "remote"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.GetStatus("remote"); got != StatusReady {
		t.Fatalf("expected ready status, got %s", got)
	}
	if atomic.LoadInt32(&progressCalls) == 0 {
		t.Fatal("expected at least one progress callback")
	}
}

func TestPrepareModel_ConcurrentCallersShareOneDownload(t *testing.T) {
	t.Parallel()

	var downloadCount int32
	content := "shared weights"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&downloadCount, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(content))
	}))
	defer server.Close()

	dir := t.TempDir()
	s, err := New(Options{ModelsRoot: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Register(modelspec.ModelSpec{
		ID: "shared", Task: modelspec.TaskTextCompletion, Engine: "llama",
		Source: modelspec.Source{URL: server.URL},
	}); err != nil {
		t.Fatal(err)
	}

	const callers = 8
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			errs <- s.PrepareModel(context.Background(), "shared")
		}()
	}
	for i := 0; i < callers; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := atomic.LoadInt32(&downloadCount); got != 1 {
		t.Fatalf("expected exactly one download across concurrent callers, got %d", got)
	}
}

func TestPrepareModel_MissingFileNoURLFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := New(Options{ModelsRoot: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Register(modelspec.ModelSpec{
		ID: "gone", Task: modelspec.TaskTextCompletion, Engine: "llama",
		Source: modelspec.Source{File: "does-not-exist.gguf"},
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.PrepareModel(context.Background(), "gone"); err == nil {
		t.Fatal("expected preparation error")
	}
	if got := s.GetStatus("gone"); got != StatusFailed {
		t.Fatalf("expected failed status, got %s", got)
	}
}

func TestPrepareModel_ChecksumMismatchNotRetried(t *testing.T) {
	t.Parallel()

	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("actual bytes on the wire"))
	}))
	defer server.Close()

	dir := t.TempDir()
	s, err := New(Options{ModelsRoot: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Register(modelspec.ModelSpec{
		ID: "mismatched", Task: modelspec.TaskTextCompletion, Engine: "llama",
		Source: modelspec.Source{URL: server.URL, SHA256: digest("some other content entirely")},
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.PrepareModel(context.Background(), "mismatched"); err == nil {
		t.Fatal("expected checksum mismatch to surface as an error")
	}
	if got := s.GetStatus("mismatched"); got != StatusFailed {
		t.Fatalf("expected failed status, got %s", got)
	}
	if got := atomic.LoadInt32(&requestCount); got != 1 {
		t.Fatalf("expected checksum mismatch to be fatal on the first attempt, got %d requests", got)
	}
}

func TestPrepareModel_DownloadConcurrencyLimitsSimultaneousDownloads(t *testing.T) {
	t.Parallel()

	var inFlight, maxInFlight int32
	arrived := make(chan struct{}, 2)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			prev := atomic.LoadInt32(&maxInFlight)
			if cur <= prev || atomic.CompareAndSwapInt32(&maxInFlight, prev, cur) {
				break
			}
		}
		arrived <- struct{}{}
		<-release
		atomic.AddInt32(&inFlight, -1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("weights"))
	}))
	defer server.Close()

	dir := t.TempDir()
	s, err := New(Options{ModelsRoot: dir, DownloadConcurrency: 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"a", "b"} {
		if err := s.Register(modelspec.ModelSpec{
			ID: id, Task: modelspec.TaskTextCompletion, Engine: "llama",
			Source: modelspec.Source{URL: server.URL + "/" + id},
		}); err != nil {
			t.Fatal(err)
		}
	}

	errs := make(chan error, 2)
	go func() { errs <- s.PrepareModel(context.Background(), "a") }()
	go func() { errs <- s.PrepareModel(context.Background(), "b") }()

	// Wait for the first request to reach the server, confirm the second
	// hasn't, then release the first and confirm the second follows.
	<-arrived
	select {
	case <-arrived:
		t.Fatal("expected second download to wait for DownloadConcurrency slot")
	case <-time.After(50 * time.Millisecond):
	}
	release <- struct{}{}
	<-arrived
	release <- struct{}{}

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Fatalf("expected DownloadConcurrency=1 to serialize downloads, got max in-flight %d", got)
	}
}

func TestPrepareAll_BlockingModeForcedByMinInstances(t *testing.T) {
	t.Parallel()

	content := "blocking weights"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(content))
	}))
	defer server.Close()

	dir := t.TempDir()
	s, err := New(Options{ModelsRoot: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Register(modelspec.ModelSpec{
		ID: "warm", Task: modelspec.TaskTextCompletion, Engine: "llama",
		MinInstances: 1,
		Source:       modelspec.Source{URL: server.URL},
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.PrepareAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.GetStatus("warm"); got != StatusReady {
		t.Fatalf("expected blocking prepare to complete before PrepareAll returns, got %s", got)
	}
}
