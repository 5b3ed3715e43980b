//go:build unix

package worker

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ivoronin/hashmon/internal/baseline"
	"github.com/ivoronin/hashmon/internal/config"
	"github.com/ivoronin/hashmon/internal/hasher"
)

// =============================================================================
// Test helpers
// =============================================================================

// syncBuffer is a goroutine-safe log destination.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// recorderSink records notification events for assertions.
type recorderSink struct {
	mu      sync.Mutex
	changes [][3]string // path, old, new
	passes  []uint64
}

func (s *recorderSink) FileChanged(path, oldSHA, newSHA string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, [3]string{path, oldSHA, newSHA})
}

func (s *recorderSink) ScanComplete(pass uint64, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passes = append(s.passes, pass)
}

func (s *recorderSink) changeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.changes)
}

// memBaseline is an in-memory Baseline implementation.
type memBaseline struct {
	mu      sync.Mutex
	entries map[string]*baseline.Entry
}

func newMemBaseline() *memBaseline {
	return &memBaseline{entries: make(map[string]*baseline.Entry)}
}

func (m *memBaseline) Lookup(path string) (*baseline.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[path], nil
}

func (m *memBaseline) Store(res *hasher.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[res.Path] = &baseline.Entry{SHA256: res.SHA256, MD5: res.MD5, Size: res.FileSize}
	return nil
}

func newTestLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), buf
}

func createFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(paths ...string) *config.Config {
	return &config.Config{
		MaxFileSize:  1 << 20,
		ChunkSize:    4096,
		WatchedPaths: paths,
		Interval:     time.Millisecond,
	}
}

// waitClosed drains the results channel until it closes, failing the test
// if that takes longer than the deadline.
func waitClosed(t *testing.T, results <-chan *hasher.Result, deadline time.Duration) []*hasher.Result {
	t.Helper()
	var collected []*hasher.Result
	timeout := time.After(deadline)
	for {
		select {
		case res, ok := <-results:
			if !ok {
				return collected
			}
			collected = append(collected, res)
		case <-timeout:
			t.Fatal("results channel not closed before deadline")
		}
	}
}

// =============================================================================
// Construction
// =============================================================================

func TestNewValidation(t *testing.T) {
	ctrl := make(chan Command)

	if _, err := New(nil, ctrl, Options{}, nil, nil, nil); err == nil {
		t.Error("New should reject a nil config")
	}

	bad := testConfig()
	bad.MaxFileSize = 0
	if _, err := New(bad, ctrl, Options{}, nil, nil, nil); err == nil {
		t.Error("New should reject max_file_size = 0")
	}

	if _, err := New(testConfig(), nil, Options{}, nil, nil, nil); err == nil {
		t.Error("New should reject a nil control channel")
	}

	w, err := New(testConfig(), ctrl, Options{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if w.State() != StateInitializing {
		t.Errorf("state = %s, want %s", w.State(), StateInitializing)
	}
}

// =============================================================================
// Scan pass behavior
// =============================================================================

func TestSinglePassEmitsResultsInOrder(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.txt")
	b := filepath.Join(root, "b.txt")
	c := filepath.Join(root, "c.txt")
	createFile(t, a, []byte("alpha"))
	createFile(t, b, []byte("bravo"))
	createFile(t, c, []byte("charlie"))

	logger, _ := newTestLogger()
	ctrl := make(chan Command, 1)
	w, err := New(testConfig(c, a, b), ctrl, Options{Once: true}, logger, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	w.Run(context.Background())

	results := waitClosed(t, w.Results(), time.Second)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	// Results follow the configured path order, not lexical order.
	wantOrder := []string{c, a, b}
	for i, res := range results {
		if res.Path != wantOrder[i] {
			t.Errorf("result %d path = %s, want %s", i, res.Path, wantOrder[i])
		}
		if len(res.SHA256) != 64 || len(res.MD5) != 32 {
			t.Errorf("result %d has malformed digests: %+v", i, res)
		}
	}

	if w.State() != StateStopped {
		t.Errorf("state after Run = %s, want %s", w.State(), StateStopped)
	}
}

func TestFailuresDoNotAbortPass(t *testing.T) {
	root := t.TempDir()
	missing := filepath.Join(root, "missing.txt")
	dir := filepath.Join(root, "subdir")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	ok := filepath.Join(root, "ok.txt")
	createFile(t, ok, []byte("content"))

	logger, logBuf := newTestLogger()
	ctrl := make(chan Command, 1)
	w, err := New(testConfig(missing, dir, ok), ctrl, Options{Once: true}, logger, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	w.Run(context.Background())

	results := waitClosed(t, w.Results(), time.Second)
	if len(results) != 1 || results[0].Path != ok {
		t.Fatalf("expected exactly the readable file, got %v", results)
	}

	logs := logBuf.String()
	for _, want := range []string{
		"File not found: " + missing,
		"Skipping directory: " + dir,
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("log missing %q:\n%s", want, logs)
		}
	}
	if !strings.Contains(logs, "level=WARN") {
		t.Errorf("failures should log at warning level:\n%s", logs)
	}
}

func TestTooLargeFileSkipped(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "big.txt")
	createFile(t, path, []byte("This is a test file.")) // 20 bytes

	cfg := testConfig(path)
	cfg.MaxFileSize = 10

	logger, logBuf := newTestLogger()
	ctrl := make(chan Command, 1)
	w, err := New(cfg, ctrl, Options{Once: true}, logger, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	w.Run(context.Background())

	if results := waitClosed(t, w.Results(), time.Second); len(results) != 0 {
		t.Errorf("expected no results for oversized file, got %v", results)
	}
	if !strings.Contains(logBuf.String(), "File too large for hashing: "+path) {
		t.Errorf("log missing too-large warning:\n%s", logBuf.String())
	}
}

// =============================================================================
// Lifecycle control
// =============================================================================

func TestStopBeforeFirstFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	createFile(t, path, []byte("data"))

	logger, _ := newTestLogger()
	ctrl := make(chan Command, 2)
	ctrl <- Stop{}
	ctrl <- Stop{} // Idempotent: a second Stop is harmless

	w, err := New(testConfig(path), ctrl, Options{}, logger, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	w.Run(context.Background())

	// Stop was queued before the pass started, so nothing was hashed.
	if results := waitClosed(t, w.Results(), time.Second); len(results) != 0 {
		t.Errorf("expected no results after pre-queued Stop, got %v", results)
	}
	if w.State() != StateStopped {
		t.Errorf("state = %s, want %s", w.State(), StateStopped)
	}
}

func TestControlChannelCloseStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	createFile(t, path, []byte("data"))

	logger, _ := newTestLogger()
	ctrl := make(chan Command)
	close(ctrl)

	w, err := New(testConfig(path), ctrl, Options{}, logger, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after control channel closed")
	}
}

func TestContextCancelStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	createFile(t, path, []byte("data"))

	logger, _ := newTestLogger()
	ctrl := make(chan Command)
	w, err := New(testConfig(path), ctrl, Options{}, logger, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestPauseResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	createFile(t, path, []byte("data"))

	logger, _ := newTestLogger()
	ctrl := make(chan Command, 4)
	ctrl <- Pause{} // Applied before the first file is hashed

	w, err := New(testConfig(path), ctrl, Options{Once: true}, logger, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(context.Background())
	}()

	// While paused, no results flow.
	select {
	case res := <-w.Results():
		t.Fatalf("received result while paused: %v", res)
	case <-time.After(100 * time.Millisecond):
	}
	if w.State() != StatePaused {
		t.Errorf("state = %s, want %s", w.State(), StatePaused)
	}

	ctrl <- Resume{}

	select {
	case res, ok := <-w.Results():
		if !ok || res == nil {
			t.Fatal("expected a result after resume")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no result after resume")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not finish after resume")
	}
}

func TestUpdateConfigTakesEffect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	createFile(t, path, []byte("This is a test file.")) // 20 bytes

	logger, logBuf := newTestLogger()
	ctrl := make(chan Command, 4)
	w, err := New(testConfig(path), ctrl, Options{}, logger, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(context.Background())
	}()

	// First pass hashes the file normally.
	select {
	case res := <-w.Results():
		if res.FileSize != 20 {
			t.Errorf("file_size = %d, want 20", res.FileSize)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no result from first pass")
	}

	// Shrink the limit below the file size; a later pass must skip it.
	limit := int64(10)
	ctrl <- UpdateConfig{Patch: config.Patch{MaxFileSize: &limit}}

	deadline := time.After(3 * time.Second)
	for !strings.Contains(logBuf.String(), "File too large for hashing: "+path) {
		select {
		case <-deadline:
			t.Fatal("updated limit never took effect")
		case <-time.After(10 * time.Millisecond):
		}
	}

	ctrl <- Stop{}
	go func() {
		for range w.Results() {
			// Drain results emitted before the update landed.
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestInvalidUpdateConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	createFile(t, path, []byte("data"))

	logger, logBuf := newTestLogger()
	ctrl := make(chan Command, 4)
	bad := int64(-1)
	ctrl <- UpdateConfig{Patch: config.Patch{MaxFileSize: &bad}}

	w, err := New(testConfig(path), ctrl, Options{Once: true}, logger, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	w.Run(context.Background())

	// The bad patch is rejected; the file still hashes under the old limit.
	if results := waitClosed(t, w.Results(), time.Second); len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
	if !strings.Contains(logBuf.String(), "rejected config update") {
		t.Errorf("log missing rejection notice:\n%s", logBuf.String())
	}
}

// =============================================================================
// Change detection and notifications
// =============================================================================

func TestBaselineChangeDetection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	createFile(t, path, []byte("new content"))

	base := newMemBaseline()
	base.entries[path] = &baseline.Entry{SHA256: "0000deadbeef"}

	sink := &recorderSink{}
	logger, _ := newTestLogger()
	ctrl := make(chan Command, 1)
	w, err := New(testConfig(path), ctrl, Options{Once: true}, logger, sink, base)
	if err != nil {
		t.Fatal(err)
	}

	w.Run(context.Background())
	results := waitClosed(t, w.Results(), time.Second)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	if sink.changeCount() != 1 {
		t.Fatalf("expected 1 change notification, got %d", sink.changeCount())
	}
	change := sink.changes[0]
	if change[0] != path || change[1] != "0000deadbeef" || change[2] != results[0].SHA256 {
		t.Errorf("change = %v, want (%s, 0000deadbeef, %s)", change, path, results[0].SHA256)
	}

	// Baseline updated to the fresh digest.
	entry, _ := base.Lookup(path)
	if entry.SHA256 != results[0].SHA256 {
		t.Errorf("baseline not updated: %s", entry.SHA256)
	}
}

func TestUnchangedFileNoNotification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	createFile(t, path, []byte("steady"))

	res, err := hasher.Calculate(path, 1<<20, 4096)
	if err != nil {
		t.Fatal(err)
	}
	base := newMemBaseline()
	_ = base.Store(res)

	sink := &recorderSink{}
	logger, _ := newTestLogger()
	ctrl := make(chan Command, 1)
	w, err := New(testConfig(path), ctrl, Options{Once: true}, logger, sink, base)
	if err != nil {
		t.Fatal(err)
	}

	w.Run(context.Background())
	waitClosed(t, w.Results(), time.Second)

	if sink.changeCount() != 0 {
		t.Errorf("unchanged file should not notify, got %d changes", sink.changeCount())
	}
}

func TestScanCompleteNotification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	createFile(t, path, []byte("data"))

	sink := &recorderSink{}
	logger, _ := newTestLogger()
	ctrl := make(chan Command, 1)
	w, err := New(testConfig(path), ctrl, Options{Once: true}, logger, sink, nil)
	if err != nil {
		t.Fatal(err)
	}

	w.Run(context.Background())
	waitClosed(t, w.Results(), time.Second)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.passes) != 1 || sink.passes[0] != 1 {
		t.Errorf("passes = %v, want [1]", sink.passes)
	}
}

// =============================================================================
// Backpressure
// =============================================================================

func TestBackpressureDropsWhenQueueFull(t *testing.T) {
	root := t.TempDir()
	var paths []string
	for _, name := range []string{"a", "b", "c"} {
		p := filepath.Join(root, name+".txt")
		createFile(t, p, []byte("payload "+name))
		paths = append(paths, p)
	}

	logger, logBuf := newTestLogger()
	ctrl := make(chan Command, 1)
	w, err := New(testConfig(paths...), ctrl, Options{
		Once:        true,
		QueueSize:   1,
		SendTimeout: 10 * time.Millisecond,
	}, logger, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	// No consumer: the queue fills after the first result.
	w.Run(context.Background())

	results := waitClosed(t, w.Results(), time.Second)
	if len(results) != 1 {
		t.Errorf("expected 1 buffered result, got %d", len(results))
	}
	if !strings.Contains(logBuf.String(), "outbound queue full") {
		t.Errorf("log missing drop warning:\n%s", logBuf.String())
	}
}
