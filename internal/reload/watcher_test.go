package reload

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	_ = os.WriteFile(path, []byte("app: {}\n"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 100*time.Millisecond, quietLogger(), func() { calls.Add(1) })
	}()
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		_ = os.WriteFile(path, []byte("app:\n  log_level: debug\n"), 0o644)
		time.Sleep(10 * time.Millisecond)
	}

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return calls.Load() >= 1
	}, "config change not reported")

	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("callbacks = %d, want 1 for one burst", n)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Watch did not stop after cancel")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	_ = os.WriteFile(path, []byte("app: {}\n"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Watch(ctx, path, 50*time.Millisecond, quietLogger(), func() { calls.Add(1) })
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644)
	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("callbacks = %d, want 0", n)
	}
}

func TestWatch_RenameReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	_ = os.WriteFile(path, []byte("app: {}\n"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Watch(ctx, path, 50*time.Millisecond, quietLogger(), func() { calls.Add(1) })
	time.Sleep(100 * time.Millisecond)

	tmp := filepath.Join(dir, ".config.yaml.swp")
	_ = os.WriteFile(tmp, []byte("app:\n  log_level: warn\n"), 0o644)
	_ = os.Rename(tmp, path)

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return calls.Load() >= 1
	}, "rename-replace not reported")
}

func TestWatch_MissingDir(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "config.yaml"), 0, quietLogger(), func() {})
	if err == nil {
		t.Error("expected error for missing directory")
	}
}
