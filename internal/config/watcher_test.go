package config_test

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/natea/conversational-reflection/internal/config"
)

const watcherBaseYAML = `
server:
  log_level: info
synth:
  name: noop
voices:
  self:
    participant_id: ginger
`

const watcherDebugYAML = `
server:
  log_level: debug
synth:
  name: noop
voices:
  self:
    participant_id: ginger
`

// startWatcher writes content to a temp config file and begins watching it
// at a fast poll interval. The returned path can be rewritten by the test.
func startWatcher(t *testing.T, content string, onChange func(old, new *config.Config)) (*config.Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	rewrite(t, path, content)

	w, err := config.NewWatcher(path, onChange, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, path
}

func rewrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	w, _ := startWatcher(t, watcherBaseYAML, nil)

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current returned nil after initial load")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher("/nonexistent/path.yaml", nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWatcher_ReportsContentChange(t *testing.T) {
	t.Parallel()

	type change struct{ old, new *config.Config }
	changes := make(chan change, 1)
	w, path := startWatcher(t, watcherBaseYAML, func(old, new *config.Config) {
		select {
		case changes <- change{old, new}:
		default:
		}
	})

	time.Sleep(100 * time.Millisecond)
	rewrite(t, path, watcherDebugYAML)

	var got change
	select {
	case got = <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("change callback not invoked")
	}

	if got.old.Server.LogLevel != config.LogInfo {
		t.Errorf("old log_level = %q, want %q", got.old.Server.LogLevel, config.LogInfo)
	}
	if got.new.Server.LogLevel != config.LogDebug {
		t.Errorf("new log_level = %q, want %q", got.new.Server.LogLevel, config.LogDebug)
	}
	if cur := w.Current(); cur.Server.LogLevel != config.LogDebug {
		t.Errorf("Current log_level = %q, want %q", cur.Server.LogLevel, config.LogDebug)
	}
}

func TestWatcher_IgnoresBadEditsAndTouches(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	w, path := startWatcher(t, watcherBaseYAML, func(_, _ *config.Config) {
		calls.Add(1)
	})

	// An edit that fails validation must not replace the running config.
	time.Sleep(100 * time.Millisecond)
	rewrite(t, path, "server:\n  log_level: bananas\n")
	time.Sleep(300 * time.Millisecond)

	if n := calls.Load(); n != 0 {
		t.Errorf("callback fired %d times for invalid config", n)
	}
	if cur := w.Current(); cur.Server.LogLevel != config.LogInfo {
		t.Errorf("Current log_level = %q after invalid edit, want %q", cur.Server.LogLevel, config.LogInfo)
	}

	// Restore valid content, then touch mtime without changing bytes.
	rewrite(t, path, watcherBaseYAML)
	time.Sleep(300 * time.Millisecond)
	calls.Store(0)

	now := time.Now().Add(time.Second)
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatalf("touch: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if n := calls.Load(); n != 0 {
		t.Errorf("callback fired %d times for touch-only mtime bump", n)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	w, _ := startWatcher(t, watcherBaseYAML, nil)
	w.Stop()
	w.Stop()
}
