package controller

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nupi-ai/plugin-vad-local-silero/internal/config"
	"github.com/nupi-ai/plugin-vad-local-silero/internal/engine"
)

func stubFactory() EngineFactory {
	return func() (engine.Engine, error) { return engine.NewStubEngine(), nil }
}

func testConfig(t *testing.T, micPath string) config.Config {
	t.Helper()
	return config.Config{
		ListenAddr:            config.DefaultListenAddr,
		LogLevel:              "error",
		Rate:                  16000,
		OutDir:                t.TempDir(),
		ModelPath:             "unused-in-stub-tests",
		SpeechThreshold:       0.35,
		SilenceThreshold:      0.05,
		RequiredSpeechFrames:  2,
		RequiredSilenceFrames: 20,
		MicCommand:            "cat",
		MicArgs:               []string{micPath},
	}
}

// writePCMFile writes n*engine.FrameSamples int16 samples (content doesn't
// matter: the stub engine ignores frame contents and alternates purely on a
// frame counter) to a temp file and returns its path.
func writePCMFile(t *testing.T, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mic.pcm")
	data := make([]byte, frames*engine.FrameSamples*2)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitUntilStopped(t *testing.T, c *Controller) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !c.Status().Running {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for pipeline to stop")
}

func TestControllerOneCleanSegment(t *testing.T) {
	// StubEngine toggles on every StubToggleInterval-th (50th) call, starting
	// low: frames 0-48 low, 49-98 high, 99-148 low, 149 high.
	path := writePCMFile(t, 150)
	cfg := testConfig(t, path)
	c := New(cfg, stubFactory(), nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitUntilStopped(t, c)

	st := c.Status()
	if st.SegmentsSaved != 1 {
		t.Fatalf("expected 1 segment saved, got %d", st.SegmentsSaved)
	}
	if st.LastSegmentPath == "" {
		t.Fatal("expected a non-empty last segment path")
	}
	if _, err := os.Stat(st.LastSegmentPath); err != nil {
		t.Fatalf("expected segment file to exist: %v", err)
	}
}

func TestControllerAlreadyRunning(t *testing.T) {
	path := writePCMFile(t, 1000)
	cfg := testConfig(t, path)
	c := New(cfg, stubFactory(), nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	if err := c.Start(context.Background()); err != ErrAlreadyRunning {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestControllerStopIsIdempotent(t *testing.T) {
	c := New(testConfig(t, writePCMFile(t, 10)), stubFactory(), nil)
	c.Stop()
	c.Stop()
}

func TestControllerUpdateRejectedWhileRunning(t *testing.T) {
	path := writePCMFile(t, 1000)
	cfg := testConfig(t, path)
	c := New(cfg, stubFactory(), nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	err := c.Update(config.Config{OutDir: "/tmp/elsewhere"}, map[string]bool{"outDir": true})
	if err != ErrBusyRunning {
		t.Fatalf("expected ErrBusyRunning, got %v", err)
	}
}

func TestControllerUpdateAppliesWhenIdle(t *testing.T) {
	c := New(testConfig(t, writePCMFile(t, 1)), stubFactory(), nil)

	newDir := t.TempDir()
	err := c.Update(config.Config{OutDir: newDir}, map[string]bool{"outDir": true})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := c.Options().OutDir; got != newDir {
		t.Fatalf("expected OutDir %q, got %q", newDir, got)
	}
}

func TestControllerUpdateValidatesResult(t *testing.T) {
	c := New(testConfig(t, writePCMFile(t, 1)), stubFactory(), nil)
	err := c.Update(config.Config{SpeechThreshold: 0.01, SilenceThreshold: 0.5}, map[string]bool{
		"speechThreshold":  true,
		"silenceThreshold": true,
	})
	if err == nil {
		t.Fatal("expected validation error for inverted thresholds")
	}
}

func TestControllerModelUnavailable(t *testing.T) {
	cfg := testConfig(t, writePCMFile(t, 1))
	failingFactory := func() (engine.Engine, error) { return nil, os.ErrNotExist }
	c := New(cfg, failingFactory, nil)

	err := c.Start(context.Background())
	if err == nil {
		t.Fatal("expected error when engine factory fails")
	}
	if c.Status().Running {
		t.Fatal("expected controller not running after failed start")
	}
}

func TestControllerMicUnavailable(t *testing.T) {
	cfg := testConfig(t, writePCMFile(t, 1))
	cfg.MicCommand = "/nonexistent/binary/that/does/not/exist"
	c := New(cfg, stubFactory(), nil)

	err := c.Start(context.Background())
	if err == nil {
		t.Fatal("expected error when mic command cannot be spawned")
	}
	if c.Status().Running {
		t.Fatal("expected controller not running after failed start")
	}
}

func TestControllerStopFlushesInProgressSegment(t *testing.T) {
	// 70 frames: low (0-48), then high starting at frame 49, well past the
	// speech confirmation point (frame 51 given the 5-frame smoothing
	// window and requiredSpeechFrames=2). After the file is exhausted the
	// mic command hangs instead of exiting, so the only way stdout reaches
	// EOF is the SIGTERM Stop() sends — this exercises Stop() interrupting
	// an in-progress segment, not EndSegment's own EOF-triggered flush.
	path := writePCMFile(t, 70)
	cfg := testConfig(t, path)
	cfg.MicCommand = "sh"
	cfg.MicArgs = []string{"-c", fmt.Sprintf("cat %q; exec sleep 5", path)}
	c := New(cfg, stubFactory(), nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Give the pipeline time to drain the file and confirm speech start.
	time.Sleep(50 * time.Millisecond)
	c.Stop()

	if c.Status().Running {
		t.Fatal("expected controller stopped after Stop()")
	}

	st := c.Status()
	if st.SegmentsSaved != 1 {
		t.Fatalf("expected 1 segment saved, got %d", st.SegmentsSaved)
	}
	if st.LastSegmentPath == "" {
		t.Fatal("expected a non-empty last segment path")
	}
	if _, err := os.Stat(st.LastSegmentPath); err != nil {
		t.Fatalf("expected flushed segment file to exist: %v", err)
	}
}
