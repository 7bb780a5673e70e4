// Package controller owns the end-to-end streaming VAD pipeline: spawning
// the microphone child process, framing its stdout into analysis windows,
// running model inference, smoothing and hysteresis, and flushing confirmed
// speech segments to disk. It also serializes and publishes the start/stop/
// status/update control-plane operations described by the control surface.
package controller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/nupi-ai/plugin-vad-local-silero/internal/config"
	"github.com/nupi-ai/plugin-vad-local-silero/internal/engine"
	"github.com/nupi-ai/plugin-vad-local-silero/internal/framer"
	"github.com/nupi-ai/plugin-vad-local-silero/internal/hysteresis"
	"github.com/nupi-ai/plugin-vad-local-silero/internal/recorder"
	"github.com/nupi-ai/plugin-vad-local-silero/internal/smoother"
)

// Sentinel errors surfaced to control-plane callers, per the error kinds
// contract: AlreadyRunning and BusyRunning are non-fatal and returned
// directly; ModelUnavailable and MicUnavailable abort start() before
// running flips true.
var (
	ErrAlreadyRunning   = errors.New("controller: already running")
	ErrBusyRunning      = errors.New("controller: cannot update options while running")
	ErrModelUnavailable = errors.New("controller: model unavailable")
	ErrMicUnavailable   = errors.New("controller: microphone process unavailable")
)

// readChunkBytes bounds a single stdout read. It is not a protocol
// boundary — any size works since the framer carries partial samples
// across calls — just a reasonable buffer size for a real-time byte stream.
const readChunkBytes = 4096

// Status is a point-in-time snapshot of the controller's state, mirroring
// the control surface's status response.
type Status struct {
	Running         bool   `json:"running"`
	SegmentsSaved   int64  `json:"segmentsSaved"`
	LastSegmentPath string `json:"lastSegmentPath"`
}

// EngineFactory constructs a fresh Engine for one pipeline run. Bootstrap
// code resolves which concrete engine (native Silero or stub) to use and
// closes over that decision; the controller only needs a fresh instance per
// start so recurrent hidden state always begins at zero.
type EngineFactory func() (engine.Engine, error)

// Controller is the VAD Controller described by the control surface: it
// owns exactly one pipeline run at a time and exposes start/stop/status/
// update.
type Controller struct {
	log        *slog.Logger
	newEngine  EngineFactory

	mu      sync.Mutex // serializes start/stop/update against each other
	cfg     config.Config
	running atomic.Bool

	// recorder is set at the start of each run and retained after the run
	// ends so Status can still report segmentsSaved/lastSegmentPath.
	// Published via atomic.Pointer so Status reads never block on mu.
	recorder atomic.Pointer[recorder.Recorder]

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Controller with the given initial configuration. cfg must
// already satisfy config.Config.Validate.
func New(cfg config.Config, newEngine EngineFactory, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		log:       logger.With("component", "controller"),
		newEngine: newEngine,
		cfg:       cfg,
	}
}

// Status returns a snapshot of the controller's current state. Non-blocking
// relative to the pipeline task.
func (c *Controller) Status() Status {
	rec := c.recorder.Load()

	st := Status{Running: c.running.Load()}
	if rec != nil {
		st.SegmentsSaved = rec.SegmentsSaved()
		st.LastSegmentPath = rec.LastSegmentPath()
	}
	return st
}

// Update merges partial configuration into the controller's stored config.
// Only legal while not running.
func (c *Controller) Update(partial config.Config, fields map[string]bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running.Load() {
		return ErrBusyRunning
	}

	next := c.cfg
	if fields["listenAddr"] {
		next.ListenAddr = partial.ListenAddr
	}
	if fields["logLevel"] {
		next.LogLevel = partial.LogLevel
	}
	if fields["rate"] {
		next.Rate = partial.Rate
	}
	if fields["outDir"] {
		next.OutDir = partial.OutDir
	}
	if fields["modelPath"] {
		next.ModelPath = partial.ModelPath
	}
	if fields["speechThreshold"] {
		next.SpeechThreshold = partial.SpeechThreshold
	}
	if fields["silenceThreshold"] {
		next.SilenceThreshold = partial.SilenceThreshold
	}
	if fields["requiredSpeechFrames"] {
		next.RequiredSpeechFrames = partial.RequiredSpeechFrames
	}
	if fields["requiredSilenceFrames"] {
		next.RequiredSilenceFrames = partial.RequiredSilenceFrames
	}
	if fields["micCommand"] {
		next.MicCommand = partial.MicCommand
	}
	if fields["micArgs"] {
		next.MicArgs = partial.MicArgs
	}

	if err := next.Validate(); err != nil {
		return err
	}
	c.cfg = next
	return nil
}

// Options returns the controller's current configuration, for the options
// GET/PATCH endpoints.
func (c *Controller) Options() config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Start begins a new pipeline run: it ensures outDir exists, builds a fresh
// engine, spawns the microphone child process, and launches the pipeline
// goroutine. It returns once the child process has started, not once the
// pipeline has finished.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running.Load() {
		return ErrAlreadyRunning
	}

	cfg := c.cfg

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("%w: create outDir: %v", ErrModelUnavailable, err)
	}

	eng, err := c.newEngine()
	if err != nil {
		c.log.Error("engine unavailable", "error", err)
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	var cmd *exec.Cmd
	var stdout io.ReadCloser
	if cfg.MicCommand != "" {
		cmd = exec.Command(cfg.MicCommand, cfg.MicArgs...)
		stdout, err = cmd.StdoutPipe()
		if err != nil {
			eng.Close()
			return fmt.Errorf("%w: stdout pipe: %v", ErrMicUnavailable, err)
		}
		if err := cmd.Start(); err != nil {
			eng.Close()
			return fmt.Errorf("%w: %v", ErrMicUnavailable, err)
		}
	}

	rec := recorder.New(cfg.OutDir, cfg.Rate, c.log)
	c.recorder.Store(rec)

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	c.running.Store(true)
	c.log.Info("pipeline starting",
		"out_dir", cfg.OutDir,
		"model_path", cfg.ModelPath,
		"speech_threshold", cfg.SpeechThreshold,
		"silence_threshold", cfg.SilenceThreshold,
	)

	go c.runPipeline(runCtx, cfg, eng, cmd, stdout, rec)

	return nil
}

// Stop requests termination of the in-progress pipeline run, if any, and
// waits for it to finish (performing its final flush). Idempotent: calling
// Stop when not running is a no-op. Stop never returns an error; teardown
// failures are logged and swallowed, per the propagation policy.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running.Load() {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (c *Controller) runPipeline(ctx context.Context, cfg config.Config, eng engine.Engine, cmd *exec.Cmd, stdout io.ReadCloser, rec *recorder.Recorder) {
	defer close(c.done)
	defer c.running.Store(false)
	defer eng.Close()

	defer func() {
		if rec.IsRecording() {
			rec.EndSegment()
		}
	}()

	// Terminate the child process and unblock the stdout read when the
	// context is cancelled (Stop was called).
	stopSignaled := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if cmd != nil && cmd.Process != nil {
				_ = cmd.Process.Signal(syscall.SIGTERM)
			}
		case <-stopSignaled:
		}
	}()
	defer close(stopSignaled)

	th := hysteresis.Thresholds{
		SpeechThreshold:       float32(cfg.SpeechThreshold),
		SilenceThreshold:      float32(cfg.SilenceThreshold),
		RequiredSpeechFrames:  cfg.RequiredSpeechFrames,
		RequiredSilenceFrames: cfg.RequiredSilenceFrames,
	}
	hm := hysteresis.New(th, hysteresis.Callbacks{
		OnSpeechStart: rec.BeginSegment,
		OnFrame:       rec.AppendFrame,
		OnSpeechEnd:   rec.EndSegment,
	})

	fr := framer.New(c.log)
	sm := smoother.New()

	var pipelineErr error
	if stdout != nil {
		pipelineErr = c.drain(ctx, stdout, fr, eng, sm, hm)
	} else {
		<-ctx.Done()
	}

	if cmd != nil {
		_ = cmd.Wait()
	}

	if pipelineErr != nil {
		c.log.Error("pipeline exited with error", "error", pipelineErr)
	} else {
		c.log.Info("pipeline stopped")
	}
}

// drain reads the child's stdout until EOF, an error, or ctx cancellation,
// framing and running each complete frame through inference, smoothing, and
// the hysteresis machine in stream order.
func (c *Controller) drain(ctx context.Context, stdout io.ReadCloser, fr *framer.Framer, eng engine.Engine, sm *smoother.Smoother, hm *hysteresis.Machine) error {
	reader := bufio.NewReaderSize(stdout, readChunkBytes)
	buf := make([]byte, readChunkBytes)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := reader.Read(buf)
		if n > 0 {
			frames := fr.Push(buf[:n])
			for _, frame := range frames {
				prob, infErr := eng.Infer(frame)
				if infErr != nil {
					return fmt.Errorf("inference failed: %w", infErr)
				}
				smoothed := sm.Push(prob)
				hm.Step(smoothed, frame)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
