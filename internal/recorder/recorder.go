// Package recorder accumulates frames belonging to one confirmed speech
// segment and flushes them to a WAV file atomically when the segment ends.
package recorder

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/nupi-ai/plugin-vad-local-silero/internal/wav"
)

// timestampLayout matches {YYYY-MM-DD_HH-MM-SS} with zero-padded fields.
const timestampLayout = "2006-01-02_15-04-05"

// Recorder owns the accumulation buffer for one pipeline's in-flight speech
// segment and writes completed segments to outDir. It is not safe for
// concurrent use; the controller serializes calls through the hysteresis
// machine's callbacks on a single goroutine.
type Recorder struct {
	log        *slog.Logger
	outDir     string
	sampleRate int

	recording bool
	buf       [][]int16
	bufLen    int

	nextIndex int

	segmentsSaved   atomic.Int64
	lastSegmentPath atomic.Value // string
}

// New creates a Recorder that writes WAV files into outDir at sampleRate.
// logger may be nil.
func New(outDir string, sampleRate int, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		log:        logger,
		outDir:     outDir,
		sampleRate: sampleRate,
		nextIndex:  1,
	}
	r.lastSegmentPath.Store("")
	return r
}

// BeginSegment allocates an empty frame buffer for a new segment. No-op if
// already recording.
func (r *Recorder) BeginSegment() {
	if r.recording {
		return
	}
	r.recording = true
	r.buf = r.buf[:0]
	r.bufLen = 0
}

// AppendFrame copies frame's samples into the in-progress segment buffer.
// No-op if not recording.
func (r *Recorder) AppendFrame(frame []int16) {
	if !r.recording {
		return
	}
	cp := make([]int16, len(frame))
	copy(cp, frame)
	r.buf = append(r.buf, cp)
	r.bufLen += len(cp)
}

// EndSegment concatenates the accumulated frames, encodes them as a WAV
// file, and writes it atomically under outDir. No-op if not recording. A
// write failure is logged and the segment is discarded; the pipeline
// continues rather than aborting the run over one bad segment.
func (r *Recorder) EndSegment() {
	if !r.recording {
		return
	}
	r.recording = false

	if r.bufLen == 0 {
		r.buf = r.buf[:0]
		return
	}

	samples := make([]int16, 0, r.bufLen)
	for _, frame := range r.buf {
		samples = append(samples, frame...)
	}
	r.buf = r.buf[:0]
	r.bufLen = 0

	index := r.nextIndex
	r.nextIndex++

	name := fmt.Sprintf("segment_%s_%d.wav", time.Now().Format(timestampLayout), index)
	path := filepath.Join(r.outDir, name)

	if err := r.writeAtomic(path, samples); err != nil {
		r.log.Error("failed to write speech segment", "path", path, "error", err)
		return
	}

	r.segmentsSaved.Add(1)
	r.lastSegmentPath.Store(path)
	r.log.Info("wrote speech segment", "path", path, "samples", len(samples))
}

func (r *Recorder) writeAtomic(path string, samples []int16) error {
	data, err := wav.EncodeBytes(samples, r.sampleRate)
	if err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}

	tmp, err := os.CreateTemp(r.outDir, ".segment-*.wav.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// IsRecording reports whether a segment is currently in progress.
func (r *Recorder) IsRecording() bool { return r.recording }

// SegmentsSaved returns the number of segments successfully written so far.
func (r *Recorder) SegmentsSaved() int64 { return r.segmentsSaved.Load() }

// LastSegmentPath returns the path of the most recently written segment, or
// "" if none has been written yet.
func (r *Recorder) LastSegmentPath() string {
	return r.lastSegmentPath.Load().(string)
}
