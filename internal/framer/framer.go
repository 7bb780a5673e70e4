// Package framer turns an arbitrarily-chunked little-endian s16le PCM byte
// stream into a sequence of fixed-length analysis frames.
package framer

import "log/slog"

// FrameSamples is the fixed number of int16 samples per emitted frame
// (32 ms at 16 kHz).
const FrameSamples = 512

// queueWarnMultiple is the number of FrameSamples-sized frames the ring
// buffer may hold before a warning is logged. This is a soft signal of a
// MalformedStream / backpressure condition (spec §5, §7) — samples are
// never dropped, but sustained growth means the pipeline cannot keep up
// with real-time audio.
const queueWarnMultiple = 32

// Framer accumulates PCM bytes and yields exact FrameSamples-sample frames
// in arrival order. It carries at most one trailing odd byte across calls
// and never drops a sample except a final partial frame at end-of-stream,
// which is simply never emitted.
//
// Samples are held in a ring buffer sized to a small multiple of
// FrameSamples, avoiding a reallocating growing slice under steady load.
type Framer struct {
	log *slog.Logger

	leftover    [1]byte
	haveLeftover bool

	buf   []int16 // ring buffer
	start int     // index of first valid sample
	count int     // number of valid samples currently buffered

	warned bool
}

// New creates a Framer. logger may be nil, in which case warnings about
// sustained queue growth are discarded.
func New(logger *slog.Logger) *Framer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	return &Framer{
		log: logger,
		buf: make([]int16, FrameSamples*queueWarnMultiple*2),
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Push appends a chunk of raw PCM bytes and returns every complete frame
// that can now be formed. Empty chunks are valid and yield no frames.
func (f *Framer) Push(chunk []byte) [][]int16 {
	if len(chunk) == 0 {
		return nil
	}

	// Prepend any leftover byte, then work over an even-length view.
	working := chunk
	if f.haveLeftover {
		working = make([]byte, 0, len(chunk)+1)
		working = append(working, f.leftover[0])
		working = append(working, chunk...)
		f.haveLeftover = false
	}

	usable := working[:len(working)-len(working)%2]
	if len(working)%2 == 1 {
		f.leftover[0] = working[len(working)-1]
		f.haveLeftover = true
	}

	n := len(usable) / 2
	for i := 0; i < n; i++ {
		sample := int16(uint16(usable[2*i]) | uint16(usable[2*i+1])<<8)
		f.push(sample)
	}

	if f.count >= FrameSamples*queueWarnMultiple && !f.warned {
		f.warned = true
		f.log.Warn("sample queue growing beyond capacity threshold; pipeline may be falling behind real-time",
			"queued_samples", f.count,
		)
	} else if f.count < FrameSamples*queueWarnMultiple {
		f.warned = false
	}

	var frames [][]int16
	for f.count >= FrameSamples {
		frame := make([]int16, FrameSamples)
		for i := 0; i < FrameSamples; i++ {
			frame[i] = f.buf[(f.start+i)%len(f.buf)]
		}
		f.start = (f.start + FrameSamples) % len(f.buf)
		f.count -= FrameSamples
		frames = append(frames, frame)
	}

	return frames
}

// push grows the ring buffer if necessary and appends one sample.
func (f *Framer) push(sample int16) {
	if f.count == len(f.buf) {
		grown := make([]int16, len(f.buf)*2)
		for i := 0; i < f.count; i++ {
			grown[i] = f.buf[(f.start+i)%len(f.buf)]
		}
		f.buf = grown
		f.start = 0
	}
	idx := (f.start + f.count) % len(f.buf)
	f.buf[idx] = sample
	f.count++
}

// QueuedSamples returns the number of samples currently buffered and not
// yet emitted as a frame. Exposed for tests and diagnostics; always < 512
// immediately after Push returns, per invariant 1.
func (f *Framer) QueuedSamples() int { return f.count }

// HasLeftoverByte reports whether one odd trailing byte is carried forward.
func (f *Framer) HasLeftoverByte() bool { return f.haveLeftover }
