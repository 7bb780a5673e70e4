// Package engine wraps the neural VAD model behind a small inference
// interface. Two implementations exist behind the "silero" build tag: a
// real ONNX Runtime-backed engine and a deterministic stub used for tests
// and for builds without the native runtime compiled in.
package engine

import "errors"

// ExpectedSampleRate is the only sample rate the model accepts.
const ExpectedSampleRate = 16000

// FrameSamples is the number of int16 samples per inference window.
const FrameSamples = 512

var (
	// ErrWrongFrameSize is returned when Infer is called with a frame that
	// is not exactly FrameSamples samples long.
	ErrWrongFrameSize = errors.New("engine: frame must be exactly 512 samples")
	// ErrModelUnavailable indicates the model file is missing or failed to load.
	ErrModelUnavailable = errors.New("engine: model unavailable")
	// ErrInferenceFailed indicates a single inference call raised an error.
	ErrInferenceFailed = errors.New("engine: inference failed")
)

// Engine runs per-frame VAD inference and threads recurrent hidden state
// from one call to the next.
type Engine interface {
	// Infer runs inference on exactly one 512-sample frame and returns the
	// raw speech probability in [0, 1]. The hidden state is threaded
	// internally: call n+1 sees the state produced by call n.
	Infer(frame []int16) (float32, error)
	// Reset zeroes the recurrent hidden state, as at pipeline start.
	Reset() error
	// Close releases any resources (ONNX Runtime session, tensors, ...).
	Close() error
}
