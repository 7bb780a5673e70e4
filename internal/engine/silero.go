//go:build silero

package engine

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// sileroStateSize is the hidden state dimension per layer. Silero VAD v5
	// uses a combined state tensor of shape [2, 1, 128].
	sileroStateSize = 128
)

// ortInitOnce ensures the ONNX Runtime environment is initialized exactly
// once per process. ortInitErr is cached so subsequent NewSileroEngine
// calls surface the original failure instead of retrying silently.
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// SileroEngine runs Silero VAD v5 inference via ONNX Runtime. Each instance
// owns its own session and tensors; it is not safe for concurrent use from
// multiple goroutines (the pipeline task is the sole caller, per spec).
type SileroEngine struct {
	session *ort.AdvancedSession

	inputTensor *ort.Tensor[float32] // [1, 512]
	stateTensor *ort.Tensor[float32] // [2, 1, 128]
	srTensor    *ort.Tensor[int64]   // [1]

	outputTensor *ort.Tensor[float32] // [1, 1]
	stateNTensor *ort.Tensor[float32] // [2, 1, 128]
}

// NewSileroEngine loads the ONNX model at modelPath and allocates the
// input/output tensors used for every subsequent inference call.
func NewSileroEngine(modelPath string) (*SileroEngine, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, modelPath, err)
	}

	ortInitOnce.Do(func() {
		libPath, err := resolveORTLibPath()
		if err != nil {
			ortInitErr = fmt.Errorf("resolve ORT lib: %w", err)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, ortInitErr)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, FrameSamples))
	if err != nil {
		return nil, fmt.Errorf("%w: create input tensor: %v", ErrModelUnavailable, err)
	}
	stateTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, sileroStateSize))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("%w: create state tensor: %v", ErrModelUnavailable, err)
	}
	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(ExpectedSampleRate)})
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		return nil, fmt.Errorf("%w: create sr tensor: %v", ErrModelUnavailable, err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		return nil, fmt.Errorf("%w: create output tensor: %v", ErrModelUnavailable, err)
	}
	stateNTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, sileroStateSize))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("%w: create stateN tensor: %v", ErrModelUnavailable, err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{inputTensor, stateTensor, srTensor},
		[]ort.Value{outputTensor, stateNTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		stateNTensor.Destroy()
		return nil, fmt.Errorf("%w: create session: %v", ErrModelUnavailable, err)
	}

	return &SileroEngine{
		session:      session,
		inputTensor:  inputTensor,
		stateTensor:  stateTensor,
		srTensor:     srTensor,
		outputTensor: outputTensor,
		stateNTensor: stateNTensor,
	}, nil
}

// Infer runs one inference pass over exactly 512 int16 samples.
func (e *SileroEngine) Infer(frame []int16) (float32, error) {
	if len(frame) != FrameSamples {
		return 0, ErrWrongFrameSize
	}

	dst := e.inputTensor.GetData()
	for i, s := range frame {
		dst[i] = float32(s) / 32768.0
	}

	if err := e.session.Run(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInferenceFailed, err)
	}

	prob := e.outputTensor.GetData()[0]

	// Thread hidden state forward: stateN becomes next call's state.
	copy(e.stateTensor.GetData(), e.stateNTensor.GetData())

	return prob, nil
}

// Reset zeroes the recurrent hidden state tensor.
func (e *SileroEngine) Reset() error {
	clearFloat32Slice(e.stateTensor.GetData())
	return nil
}

// Close releases ONNX Runtime resources. Safe to call multiple times.
func (e *SileroEngine) Close() error {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.stateTensor != nil {
		e.stateTensor.Destroy()
		e.stateTensor = nil
	}
	if e.srTensor != nil {
		e.srTensor.Destroy()
		e.srTensor = nil
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	if e.stateNTensor != nil {
		e.stateNTensor.Destroy()
		e.stateNTensor = nil
	}
	return nil
}

func clearFloat32Slice(s []float32) {
	for i := range s {
		s[i] = 0
	}
}
