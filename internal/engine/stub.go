package engine

// StubToggleInterval is the number of frames after which the stub engine
// toggles between a high and a low probability.
const StubToggleInterval = 50

// StubHighProb and StubLowProb are the fixed probabilities the stub engine
// alternates between. They straddle the default speech/silence thresholds
// so the stub exercises both sides of the hysteresis state machine.
const (
	StubHighProb float32 = 0.9
	StubLowProb  float32 = 0.01
)

// StubEngine returns deterministic probabilities by alternating between
// StubHighProb and StubLowProb every StubToggleInterval frames. It does not
// look at the frame contents and performs no real inference; it exists for
// tests and for builds without the native "silero" tag compiled in.
type StubEngine struct {
	counter int
	high    bool
}

// NewStubEngine creates a StubEngine starting in the low-probability state.
func NewStubEngine() *StubEngine {
	return &StubEngine{}
}

// Infer ignores the frame contents and returns the current alternating
// probability, toggling state every StubToggleInterval calls.
func (e *StubEngine) Infer(frame []int16) (float32, error) {
	if len(frame) != FrameSamples {
		return 0, ErrWrongFrameSize
	}
	e.counter++
	if e.counter >= StubToggleInterval {
		e.counter = 0
		e.high = !e.high
	}
	if e.high {
		return StubHighProb, nil
	}
	return StubLowProb, nil
}

// Reset returns the engine to its initial state (low, counter zero).
func (e *StubEngine) Reset() error {
	e.counter = 0
	e.high = false
	return nil
}

// Close is a no-op for the stub engine.
func (e *StubEngine) Close() error {
	return nil
}
