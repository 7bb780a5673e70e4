// Package hysteresis implements the dual-threshold, consecutive-frame-count
// state machine that turns a smoothed per-frame speech probability into
// debounced speech-start / speech-end edges.
package hysteresis

import "fmt"

// State is one of the two states the machine can be in.
type State int

const (
	// Idle means no speech segment is currently in progress.
	Idle State = iota
	// Recording means a speech segment is currently in progress.
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	default:
		return "unknown"
	}
}

// Thresholds carries the dual thresholds and confirmation-frame counts that
// parameterize a Machine. SilenceThreshold must be strictly less than
// SpeechThreshold.
type Thresholds struct {
	SpeechThreshold       float32
	SilenceThreshold      float32
	RequiredSpeechFrames  int
	RequiredSilenceFrames int
}

// Validate checks the threshold invariant required by the state machine.
func (t Thresholds) Validate() error {
	if t.SilenceThreshold >= t.SpeechThreshold {
		return fmt.Errorf("hysteresis: silenceThreshold (%v) must be less than speechThreshold (%v)", t.SilenceThreshold, t.SpeechThreshold)
	}
	if t.RequiredSpeechFrames < 1 {
		return fmt.Errorf("hysteresis: requiredSpeechFrames must be >= 1, got %d", t.RequiredSpeechFrames)
	}
	if t.RequiredSilenceFrames < 1 {
		return fmt.Errorf("hysteresis: requiredSilenceFrames must be >= 1, got %d", t.RequiredSilenceFrames)
	}
	return nil
}

// Callbacks are invoked synchronously from within Step as edges fire. Any of
// them may be nil, in which case the corresponding edge is simply not
// reported.
type Callbacks struct {
	// OnSpeechStart fires on the frame that confirms requiredSpeechFrames
	// consecutive frames above SpeechThreshold. That frame is also passed
	// to OnFrame, so the segment always includes the frame that triggered it.
	OnSpeechStart func()
	// OnFrame fires once per frame while in the Recording state, including
	// the frame that triggers OnSpeechStart and the frame that triggers
	// OnSpeechEnd.
	OnFrame func(frame []int16)
	// OnSpeechEnd fires the frame that confirms requiredSilenceFrames
	// consecutive frames below SilenceThreshold.
	OnSpeechEnd func()
}

// Machine is the per-pipeline hysteresis state machine. It is not safe for
// concurrent use; the controller serializes frame delivery.
type Machine struct {
	thresholds Thresholds
	callbacks  Callbacks

	state      State
	speechRun  int
	silenceRun int
}

// New creates a Machine in the Idle state. thresholds must already satisfy
// Validate.
func New(thresholds Thresholds, callbacks Callbacks) *Machine {
	return &Machine{
		thresholds: thresholds,
		callbacks:  callbacks,
		state:      Idle,
	}
}

// State returns the machine's current state.
func (m *Machine) State() State { return m.state }

// Step feeds one smoothed probability and its originating frame through the
// state machine, firing callbacks as edges are confirmed.
func (m *Machine) Step(smoothed float32, frame []int16) {
	switch m.state {
	case Idle:
		m.stepIdle(smoothed, frame)
	case Recording:
		m.stepRecording(smoothed, frame)
	}
}

func (m *Machine) stepIdle(smoothed float32, frame []int16) {
	if smoothed > m.thresholds.SpeechThreshold {
		m.speechRun++
		if m.speechRun >= m.thresholds.RequiredSpeechFrames {
			m.speechRun = 0
			m.state = Recording
			m.silenceRun = 0
			if m.callbacks.OnSpeechStart != nil {
				m.callbacks.OnSpeechStart()
			}
			if m.callbacks.OnFrame != nil {
				m.callbacks.OnFrame(frame)
			}
		}
		return
	}
	m.speechRun = 0
}

func (m *Machine) stepRecording(smoothed float32, frame []int16) {
	if m.callbacks.OnFrame != nil {
		m.callbacks.OnFrame(frame)
	}

	if smoothed < m.thresholds.SilenceThreshold {
		m.silenceRun++
		if m.silenceRun >= m.thresholds.RequiredSilenceFrames {
			m.silenceRun = 0
			m.state = Idle
			m.speechRun = 0
			if m.callbacks.OnSpeechEnd != nil {
				m.callbacks.OnSpeechEnd()
			}
		}
		return
	}
	m.silenceRun = 0
}

// Reset returns the machine to Idle with both counters cleared. It does not
// fire OnSpeechEnd even if currently Recording; callers that need a flush on
// forced reset must trigger it themselves (see the controller's shutdown
// path).
func (m *Machine) Reset() {
	m.state = Idle
	m.speechRun = 0
	m.silenceRun = 0
}
