package hysteresis

import "testing"

func defaultThresholds() Thresholds {
	return Thresholds{
		SpeechThreshold:       0.35,
		SilenceThreshold:      0.05,
		RequiredSpeechFrames:  2,
		RequiredSilenceFrames: 20,
	}
}

func TestThresholdsValidate(t *testing.T) {
	bad := Thresholds{SpeechThreshold: 0.1, SilenceThreshold: 0.2, RequiredSpeechFrames: 1, RequiredSilenceFrames: 1}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error when silenceThreshold >= speechThreshold")
	}
	if err := defaultThresholds().Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestSingleStrayFrameNeverStartsSegment(t *testing.T) {
	var starts int
	m := New(defaultThresholds(), Callbacks{OnSpeechStart: func() { starts++ }})

	for i := 0; i < 10; i++ {
		m.Step(0.05, nil)
	}
	m.Step(0.9, nil) // single stray frame above threshold
	for i := 0; i < 10; i++ {
		m.Step(0.05, nil)
	}

	if starts != 0 {
		t.Fatalf("expected no speech-start from a single stray frame, got %d", starts)
	}
	if m.State() != Idle {
		t.Fatalf("expected Idle, got %v", m.State())
	}
}

func TestSpeechStartAfterRequiredFrames(t *testing.T) {
	var starts int
	var framesSeen [][]int16
	m := New(defaultThresholds(), Callbacks{
		OnSpeechStart: func() { starts++ },
		OnFrame:       func(f []int16) { framesSeen = append(framesSeen, f) },
	})

	f1 := []int16{1}
	f2 := []int16{2}
	m.Step(0.9, f1) // speechRun=1, no transition yet
	if m.State() != Idle {
		t.Fatalf("expected still Idle after first above-threshold frame, got %v", m.State())
	}
	if len(framesSeen) != 0 {
		t.Fatalf("expected no frame recorded before confirmation, got %d", len(framesSeen))
	}

	m.Step(0.9, f2) // speechRun=2, confirms
	if starts != 1 {
		t.Fatalf("expected exactly one speech-start, got %d", starts)
	}
	if m.State() != Recording {
		t.Fatalf("expected Recording, got %v", m.State())
	}
	if len(framesSeen) != 1 || &framesSeen[0][0] != &f2[0] {
		t.Fatalf("expected only the confirming frame to be recorded")
	}
}

func TestMidRangeProbabilityResetsSpeechRunInIdle(t *testing.T) {
	var starts int
	m := New(defaultThresholds(), Callbacks{OnSpeechStart: func() { starts++ }})

	m.Step(0.9, nil)  // speechRun=1
	m.Step(0.1, nil)  // mid-range (between silence and speech threshold): resets speechRun
	m.Step(0.9, nil)  // speechRun=1 again, not yet confirmed
	if starts != 0 {
		t.Fatalf("expected no start yet, got %d starts", starts)
	}
	m.Step(0.9, nil) // speechRun=2, confirms
	if starts != 1 {
		t.Fatalf("expected 1 start, got %d", starts)
	}
}

func TestFullSegmentLifecycle(t *testing.T) {
	th := defaultThresholds()
	var starts, ends int
	var frameCount int
	m := New(th, Callbacks{
		OnSpeechStart: func() { starts++ },
		OnFrame:       func(f []int16) { frameCount++ },
		OnSpeechEnd:   func() { ends++ },
	})

	for i := 0; i < 50; i++ {
		m.Step(0.0, nil)
	}
	if m.State() != Idle {
		t.Fatalf("expected Idle after silence, got %v", m.State())
	}

	for i := 0; i < 100; i++ {
		m.Step(0.9, nil)
	}
	if starts != 1 {
		t.Fatalf("expected exactly 1 speech-start, got %d", starts)
	}
	if m.State() != Recording {
		t.Fatalf("expected Recording, got %v", m.State())
	}

	for i := 0; i < 50; i++ {
		m.Step(0.0, nil)
	}
	if ends != 1 {
		t.Fatalf("expected exactly 1 speech-end, got %d", ends)
	}
	if m.State() != Idle {
		t.Fatalf("expected Idle after end, got %v", m.State())
	}

	// speechRun confirmation consumes 2 frames, the second of which is
	// appended, so 99 frames of the speech block are appended, plus the
	// requiredSilenceFrames (20) appended while draining to silence.
	wantFrames := (100 - th.RequiredSpeechFrames + 1) + th.RequiredSilenceFrames
	if frameCount != wantFrames {
		t.Fatalf("expected %d frames appended, got %d", wantFrames, frameCount)
	}
}

func TestSilenceRunResetsOnMidRangeDuringRecording(t *testing.T) {
	th := defaultThresholds()
	var ends int
	m := New(th, Callbacks{OnSpeechEnd: func() { ends++ }})
	m.Step(0.9, nil)
	m.Step(0.9, nil) // now Recording

	for i := 0; i < th.RequiredSilenceFrames-1; i++ {
		m.Step(0.0, nil)
	}
	m.Step(0.2, nil) // mid-range resets silenceRun
	for i := 0; i < th.RequiredSilenceFrames-1; i++ {
		m.Step(0.0, nil)
	}
	if ends != 0 {
		t.Fatalf("expected no speech-end yet, got %d", ends)
	}
	m.Step(0.0, nil) // completes the run
	if ends != 1 {
		t.Fatalf("expected speech-end, got %d", ends)
	}
}

func TestReset(t *testing.T) {
	m := New(defaultThresholds(), Callbacks{})
	m.Step(0.9, nil)
	m.Step(0.9, nil)
	if m.State() != Recording {
		t.Fatal("expected Recording before reset")
	}
	m.Reset()
	if m.State() != Idle {
		t.Fatal("expected Idle after reset")
	}
}
