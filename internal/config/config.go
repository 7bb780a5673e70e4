// Package config loads the VAD service's configuration from layered
// defaults, a JSON environment blob, and per-field environment overrides.
package config

import "fmt"

const (
	DefaultListenAddr            = "localhost:5173"
	DefaultLogLevel               = "info"
	DefaultSampleRate             = 16000
	DefaultOutDir                 = "./segments"
	DefaultModelPath              = "./models/silero_vad.onnx"
	DefaultSpeechThreshold        = 0.35
	DefaultSilenceThreshold       = 0.05
	DefaultRequiredSpeechFrames   = 2
	DefaultRequiredSilenceFrames  = 20
	DefaultMicCommand             = ""
)

// Config holds the VAD service's configuration.
type Config struct {
	ListenAddr string `json:"listen_addr"`
	LogLevel   string `json:"log_level"`

	Rate      int    `json:"rate"`
	OutDir    string `json:"out_dir"`
	ModelPath string `json:"model_path"`

	SpeechThreshold       float64 `json:"speech_threshold"`
	SilenceThreshold      float64 `json:"silence_threshold"`
	RequiredSpeechFrames  int     `json:"required_speech_frames"`
	RequiredSilenceFrames int     `json:"required_silence_frames"`

	// MicCommand, if set, is the executable spawned to produce the raw
	// PCM byte stream on its stdout. MicArgs are its arguments.
	MicCommand string   `json:"mic_command"`
	MicArgs    []string `json:"mic_args"`
}

// Validate checks the cross-field invariants the pipeline depends on.
func (c Config) Validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("config: rate must be positive, got %d", c.Rate)
	}
	if c.OutDir == "" {
		return fmt.Errorf("config: outDir must not be empty")
	}
	if c.ModelPath == "" {
		return fmt.Errorf("config: modelPath must not be empty")
	}
	if c.SilenceThreshold >= c.SpeechThreshold {
		return fmt.Errorf("config: silenceThreshold (%v) must be less than speechThreshold (%v)", c.SilenceThreshold, c.SpeechThreshold)
	}
	if c.RequiredSpeechFrames < 1 {
		return fmt.Errorf("config: requiredSpeechFrames must be >= 1, got %d", c.RequiredSpeechFrames)
	}
	if c.RequiredSilenceFrames < 1 {
		return fmt.Errorf("config: requiredSilenceFrames must be >= 1, got %d", c.RequiredSilenceFrames)
	}
	return nil
}
