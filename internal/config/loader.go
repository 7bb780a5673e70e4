package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Loader loads configuration from environment variables. Tests can override
// Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)
}

// Load retrieves the service configuration from environment variables,
// layering defaults, then an optional JSON blob, then per-field overrides.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := Config{
		ListenAddr:            DefaultListenAddr,
		LogLevel:              DefaultLogLevel,
		Rate:                  DefaultSampleRate,
		OutDir:                DefaultOutDir,
		ModelPath:             DefaultModelPath,
		SpeechThreshold:       DefaultSpeechThreshold,
		SilenceThreshold:      DefaultSilenceThreshold,
		RequiredSpeechFrames:  DefaultRequiredSpeechFrames,
		RequiredSilenceFrames: DefaultRequiredSilenceFrames,
		MicCommand:            DefaultMicCommand,
	}

	if raw, ok := l.Lookup("VAD_SERVICE_CONFIG"); ok && strings.TrimSpace(raw) != "" {
		if err := applyJSON(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	if port, ok := l.Lookup("PORT"); ok && strings.TrimSpace(port) != "" {
		cfg.ListenAddr = "localhost:" + strings.TrimSpace(port)
	}
	overrideString(l.Lookup, "VAD_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(l.Lookup, "VAD_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "VAD_OUT_DIR", &cfg.OutDir)
	overrideString(l.Lookup, "VAD_MODEL_PATH", &cfg.ModelPath)
	overrideString(l.Lookup, "VAD_MIC_COMMAND", &cfg.MicCommand)

	if value, ok := l.Lookup("VAD_MIC_ARGS"); ok && strings.TrimSpace(value) != "" {
		cfg.MicArgs = strings.Fields(value)
	}

	if err := overrideInt(l.Lookup, "VAD_RATE", &cfg.Rate); err != nil {
		return Config{}, err
	}
	if err := overrideFloat(l.Lookup, "VAD_SPEECH_THRESHOLD", &cfg.SpeechThreshold); err != nil {
		return Config{}, err
	}
	if err := overrideFloat(l.Lookup, "VAD_SILENCE_THRESHOLD", &cfg.SilenceThreshold); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "VAD_REQUIRED_SPEECH_FRAMES", &cfg.RequiredSpeechFrames); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "VAD_REQUIRED_SILENCE_FRAMES", &cfg.RequiredSilenceFrames); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyJSON(raw string, cfg *Config) error {
	type jsonConfig struct {
		ListenAddr            string   `json:"listen_addr"`
		LogLevel              string   `json:"log_level"`
		Rate                  *int     `json:"rate"`
		OutDir                string   `json:"out_dir"`
		ModelPath             string   `json:"model_path"`
		SpeechThreshold       *float64 `json:"speech_threshold"`
		SilenceThreshold      *float64 `json:"silence_threshold"`
		RequiredSpeechFrames  *int     `json:"required_speech_frames"`
		RequiredSilenceFrames *int     `json:"required_silence_frames"`
		MicCommand            string   `json:"mic_command"`
		MicArgs               []string `json:"mic_args"`
	}
	var payload jsonConfig
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("config: decode VAD_SERVICE_CONFIG: %w", err)
	}
	if payload.ListenAddr != "" {
		cfg.ListenAddr = payload.ListenAddr
	}
	if payload.LogLevel != "" {
		cfg.LogLevel = payload.LogLevel
	}
	if payload.OutDir != "" {
		cfg.OutDir = payload.OutDir
	}
	if payload.ModelPath != "" {
		cfg.ModelPath = payload.ModelPath
	}
	if payload.MicCommand != "" {
		cfg.MicCommand = payload.MicCommand
	}
	if payload.MicArgs != nil {
		cfg.MicArgs = payload.MicArgs
	}
	if payload.Rate != nil {
		cfg.Rate = *payload.Rate
	}
	if payload.SpeechThreshold != nil {
		cfg.SpeechThreshold = *payload.SpeechThreshold
	}
	if payload.SilenceThreshold != nil {
		cfg.SilenceThreshold = *payload.SilenceThreshold
	}
	if payload.RequiredSpeechFrames != nil {
		cfg.RequiredSpeechFrames = *payload.RequiredSpeechFrames
	}
	if payload.RequiredSilenceFrames != nil {
		cfg.RequiredSilenceFrames = *payload.RequiredSilenceFrames
	}
	return nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideFloat(lookup func(string) (string, bool), key string, target *float64) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}
