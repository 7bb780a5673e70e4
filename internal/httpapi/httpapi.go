// Package httpapi exposes the VAD Controller's start/stop/status/options
// operations over a local JSON control-plane surface.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nupi-ai/plugin-vad-local-silero/internal/config"
	"github.com/nupi-ai/plugin-vad-local-silero/internal/controller"
)

// partialConfig mirrors config.Config but with every field optional, so
// start/options requests can supply any subset of fields. Presence is
// tracked so unset numeric fields don't overwrite existing config with
// zero values.
type partialConfig struct {
	ListenAddr            *string   `json:"listenAddr,omitempty"`
	LogLevel              *string   `json:"logLevel,omitempty"`
	Rate                  *int      `json:"rate,omitempty"`
	OutDir                *string   `json:"outDir,omitempty"`
	ModelPath             *string   `json:"modelPath,omitempty"`
	SpeechThreshold       *float64  `json:"speechThreshold,omitempty"`
	SilenceThreshold      *float64  `json:"silenceThreshold,omitempty"`
	RequiredSpeechFrames  *int      `json:"requiredSpeechFrames,omitempty"`
	RequiredSilenceFrames *int      `json:"requiredSilenceFrames,omitempty"`
	MicCommand            *string   `json:"micCommand,omitempty"`
	MicArgs               *[]string `json:"micArgs,omitempty"`
}

func (p partialConfig) toConfigAndFields() (config.Config, map[string]bool) {
	var cfg config.Config
	fields := map[string]bool{}

	if p.ListenAddr != nil {
		cfg.ListenAddr = *p.ListenAddr
		fields["listenAddr"] = true
	}
	if p.LogLevel != nil {
		cfg.LogLevel = *p.LogLevel
		fields["logLevel"] = true
	}
	if p.Rate != nil {
		cfg.Rate = *p.Rate
		fields["rate"] = true
	}
	if p.OutDir != nil {
		cfg.OutDir = *p.OutDir
		fields["outDir"] = true
	}
	if p.ModelPath != nil {
		cfg.ModelPath = *p.ModelPath
		fields["modelPath"] = true
	}
	if p.SpeechThreshold != nil {
		cfg.SpeechThreshold = *p.SpeechThreshold
		fields["speechThreshold"] = true
	}
	if p.SilenceThreshold != nil {
		cfg.SilenceThreshold = *p.SilenceThreshold
		fields["silenceThreshold"] = true
	}
	if p.RequiredSpeechFrames != nil {
		cfg.RequiredSpeechFrames = *p.RequiredSpeechFrames
		fields["requiredSpeechFrames"] = true
	}
	if p.RequiredSilenceFrames != nil {
		cfg.RequiredSilenceFrames = *p.RequiredSilenceFrames
		fields["requiredSilenceFrames"] = true
	}
	if p.MicCommand != nil {
		cfg.MicCommand = *p.MicCommand
		fields["micCommand"] = true
	}
	if p.MicArgs != nil {
		cfg.MicArgs = *p.MicArgs
		fields["micArgs"] = true
	}
	return cfg, fields
}

// API wires the VAD Controller to HTTP handlers.
type API struct {
	ctrl *controller.Controller
	log  *slog.Logger
}

// New creates an API bound to ctrl. logger may be nil.
func New(ctrl *controller.Controller, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{ctrl: ctrl, log: logger.With("component", "httpapi")}
}

// Router builds the chi mux for the control surface.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Route("/api/v1/vad", func(r chi.Router) {
		r.Get("/status", a.handleStatus)
		r.Post("/start", a.handleStart)
		r.Post("/stop", a.handleStop)
		r.Get("/options", a.handleGetOptions)
		r.Patch("/options", a.handlePatchOptions)
	})

	return r
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, a.ctrl.Status(), http.StatusOK)
}

func (a *API) handleStart(w http.ResponseWriter, r *http.Request) {
	var partial partialConfig
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
			respondErr(w, "malformed request body: "+err.Error())
			return
		}
	}

	cfg, fields := partial.toConfigAndFields()
	if len(fields) > 0 {
		if err := a.ctrl.Update(cfg, fields); err != nil {
			respondErr(w, err.Error())
			return
		}
	}

	if err := a.ctrl.Start(r.Context()); err != nil {
		respondJSON(w, okResponse{OK: false, Error: err.Error()}, errStatusCode(err))
		return
	}

	respondJSON(w, okStatusResponse{OK: true, Status: a.ctrl.Status()}, http.StatusOK)
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	a.ctrl.Stop()
	respondJSON(w, okStatusResponse{OK: true, Status: a.ctrl.Status()}, http.StatusOK)
}

func (a *API) handleGetOptions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, a.ctrl.Options(), http.StatusOK)
}

func (a *API) handlePatchOptions(w http.ResponseWriter, r *http.Request) {
	var partial partialConfig
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		respondErr(w, "malformed request body: "+err.Error())
		return
	}

	cfg, fields := partial.toConfigAndFields()
	if err := a.ctrl.Update(cfg, fields); err != nil {
		respondErr(w, err.Error())
		return
	}
	respondJSON(w, okResponse{OK: true}, http.StatusOK)
}

type okResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type okStatusResponse struct {
	OK     bool              `json:"ok"`
	Status controller.Status `json:"status"`
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

func respondErr(w http.ResponseWriter, message string) {
	respondJSON(w, okResponse{OK: false, Error: message}, http.StatusBadRequest)
}

// errStatusCode maps controller sentinel errors to the HTTP status code the
// control surface uses for them. Currently all controller errors surface as
// 400; this helper exists so that mapping decision lives in one place if it
// needs to diverge later.
func errStatusCode(err error) int {
	switch {
	case errors.Is(err, controller.ErrAlreadyRunning),
		errors.Is(err, controller.ErrBusyRunning),
		errors.Is(err, controller.ErrModelUnavailable),
		errors.Is(err, controller.ErrMicUnavailable):
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}
