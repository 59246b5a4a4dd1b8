package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/operandhq/lpr/internal/api/presenter"
	"github.com/operandhq/lpr/internal/session"
)

type StartLoginPayload struct {
	ServiceName    string `json:"service_name"`
	LoginURL       string `json:"login_url"`
	AutoFill       bool   `json:"auto_fill,omitempty"`
	TimeoutSeconds int64  `json:"timeout_seconds,omitempty"`
}

type StartLoginResponse struct {
	CaptureID string `json:"capture_id"`
}

func (s *Server) handleStartLogin(w http.ResponseWriter, r *http.Request) {
	var payload StartLoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		presenter.Error(w, r, "cannot parse request body", http.StatusBadRequest)
		return
	}
	if payload.ServiceName == "" {
		presenter.Error(w, r, "service_name is required", http.StatusBadRequest)
		return
	}

	timeout := 120 * time.Second
	if payload.TimeoutSeconds > 0 {
		timeout = time.Duration(payload.TimeoutSeconds) * time.Second
	}

	captureID, err := s.driver.Start(r.Context(), session.CaptureRequest{
		ServiceName: payload.ServiceName,
		LoginURL:    payload.LoginURL,
		AutoFill:    payload.AutoFill,
		Timeout:     timeout,
	})
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("service", payload.ServiceName).Msg("failed to start login capture")
		presenter.Error(w, r, "failed to start login capture", http.StatusInternalServerError)
		return
	}

	log.Ctx(r.Context()).Info().
		Str("capture_id", captureID).
		Str("service", payload.ServiceName).
		Msg("login capture started")
	presenter.JSON(w, r, StartLoginResponse{CaptureID: captureID}, http.StatusAccepted)
}

func (s *Server) handleLoginResult(w http.ResponseWriter, r *http.Request) {
	captureID := r.PathValue("capture_id")
	if captureID == "" {
		presenter.Error(w, r, "capture_id is required", http.StatusBadRequest)
		return
	}

	res, err := s.driver.Result(r.Context(), captureID)
	if err != nil {
		presenter.Error(w, r, "unknown capture id", http.StatusNotFound)
		return
	}
	presenter.JSON(w, r, res, http.StatusOK)
}
