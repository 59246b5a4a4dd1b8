package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/operandhq/lpr/internal/api/middleware"
	"github.com/operandhq/lpr/internal/api/presenter"
	"github.com/operandhq/lpr/internal/core"
	"github.com/operandhq/lpr/internal/issuer"
	"github.com/operandhq/lpr/internal/verifier"
)

// TokenScheme prefixes capability tokens in the Authorization header so they
// cannot be confused with ordinary bearer tokens.
const TokenScheme = "LPR-"

type IssuePayload struct {
	SessionID   string                 `json:"session_id"`
	Service     string                 `json:"service,omitempty"`
	Scopes      []core.Scope           `json:"scopes"`
	Origins     []string               `json:"origins"`
	TTLSeconds  int64                  `json:"ttl_seconds"`
	Policy      *core.Policy           `json:"policy,omitempty"`
	Fingerprint core.DeviceFingerprint `json:"device_fingerprint,omitempty"`
	Purpose     string                 `json:"purpose,omitempty"`
	Consent     bool                   `json:"consent"`
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	var payload IssuePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		presenter.Error(w, r, "cannot parse request body", http.StatusBadRequest)
		return
	}

	res, err := s.service.IssueToken(r.Context(), issuer.Request{
		SessionID:     payload.SessionID,
		Service:       payload.Service,
		Scopes:        payload.Scopes,
		Origins:       payload.Origins,
		TTLSeconds:    payload.TTLSeconds,
		Policy:        payload.Policy,
		Fingerprint:   payload.Fingerprint,
		Purpose:       payload.Purpose,
		Consent:       payload.Consent,
		CorrelationID: middleware.CorrelationCtx(r.Context()),
	})
	if err != nil {
		presenter.Err(w, r, err, "cannot issue token")
		return
	}

	log.Ctx(r.Context()).Info().
		Str("jti", res.JTI).
		Time("expires_at", res.ExpiresAt).
		Msg("token issued")
	presenter.JSON(w, r, res, http.StatusCreated)
}

type VerifyPayload struct {
	Token       string                 `json:"token,omitempty"`
	Method      string                 `json:"method"`
	URL         string                 `json:"url"`
	Origin      string                 `json:"origin"`
	Fingerprint core.DeviceFingerprint `json:"device_fingerprint,omitempty"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var payload VerifyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		presenter.Error(w, r, "cannot parse request body", http.StatusBadRequest)
		return
	}

	token := payload.Token
	if token == "" {
		token = tokenFromHeaders(r)
	}
	if token == "" {
		presenter.Error(w, r, "token is required", http.StatusBadRequest)
		return
	}

	res, err := s.service.VerifyRequest(r.Context(), verifier.Request{
		Token:         token,
		Method:        payload.Method,
		URL:           payload.URL,
		Origin:        payload.Origin,
		Fingerprint:   payload.Fingerprint,
		CorrelationID: middleware.CorrelationCtx(r.Context()),
	})
	if err != nil {
		presenter.Err(w, r, err, "cannot verify request")
		return
	}

	status := http.StatusOK
	if !res.Valid {
		// deny is a successful verification with a negative outcome
		status = http.StatusForbidden
		if res.Reason == core.ReasonRateLimited {
			status = http.StatusTooManyRequests
			w.Header().Set("Retry-After", retryAfterSeconds(res.RetryAfter))
		}
	}
	presenter.JSON(w, r, res, status)
}

// tokenFromHeaders pulls the capability token from the Authorization header
// (scheme-prefixed) or the X-LPR-Token fallback.
func tokenFromHeaders(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if bearer, ok := strings.CutPrefix(auth, "Bearer "); ok {
		if tok, ok := strings.CutPrefix(bearer, TokenScheme); ok {
			return tok
		}
	}
	return r.Header.Get("X-LPR-Token")
}

// retryAfterSeconds renders a duration as whole seconds, rounded up, for
// the Retry-After header.
func retryAfterSeconds(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

type RevokePayload struct {
	JTI    string `json:"jti"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var payload RevokePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		presenter.Error(w, r, "cannot parse request body", http.StatusBadRequest)
		return
	}

	err := s.service.RevokeToken(r.Context(), payload.JTI, payload.Reason,
		middleware.CorrelationCtx(r.Context()))
	if err != nil {
		presenter.Err(w, r, err, "cannot revoke token")
		return
	}

	log.Ctx(r.Context()).Info().Str("jti", payload.JTI).Msg("token revoked")
	presenter.JSON(w, r, RevokeResponse{JTI: payload.JTI, Revoked: true}, http.StatusOK)
}

type RevokeResponse struct {
	JTI     string `json:"jti"`
	Revoked bool   `json:"revoked"`
}

type ListTokensResponse struct {
	Tokens []core.Token `json:"tokens"`
	Count  int          `json:"count"`
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")

	tokens, err := s.service.ListTokens(r.Context(), subject)
	if err != nil {
		presenter.Err(w, r, err, "cannot list tokens")
		return
	}
	presenter.JSON(w, r, ListTokensResponse{Tokens: tokens, Count: len(tokens)}, http.StatusOK)
}
