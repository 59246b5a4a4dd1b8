// Package session is the boundary to the external headful-login driver.
// The core treats login capture as a two-call contract (start, poll result)
// and only ever consumes the opaque session handle it produces; the
// credential observed during login never crosses this boundary.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/operandhq/lpr/internal/core"
)

// CaptureRequest asks the driver to run an observed login.
type CaptureRequest struct {
	ServiceName string        `json:"service_name"`
	LoginURL    string        `json:"login_url"`
	AutoFill    bool          `json:"auto_fill,omitempty"`
	Timeout     time.Duration `json:"timeout"`
}

// CaptureResult is the poll response. Done=false means the login is still
// in progress.
type CaptureResult struct {
	Done       bool    `json:"done"`
	Success    bool    `json:"success"`
	SessionID  string  `json:"session_id,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Method     string  `json:"method,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Driver is the external capture collaborator. Implementations wrap a
// browser-automation service; the stub and static drivers exist for tests
// and single-box deployments.
type Driver interface {
	Start(ctx context.Context, req CaptureRequest) (captureID string, err error)
	Result(ctx context.Context, captureID string) (*CaptureResult, error)
}

var _ core.SessionDirectory = (*Directory)(nil)

// Directory registers sessions reported by the capture driver and resolves
// handles at issuance time.
type Directory struct {
	mu       sync.RWMutex
	sessions map[string]core.Session
}

func NewDirectory() *Directory {
	return &Directory{sessions: make(map[string]core.Session)}
}

// Put registers or replaces a session.
func (d *Directory) Put(s core.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[s.ID] = s
}

func (d *Directory) Resolve(_ context.Context, sessionID string) (*core.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.sessions[sessionID]
	if !ok {
		return nil, core.ErrSessionInvalid
	}
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		return nil, core.ErrSessionInvalid
	}
	cp := s
	return &cp, nil
}
