package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/operandhq/lpr/internal/core"
)

var _ Driver = (*StaticDriver)(nil)

// StaticDriver completes captures instantly from a configured subject map.
// It stands in for the real browser-automation driver in tests and
// single-box setups; a capture for an unknown service fails.
type StaticDriver struct {
	directory *Directory
	subjects  map[string]string // service -> subject
	ttl       time.Duration

	mu      sync.Mutex
	results map[string]CaptureResult
}

func NewStaticDriver(directory *Directory, subjects map[string]string, sessionTTL time.Duration) *StaticDriver {
	if sessionTTL <= 0 {
		sessionTTL = 30 * time.Minute
	}
	return &StaticDriver{
		directory: directory,
		subjects:  subjects,
		ttl:       sessionTTL,
		results:   make(map[string]CaptureResult),
	}
}

func (d *StaticDriver) Start(_ context.Context, req CaptureRequest) (string, error) {
	captureID := xid.New().String()

	subject, ok := d.subjects[req.ServiceName]
	if !ok {
		d.mu.Lock()
		d.results[captureID] = CaptureResult{
			Done:  true,
			Error: fmt.Sprintf("no login configured for service %q", req.ServiceName),
		}
		d.mu.Unlock()
		return captureID, nil
	}

	now := time.Now()
	sess := core.Session{
		ID:         "sess_" + xid.New().String(),
		Subject:    subject,
		Service:    req.ServiceName,
		Method:     "static",
		Confidence: 1.0,
		CreatedAt:  now,
		ExpiresAt:  now.Add(d.ttl),
	}
	d.directory.Put(sess)

	d.mu.Lock()
	d.results[captureID] = CaptureResult{
		Done:       true,
		Success:    true,
		SessionID:  sess.ID,
		Confidence: sess.Confidence,
		Method:     sess.Method,
	}
	d.mu.Unlock()
	return captureID, nil
}

func (d *StaticDriver) Result(_ context.Context, captureID string) (*CaptureResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, ok := d.results[captureID]
	if !ok {
		return nil, fmt.Errorf("unknown capture id %q", captureID)
	}
	cp := res
	return &cp, nil
}
