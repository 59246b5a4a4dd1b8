package client

import (
	"context"

	"github.com/operandhq/lpr/internal/api"
	"github.com/operandhq/lpr/internal/session"
)

// StartLogin asks the server to begin an observed login capture and returns
// the capture id to poll.
func (c *Client) StartLogin(ctx context.Context, payload api.StartLoginPayload) (string, string, error) {
	var result api.StartLoginResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.VisibleLoginRoute).
		build(), payload, &result)
	return result.CaptureID, correlation, err
}

// LoginResult polls a capture. Done=false means the login is still running.
func (c *Client) LoginResult(ctx context.Context, captureID string) (*session.CaptureResult, string, error) {
	var result session.CaptureResult
	correlation, err := c.get(ctx, c.url().
		setPath(api.VisibleLoginResultRoute).
		setPathParam("capture_id", captureID).
		build(), &result)
	if err != nil {
		return nil, correlation, err
	}
	return &result, correlation, nil
}
