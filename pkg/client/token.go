package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/operandhq/lpr/internal/api"
	"github.com/operandhq/lpr/internal/core"
	"github.com/operandhq/lpr/internal/issuer"
	"github.com/operandhq/lpr/internal/verifier"
)

// IssueToken requests a new capability token for a captured login session.
func (c *Client) IssueToken(ctx context.Context, payload api.IssuePayload) (*issuer.Result, string, error) {
	var result issuer.Result
	correlation, err := c.post(ctx, c.url().
		setPath(api.IssueRoute).
		build(), payload, &result)
	if err != nil {
		return nil, correlation, err
	}
	return &result, correlation, nil
}

// Verify asks the server whether a concrete proxied request is permitted
// under the given token. Deny outcomes come back as a Result with the reason
// code set, not as an error; the server signals them with 403/429 which this
// method decodes rather than rejects.
func (c *Client) Verify(ctx context.Context, payload api.VerifyPayload) (*verifier.Result, string, error) {
	marshalled, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url().
		setPath(api.VerifyRoute).
		build(), bytes.NewReader(marshalled))
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("connection failed: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	correlation := correlationFromResponse(resp)
	switch resp.StatusCode {
	case http.StatusOK, http.StatusForbidden, http.StatusTooManyRequests:
		var result verifier.Result
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, correlation, fmt.Errorf("failed to decode response: %w", err)
		}
		return &result, correlation, nil
	default:
		return nil, correlation, parseErrorResponse(resp)
	}
}

// RevokeToken revokes a token by jti. Revoking an already revoked token
// succeeds.
func (c *Client) RevokeToken(ctx context.Context, jti, reason string) (string, error) {
	var result api.RevokeResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.RevokeRoute).
		build(), api.RevokePayload{JTI: jti, Reason: reason}, &result)
	if err != nil {
		return correlation, err
	}
	if !result.Revoked {
		return correlation, fmt.Errorf("unexpected revoke response for %s", jti)
	}
	return correlation, nil
}

// ListActiveTokens retrieves the active tokens, optionally for one subject.
// Requires an admin token.
func (c *Client) ListActiveTokens(ctx context.Context, subject string) ([]core.Token, string, error) {
	ub := c.url().setPath(api.ListTokensRoute)
	if subject != "" {
		ub = ub.addQueryParam("subject", subject)
	}
	var result api.ListTokensResponse
	correlation, err := c.get(ctx, ub.build(), &result)
	return result.Tokens, correlation, err
}
