package client

import (
	"context"
	"time"

	"github.com/operandhq/lpr/internal/api"
	"github.com/operandhq/lpr/internal/core"
)

type ListAuditsOpts struct {
	JTI   string
	From  time.Time
	To    time.Time
	Limit int
}

// ListAudits retrieves audit ledger entries. Requires an admin token.
func (c *Client) ListAudits(ctx context.Context, opts ListAuditsOpts) ([]core.AuditEntry, string, error) {
	ub := c.url().setPath(api.AuditRoute)
	if opts.JTI != "" {
		ub = ub.addQueryParam("jti", opts.JTI)
	}
	if !opts.From.IsZero() {
		ub = ub.addQueryParam("from", opts.From.Format(time.RFC3339))
	}
	if !opts.To.IsZero() {
		ub = ub.addQueryParam("to", opts.To.Format(time.RFC3339))
	}
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}

	var result api.AuditListResponse
	correlation, err := c.get(ctx, ub.build(), &result)
	return result.Entries, correlation, err
}

// VerifyAuditChain recomputes the hash chain over an optional sequence range
// server-side and reports the first divergent entry, if any.
func (c *Client) VerifyAuditChain(ctx context.Context, from, to uint64) (*api.AuditVerifyResponse, string, error) {
	ub := c.url().setPath(api.AuditVerifyRoute)
	if from > 0 {
		ub = ub.addQueryParam("from", from)
	}
	if to > 0 {
		ub = ub.addQueryParam("to", to)
	}

	var result api.AuditVerifyResponse
	correlation, err := c.get(ctx, ub.build(), &result)
	if err != nil {
		return nil, correlation, err
	}
	return &result, correlation, nil
}
