package core

import "time"

// EventType classifies audit ledger events.
type EventType string

const (
	EventIssue         EventType = "issue"
	EventVerifySuccess EventType = "verify_success"
	EventVerifyFail    EventType = "verify_fail"
	EventRevoke        EventType = "revoke"
	EventExpireSweep   EventType = "expire_sweep"
)

// Event is the payload appended to the audit ledger. Its canonical
// serialization is the input to the chain hash, so every field here is
// covered by tamper detection.
type Event struct {
	// Type describes what happened.
	Type EventType `json:"type"`

	// JTI is the token the event concerns. Empty for sweep events that
	// cover multiple tokens (the jtis are listed in Details).
	JTI string `json:"jti,omitempty"`

	// Subject is the token owner, when known.
	Subject string `json:"subject,omitempty"`

	// Time is the event timestamp, normalized to UTC before hashing.
	Time time.Time `json:"time"`

	// Reason carries the verify reason code or the revocation reason.
	Reason string `json:"reason,omitempty"`

	// CorrelationID ties the event to the originating HTTP request.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Details holds event-specific facts (matched scope, origin, the
	// "duplicate" tag for repeated revokes, swept jtis, ...).
	Details map[string]any `json:"details,omitempty"`
}

// AuditEntry is one immutable link of the hash chain. Entries are append-only
// for the lifetime of the system; they are never edited or deleted.
type AuditEntry struct {
	// SequenceNo is assigned monotonically by the ledger, starting at 1.
	SequenceNo uint64 `json:"sequence_no"`

	// PrevHash is the EntryHash of the previous entry, or the chain seed
	// for the first entry.
	PrevHash string `json:"prev_hash"`

	// EntryHash = H(prev_hash || canonical(event)). Recomputing it must
	// reproduce the stored value or the chain is considered tampered
	// from this entry onward.
	EntryHash string `json:"entry_hash"`

	Event Event `json:"event"`
}
