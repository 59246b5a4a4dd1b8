// Package ledger implements the append-only, hash-chained audit record.
// Each entry's hash depends on the previous entry's hash, so after-the-fact
// mutation of any persisted entry is detectable (not preventable) from that
// point forward via VerifyChain.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/operandhq/lpr/internal/core"
)

// chainSeed is the prev_hash of the first entry.
const chainSeed = "0000000000000000000000000000000000000000000000000000000000000000"

// canonicalEvent produces the byte form of an event that the chain hash
// covers. encoding/json writes struct fields in declaration order and map
// keys sorted, which keeps the serialization stable across processes.
func canonicalEvent(ev core.Event) ([]byte, error) {
	ev.Time = ev.Time.UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("ledger: canonicalizing event: %w", err)
	}
	return data, nil
}

func entryHash(prevHash string, canonical []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// seal builds the next chain entry from an event. prevHash is the hash of
// the last sealed entry, or the chain seed for the first one.
func seal(seq uint64, prevHash string, ev core.Event) (core.AuditEntry, error) {
	ev.Time = ev.Time.UTC()
	canonical, err := canonicalEvent(ev)
	if err != nil {
		return core.AuditEntry{}, err
	}
	return core.AuditEntry{
		SequenceNo: seq,
		PrevHash:   prevHash,
		EntryHash:  entryHash(prevHash, canonical),
		Event:      ev,
	}, nil
}

// verifyRange recomputes hashes for entries[from-1 : to] of a complete,
// 1-indexed chain slice and returns the first divergent sequence number.
// A linkage break (PrevHash not matching the predecessor) counts as
// divergence at the entry holding the bad link.
func verifyRange(entries []core.AuditEntry, from, to uint64) (uint64, bool, error) {
	if len(entries) == 0 {
		return 0, true, nil
	}
	last := uint64(len(entries))
	if to == 0 || to > last {
		to = last
	}
	if from == 0 {
		from = 1
	}
	if from > to {
		return 0, false, fmt.Errorf("ledger: invalid range [%d, %d]", from, to)
	}

	prev := chainSeed
	if from > 1 {
		prev = entries[from-2].EntryHash
	}

	for seq := from; seq <= to; seq++ {
		e := entries[seq-1]
		if e.PrevHash != prev {
			return seq, false, nil
		}
		canonical, err := canonicalEvent(e.Event)
		if err != nil {
			return 0, false, err
		}
		if entryHash(e.PrevHash, canonical) != e.EntryHash {
			return seq, false, nil
		}
		prev = e.EntryHash
	}
	return 0, true, nil
}
