package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/operandhq/lpr/internal/core"
)

var _ core.Ledger = (*Memory)(nil)

// Memory is the in-process ledger: an arena of sequentially indexed,
// immutable entries plus a jti index. The API exposes only append and
// read paths, never in-place mutation.
type Memory struct {
	mu      sync.RWMutex
	entries []core.AuditEntry
	byJTI   map[string][]int // jti -> entry positions
}

func NewMemory() *Memory {
	return &Memory{byJTI: make(map[string][]int)}
}

func (m *Memory) Append(_ context.Context, ev core.Event) (core.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(ev)
}

func (m *Memory) appendLocked(ev core.Event) (core.AuditEntry, error) {
	prev := chainSeed
	if n := len(m.entries); n > 0 {
		prev = m.entries[n-1].EntryHash
	}
	entry, err := seal(uint64(len(m.entries)+1), prev, ev)
	if err != nil {
		return core.AuditEntry{}, err
	}
	m.entries = append(m.entries, entry)
	if ev.JTI != "" {
		m.byJTI[ev.JTI] = append(m.byJTI[ev.JTI], len(m.entries)-1)
	}
	return entry, nil
}

// dropLastLocked removes the newest entry and its index slot, undoing an
// append whose durable write failed. Caller holds mu.
func (m *Memory) dropLastLocked() {
	n := len(m.entries)
	if n == 0 {
		return
	}
	last := m.entries[n-1]
	m.entries = m.entries[:n-1]

	if jti := last.Event.JTI; jti != "" {
		idx := m.byJTI[jti]
		if len(idx) > 0 && idx[len(idx)-1] == n-1 {
			idx = idx[:len(idx)-1]
		}
		if len(idx) == 0 {
			delete(m.byJTI, jti)
		} else {
			m.byJTI[jti] = idx
		}
	}
}

func (m *Memory) VerifyChain(_ context.Context, from, to uint64) (uint64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return verifyRange(m.entries, from, to)
}

func (m *Memory) FindByJTI(_ context.Context, jti string, limit int) ([]core.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.byJTI[jti]
	if limit > 0 && len(idx) > limit {
		idx = idx[len(idx)-limit:]
	}
	out := make([]core.AuditEntry, 0, len(idx))
	for _, i := range idx {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *Memory) FindByTime(_ context.Context, from, to time.Time, limit int) ([]core.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.AuditEntry
	for _, e := range m.entries {
		t := e.Event.Time
		if !from.IsZero() && t.Before(from) {
			continue
		}
		if !to.IsZero() && t.After(to) {
			continue
		}
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]core.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]core.AuditEntry, limit)
	copy(out, m.entries[n-limit:])
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}

// snapshot returns a copy of the full chain; used by the file ledger when
// loading and by tests.
func (m *Memory) snapshot() []core.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.AuditEntry, len(m.entries))
	copy(out, m.entries)
	return out
}
