package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/operandhq/lpr/internal/core"
)

var _ core.Ledger = (*File)(nil)

// File persists the chain as append-only JSON lines, one entry per line,
// mirroring the full chain in memory for index lookups. Each append is
// fsynced before it returns: the authorization decision it records is not
// final until the entry is durable.
type File struct {
	mu   sync.Mutex
	mem  *Memory
	file *os.File
	enc  *json.Encoder
}

// OpenFile loads an existing ledger file (verifying sequence continuity and
// chain hashes) or creates a new one.
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening %s: %w", path, err)
	}

	mem := NewMemory()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		var entry core.AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("ledger: %s line %d: %w", path, lineNo, err)
		}
		if entry.SequenceNo != uint64(lineNo) {
			_ = f.Close()
			return nil, fmt.Errorf("ledger: %s line %d: sequence %d out of order", path, lineNo, entry.SequenceNo)
		}
		mem.mu.Lock()
		mem.entries = append(mem.entries, entry)
		if jti := entry.Event.JTI; jti != "" {
			mem.byJTI[jti] = append(mem.byJTI[jti], len(mem.entries)-1)
		}
		mem.mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("ledger: reading %s: %w", path, err)
	}

	if seq, ok, err := verifyRange(mem.snapshot(), 0, 0); err != nil {
		_ = f.Close()
		return nil, err
	} else if !ok {
		_ = f.Close()
		return nil, fmt.Errorf("ledger: %s: chain divergent at sequence %d", path, seq)
	}

	return &File{
		mem:  mem,
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

func (l *File) Append(ctx context.Context, ev core.Event) (core.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// The in-memory chain is held locked across the durable write so a
	// failed append can be rolled back before any reader sees the entry.
	// Memory and disk must stay in lockstep: an entry that exists only in
	// memory would shift every later sequence number one ahead of the
	// file and brick the ledger on the next reload.
	l.mem.mu.Lock()
	defer l.mem.mu.Unlock()

	entry, err := l.mem.appendLocked(ev)
	if err != nil {
		return core.AuditEntry{}, err
	}

	if err := l.enc.Encode(entry); err != nil {
		l.mem.dropLastLocked()
		return core.AuditEntry{}, fmt.Errorf("ledger: writing entry %d: %w", entry.SequenceNo, err)
	}
	if err := l.file.Sync(); err != nil {
		l.mem.dropLastLocked()
		return core.AuditEntry{}, fmt.Errorf("ledger: syncing entry %d: %w", entry.SequenceNo, err)
	}
	return entry, nil
}

func (l *File) VerifyChain(ctx context.Context, from, to uint64) (uint64, bool, error) {
	return l.mem.VerifyChain(ctx, from, to)
}

func (l *File) FindByJTI(ctx context.Context, jti string, limit int) ([]core.AuditEntry, error) {
	return l.mem.FindByJTI(ctx, jti, limit)
}

func (l *File) FindByTime(ctx context.Context, from, to time.Time, limit int) ([]core.AuditEntry, error) {
	return l.mem.FindByTime(ctx, from, to, limit)
}

func (l *File) Recent(ctx context.Context, limit int) ([]core.AuditEntry, error) {
	return l.mem.Recent(ctx, limit)
}

func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
