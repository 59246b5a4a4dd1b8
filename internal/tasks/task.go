// Package tasks runs the service's background maintenance: the expiry sweep
// and rate-bucket garbage collection. Tasks run on an interval and can be
// triggered on demand through the admin API; each run keeps its own logs.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/operandhq/lpr/internal/logging"
)

const MaxLogsPerTask = 1000

// TaskFunc is one maintenance run. The logger writes both to zerolog and to
// the task's stored logs.
type TaskFunc func(ctx context.Context, logger logging.InternalLogger) error

type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

type TaskStatus struct {
	Name       string    `json:"name"`
	Running    bool      `json:"running"`
	LastRun    time.Time `json:"last_run,omitempty"`
	LastResult string    `json:"last_result,omitempty"`
	NextRun    time.Time `json:"next_run,omitempty"`
}

type TaskNotFoundError struct {
	Name string
}

func (e TaskNotFoundError) Error() string {
	return fmt.Sprintf("task '%s' not found", e.Name)
}

type RunnableTask struct {
	Name     string
	Interval time.Duration
	Handler  TaskFunc

	registeredAt time.Time

	mu         sync.RWMutex
	Running    bool
	LastRun    time.Time
	LastResult string
	Logs       []LogEntry
}

func (t *RunnableTask) Run() {
	t.mu.Lock()

	l := log.With().Str("task", t.Name).Logger()

	if t.Running {
		t.mu.Unlock()
		l.Warn().Msg("task is already running, skipping execution")
		return
	}
	t.Running = true
	t.Logs = make([]LogEntry, 0)
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.Running = false
		t.LastRun = time.Now()
		t.mu.Unlock()
	}()

	taskLogger := logging.NewMultiLogger(
		logging.NewZLogger(l),
		&storeLogger{task: t},
	)
	taskLogger.Info("starting task execution")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	err := t.Handler(ctx, taskLogger)
	duration := time.Since(start)

	t.mu.Lock()
	if err != nil {
		t.LastResult = fmt.Sprintf("failed: %v", err)
	} else {
		t.LastResult = "success"
	}
	t.mu.Unlock()

	if err != nil {
		taskLogger.Error("task failed after %s: %v", duration, err)
	} else {
		taskLogger.Info("task completed successfully in %s", duration)
	}
}

func (t *RunnableTask) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var nextTime time.Time
	if t.Interval > 0 {
		if !t.LastRun.IsZero() {
			nextTime = t.LastRun.Add(t.Interval)
		} else {
			nextTime = t.registeredAt.Add(t.Interval)
		}
	}

	return TaskStatus{
		Name:       t.Name,
		Running:    t.Running,
		LastRun:    t.LastRun,
		LastResult: t.LastResult,
		NextRun:    nextTime,
	}
}

func (t *RunnableTask) AppendLog(level, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.Logs) >= MaxLogsPerTask {
		return
	}
	t.Logs = append(t.Logs, LogEntry{
		Time:    time.Now(),
		Level:   level,
		Message: msg,
	})
}

func (t *RunnableTask) GetLogs() []LogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]LogEntry, len(t.Logs))
	copy(out, t.Logs)
	return out
}

// storeLogger mirrors task output into the task's stored logs.
type storeLogger struct {
	task *RunnableTask
}

func (s *storeLogger) Info(format string, args ...any) {
	s.task.AppendLog("info", fmt.Sprintf(format, args...))
}

func (s *storeLogger) Warn(format string, args ...any) {
	s.task.AppendLog("warn", fmt.Sprintf(format, args...))
}

func (s *storeLogger) Error(format string, args ...any) {
	s.task.AppendLog("error", fmt.Sprintf(format, args...))
}
