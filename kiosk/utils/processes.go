package utils

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smartvendoplus/smartvendo/kiosk/logger"
)

// ProcessManager owns the kiosk's long-running goroutines (event dispatcher,
// reader feed, binder) so shutdown can stop them in one place.
type ProcessManager struct {
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	processes map[string]*processInfo
}

type processInfo struct {
	cancel      context.CancelFunc
	description string
	startedAt   time.Time
}

// ProcessStatus is a read-only view of one managed process, surfaced on the
// admin status endpoint.
type ProcessStatus struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartedAt   time.Time `json:"started_at"`
}

func NewProcessManager() *ProcessManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessManager{
		ctx:       ctx,
		cancel:    cancel,
		processes: make(map[string]*processInfo),
	}
}

// Start registers and launches a named background process. Starting a name
// that is already running stops the old instance first.
func (pm *ProcessManager) Start(name, description string, fn func(ctx context.Context)) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, exists := pm.processes[name]; exists {
		slog.Warn("Process already running, replacing it", slog.String("process", name))
		pm.stopLocked(name)
	}

	processCtx, processCancel := context.WithCancel(pm.ctx)
	pm.processes[name] = &processInfo{
		cancel:      processCancel,
		description: description,
		startedAt:   time.Now(),
	}

	pm.wg.Add(1)
	go func() {
		defer pm.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Background process panic",
					slog.String("process", name),
					slog.Any("panic", r))
			}
		}()

		logger.LogSystem("Starting background process",
			slog.String("process", name),
			slog.String("description", description))

		fn(processCtx)

		logger.LogSystem("Background process ended", slog.String("process", name))
	}()
}

// Stop cancels one process by name.
func (pm *ProcessManager) Stop(name string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.stopLocked(name)
}

func (pm *ProcessManager) stopLocked(name string) {
	if process, exists := pm.processes[name]; exists {
		process.cancel()
		delete(pm.processes, name)
		logger.LogSystem("Stopped background process", slog.String("process", name))
	}
}

// Shutdown cancels everything and waits up to timeout for the goroutines to
// drain.
func (pm *ProcessManager) Shutdown(timeout time.Duration) error {
	pm.mu.RLock()
	count := len(pm.processes)
	pm.mu.RUnlock()

	logger.LogSystem("Shutting down background processes", slog.Int("process_count", count))
	pm.cancel()

	done := make(chan struct{})
	go func() {
		pm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.LogSystem("All background processes stopped")
		return nil
	case <-time.After(timeout):
		slog.Warn("Timeout waiting for background processes",
			slog.Duration("timeout", timeout))
		return context.DeadlineExceeded
	}
}

// Statuses lists the running processes.
func (pm *ProcessManager) Statuses() []ProcessStatus {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	statuses := make([]ProcessStatus, 0, len(pm.processes))
	for name, process := range pm.processes {
		statuses = append(statuses, ProcessStatus{
			Name:        name,
			Description: process.description,
			StartedAt:   process.startedAt,
		})
	}
	return statuses
}

// Context is the root context all managed processes derive from.
func (pm *ProcessManager) Context() context.Context {
	return pm.ctx
}
