package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tonietool/internal/config"
	"tonietool/internal/logging"
	"tonietool/internal/queue"
	"tonietool/internal/stage"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Encoder      stage.Handler
	Framer       stage.Handler
	HeaderWriter stage.Handler
	Verifier     stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	stages       []pipelineStage
	workers      int
	pollInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error

	active int
}

// NewManager constructs a workflow manager for the given stage set.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, stages StageSet) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		workers:      cfg.Workflow.Workers,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		stages: []pipelineStage{
			{name: "encode", handler: stages.Encoder, startStatus: queue.StatusPending, processingStatus: queue.StatusEncoding, doneStatus: queue.StatusEncoded},
			{name: "frame", handler: stages.Framer, startStatus: queue.StatusEncoded, processingStatus: queue.StatusFraming, doneStatus: queue.StatusFramed},
			{name: "write header", handler: stages.HeaderWriter, startStatus: queue.StatusFramed, processingStatus: queue.StatusWritingHeader, doneStatus: queue.StatusHeaderWritten},
			{name: "verify", handler: stages.Verifier, startStatus: queue.StatusHeaderWritten, processingStatus: queue.StatusVerifying, doneStatus: queue.StatusVerified},
		},
	}
}

// HealthChecks runs every stage handler's health check.
func (m *Manager) HealthChecks(ctx context.Context) []stage.Health {
	checks := make([]stage.Health, 0, len(m.stages))
	for _, stg := range m.stages {
		if stg.handler == nil {
			checks = append(checks, stage.Unhealthy(stg.name, "no handler configured"))
			continue
		}
		checks = append(checks, stg.handler.HealthCheck(ctx))
	}
	return checks
}

// Start launches the workers and returns immediately.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	for _, stg := range m.stages {
		if stg.handler == nil {
			return errors.New("workflow stages not configured")
		}
	}

	if _, err := m.store.ResetStuckProcessing(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers)
	for i := 0; i < m.workers; i++ {
		go func(id int) {
			defer m.wg.Done()
			m.runWorker(runCtx, id, false)
		}(i)
	}
	return nil
}

// Stop terminates processing and waits for the workers to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// RunUntilIdle processes jobs with the configured worker count and returns
// once the queue holds no claimable or in-flight work.
func (m *Manager) RunUntilIdle(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	if _, err := m.store.ResetStuckProcessing(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(m.workers)
	for i := 0; i < m.workers; i++ {
		go func(id int) {
			defer wg.Done()
			m.runWorker(ctx, id, true)
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return m.LastError()
}

// LastError returns the most recent worker error, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) enterStage() {
	m.mu.Lock()
	m.active++
	m.mu.Unlock()
}

func (m *Manager) leaveStage() {
	m.mu.Lock()
	m.active--
	m.mu.Unlock()
}

func (m *Manager) activeWorkers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
