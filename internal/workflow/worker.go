package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"tonietool/internal/logging"
	"tonietool/internal/queue"
	"tonietool/internal/stage"
)

const idleProbeInterval = 50 * time.Millisecond

func (m *Manager) runWorker(ctx context.Context, id int, untilIdle bool) {
	logger := m.logger.With(logging.Int("worker", id))

	workDir := filepath.Join(m.cfg.Paths.TempDir, "worker-"+uuid.NewString())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		m.setLastError(fmt.Errorf("create worker directory: %w", err))
		logger.Error("failed to create worker directory", logging.Error(err))
		return
	}
	if !m.cfg.Encoding.KeepTemp {
		defer os.RemoveAll(workDir)
	}

	for {
		if ctx.Err() != nil {
			return
		}

		item, stg, err := m.claimNext(ctx)
		if err != nil {
			m.setLastError(err)
			logger.Error("failed to claim next job", logging.Error(err))
			if !sleepOrDone(ctx, m.pollInterval) {
				return
			}
			continue
		}
		if item == nil {
			if untilIdle {
				if m.activeWorkers() == 0 {
					return
				}
				if !sleepOrDone(ctx, idleProbeInterval) {
					return
				}
				continue
			}
			if !sleepOrDone(ctx, m.pollInterval) {
				return
			}
			continue
		}

		m.enterStage()
		err = m.executeStage(ctx, logger, stg, item, workDir)
		m.leaveStage()
		if errors.Is(err, context.Canceled) {
			return
		}
	}
}

// claimNext claims the oldest job waiting at any stage boundary, preferring
// later stages so jobs finish before new ones start.
func (m *Manager) claimNext(ctx context.Context) (*queue.Item, pipelineStage, error) {
	for i := len(m.stages) - 1; i >= 0; i-- {
		stg := m.stages[i]
		item, err := m.store.Claim(ctx, stg.startStatus, stg.processingStatus)
		if err != nil {
			return nil, pipelineStage{}, err
		}
		if item != nil {
			return item, stg, nil
		}
	}
	return nil, pipelineStage{}, nil
}

func (m *Manager) executeStage(ctx context.Context, logger *slog.Logger, stg pipelineStage, item *queue.Item, workDir string) error {
	stageStart := time.Now()
	requestID := uuid.NewString()
	stageCtx := stage.WithWorkDir(stage.WithRequestID(ctx, requestID), workDir)
	stageLogger := logger.With(
		logging.String("stage", stg.name),
		logging.Int64("job_id", item.ID),
		logging.String("request_id", requestID),
	)

	stageLogger.Info("stage started",
		logging.String("title", item.Title),
		logging.String("status", string(item.Status)),
	)

	item.SetProgress(stg.name, stg.name+" started")
	item.ErrorMessage = ""
	if err := m.store.Update(stageCtx, item); err != nil {
		m.setLastError(err)
		stageLogger.Error("failed to persist processing transition", logging.Error(err))
		return err
	}

	if err := stg.handler.Prepare(stageCtx, item); err != nil {
		return m.failStage(stageCtx, stageLogger, stg, item, err)
	}
	if err := m.store.Update(stageCtx, item); err != nil {
		m.setLastError(err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(err))
		return err
	}

	if err := stg.handler.Execute(stageCtx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return err
		}
		return m.failStage(stageCtx, stageLogger, stg, item, err)
	}

	if item.Status == stg.processingStatus || item.Status == "" {
		item.Status = stg.doneStatus
	}
	item.SetProgress(stg.name, stg.name+" completed")
	if err := m.store.Update(stageCtx, item); err != nil {
		m.setLastError(err)
		stageLogger.Error("failed to persist stage result", logging.Error(err))
		return err
	}

	stageLogger.Info("stage completed",
		logging.String("next_status", string(item.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	return nil
}

func (m *Manager) failStage(ctx context.Context, logger *slog.Logger, stg pipelineStage, item *queue.Item, stageErr error) error {
	m.setLastError(stageErr)
	logger.Error("stage failed",
		logging.Error(stageErr),
		logging.String("title", item.Title),
	)
	item.SetFailed(stageErr.Error())
	if err := m.store.Update(ctx, item); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}
	return stageErr
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
