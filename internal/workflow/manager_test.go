package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tonietool/internal/logging"
	"tonietool/internal/queue"
	"tonietool/internal/stage"
	"tonietool/internal/testsupport"
	"tonietool/internal/workflow"
)

type stubHandler struct {
	name string
	mu   sync.Mutex
	runs int

	execute func(context.Context, *queue.Item) error
}

func (s *stubHandler) Prepare(ctx context.Context, item *queue.Item) error { return nil }

func (s *stubHandler) Execute(ctx context.Context, item *queue.Item) error {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
	if s.execute != nil {
		return s.execute(ctx, item)
	}
	if stage.WorkDir(ctx) == "" {
		return errors.New("missing work dir")
	}
	return nil
}

func (s *stubHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(s.name)
}

func (s *stubHandler) runCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func stubStages() (workflow.StageSet, map[string]*stubHandler) {
	handlers := map[string]*stubHandler{
		"encode": {name: "encode"},
		"frame":  {name: "frame"},
		"header": {name: "header"},
		"verify": {name: "verify"},
	}
	return workflow.StageSet{
		Encoder:      handlers["encode"],
		Framer:       handlers["frame"],
		HeaderWriter: handlers["header"],
		Verifier:     handlers["verify"],
	}, handlers
}

func TestRunUntilIdleDrivesJobToVerified(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewJob(t, store, "story", []string{"/in/a.mp3"})

	stages, handlers := stubStages()
	manager := workflow.NewManager(cfg, store, logging.NewNop(), stages)

	if err := manager.RunUntilIdle(context.Background()); err != nil {
		t.Fatalf("RunUntilIdle failed: %v", err)
	}

	final, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Status != queue.StatusVerified {
		t.Fatalf("expected verified, got %s (%s)", final.Status, final.ErrorMessage)
	}
	for name, handler := range handlers {
		if handler.runCount() != 1 {
			t.Fatalf("handler %s ran %d times", name, handler.runCount())
		}
	}
}

func TestRunUntilIdleProcessesMultipleJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(3))
	store := testsupport.MustOpenStore(t, cfg)
	for i := 0; i < 5; i++ {
		testsupport.NewJob(t, store, "story", []string{"/in/a.mp3"})
	}

	stages, handlers := stubStages()
	manager := workflow.NewManager(cfg, store, logging.NewNop(), stages)
	if err := manager.RunUntilIdle(context.Background()); err != nil {
		t.Fatalf("RunUntilIdle failed: %v", err)
	}

	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, item := range items {
		if item.Status != queue.StatusVerified {
			t.Fatalf("job %d ended at %s", item.ID, item.Status)
		}
	}
	if handlers["encode"].runCount() != 5 {
		t.Fatalf("encode ran %d times, want 5", handlers["encode"].runCount())
	}
}

func TestStageFailureMarksJobFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewJob(t, store, "story", []string{"/in/a.mp3"})

	stages, handlers := stubStages()
	handlers["frame"].execute = func(context.Context, *queue.Item) error {
		return errors.New("no audio packets")
	}
	manager := workflow.NewManager(cfg, store, logging.NewNop(), stages)
	err := manager.RunUntilIdle(context.Background())
	if err == nil {
		t.Fatal("expected RunUntilIdle to surface the stage error")
	}

	final, getErr := store.GetByID(context.Background(), item.ID)
	if getErr != nil {
		t.Fatalf("GetByID failed: %v", getErr)
	}
	if final.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.ErrorMessage != "no audio packets" {
		t.Fatalf("unexpected error message: %q", final.ErrorMessage)
	}
	if handlers["header"].runCount() != 0 {
		t.Fatal("later stages must not run after a failure")
	}
}

func TestStartStopCancelsBetweenStages(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewJob(t, store, "story", []string{"/in/a.mp3"})

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	stages, handlers := stubStages()
	handlers["encode"].execute = func(ctx context.Context, _ *queue.Item) error {
		once.Do(func() { close(started) })
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	manager := workflow.NewManager(cfg, store, logging.NewNop(), stages)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("encode stage never started")
	}
	close(release)
	manager.Stop()

	// Stop waits for workers, so no goroutines hold the store afterwards.
	if _, err := store.Health(context.Background()); err != nil {
		t.Fatalf("store unusable after Stop: %v", err)
	}
}

func TestHealthChecksReportEveryStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stages, _ := stubStages()
	manager := workflow.NewManager(cfg, store, logging.NewNop(), stages)

	checks := manager.HealthChecks(context.Background())
	if len(checks) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(checks))
	}
	for _, check := range checks {
		if !check.Ready {
			t.Fatalf("stage %s unexpectedly unhealthy: %s", check.Name, check.Detail)
		}
	}
}
