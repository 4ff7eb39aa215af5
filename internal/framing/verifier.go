package framing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tonietool/internal/config"
	"tonietool/internal/logging"
	"tonietool/internal/queue"
	"tonietool/internal/services"
	"tonietool/internal/stage"
	"tonietool/internal/taf"
)

// Verifier re-analyzes the assembled container and moves it into the
// output directory only when it passes.
type Verifier struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewVerifier constructs the verify stage.
func NewVerifier(cfg *config.Config, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Verifier{cfg: cfg, logger: logger}
}

// Prepare defaults the output path when the job doesn't carry one.
func (v *Verifier) Prepare(ctx context.Context, item *queue.Item) error {
	if item.OutputPath == "" {
		name := item.Title
		if name == "" {
			name = fmt.Sprintf("tonie-%d", item.ID)
		}
		item.OutputPath = filepath.Join(v.cfg.Paths.OutputDir, safeFileName(name)+".taf")
	}
	return nil
}

// Execute validates the container and renames it into place. The job
// directory is removed afterwards unless temp retention is configured.
func (v *Verifier) Execute(ctx context.Context, item *queue.Item) error {
	jobDir := stage.JobDir(v.cfg, item.ID)
	containerPath := filepath.Join(jobDir, containerName)

	info, err := taf.Analyze(containerPath)
	if err != nil {
		return err
	}
	if !info.Valid() {
		return fmt.Errorf("%w: assembled container failed verification (hash=%t serial=%t length=%t)",
			taf.ErrInvalidFormat, info.HashMatch, info.SerialMatch, info.LengthMatch)
	}
	if want := len(item.SourcePaths()); want > 0 && len(info.Chapters) != want {
		return fmt.Errorf("%w: container has %d chapters, expected %d",
			taf.ErrInvalidFormat, len(info.Chapters), want)
	}

	if err := os.MkdirAll(filepath.Dir(item.OutputPath), 0o755); err != nil {
		return services.Wrap(services.ErrConfig, "verify", "create output directory", item.OutputPath, err)
	}
	if err := moveFile(containerPath, item.OutputPath); err != nil {
		return services.Wrap(services.ErrConfig, "verify", "move container", item.OutputPath, err)
	}
	if !v.cfg.Encoding.KeepTemp {
		_ = os.RemoveAll(jobDir)
	}

	v.logger.Info("container verified",
		logging.Int64("job_id", item.ID),
		logging.String("output", item.OutputPath),
		logging.Duration("duration", info.Duration()),
		logging.Int("chapters", len(info.Chapters)),
	)
	return nil
}

// HealthCheck confirms the output directory is writable.
func (v *Verifier) HealthCheck(ctx context.Context) stage.Health {
	if err := os.MkdirAll(v.cfg.Paths.OutputDir, 0o755); err != nil {
		return stage.Unhealthy("verify", err.Error())
	}
	return stage.Healthy("verify")
}

// moveFile renames, falling back to copy+remove across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

// safeFileName strips path separators and control characters from a
// user-visible title.
func safeFileName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':':
			return '-'
		case r < 0x20:
			return -1
		default:
			return r
		}
	}, name)
	mapped = strings.TrimSpace(mapped)
	if mapped == "" {
		return "tonie"
	}
	return mapped
}
