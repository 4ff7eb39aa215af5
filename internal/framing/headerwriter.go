package framing

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"tonietool/internal/config"
	"tonietool/internal/logging"
	"tonietool/internal/queue"
	"tonietool/internal/services"
	"tonietool/internal/stage"
	"tonietool/internal/taf"
)

// HeaderWriter assembles the final container: encoded header block followed
// by the framed audio stream.
type HeaderWriter struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewHeaderWriter constructs the header stage.
func NewHeaderWriter(cfg *config.Config, logger *slog.Logger) *HeaderWriter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HeaderWriter{cfg: cfg, logger: logger}
}

// Prepare checks the framed stream is still on disk.
func (w *HeaderWriter) Prepare(ctx context.Context, item *queue.Item) error {
	audioPath := filepath.Join(stage.JobDir(w.cfg, item.ID), audioStreamName)
	if _, err := os.Stat(audioPath); err != nil {
		return services.Wrap(services.ErrEncoding, "write header", "locate audio stream", audioPath, err)
	}
	_, err := loadStreamInfo(item)
	return err
}

// Execute writes the container into the job directory.
func (w *HeaderWriter) Execute(ctx context.Context, item *queue.Item) error {
	info, err := loadStreamInfo(item)
	if err != nil {
		return err
	}

	jobDir := stage.JobDir(w.cfg, item.ID)
	audio, err := os.Open(filepath.Join(jobDir, audioStreamName))
	if err != nil {
		return services.Wrap(services.ErrEncoding, "write header", "open audio stream", "", err)
	}
	defer audio.Close()

	outPath := filepath.Join(jobDir, containerName)
	out, err := os.Create(outPath)
	if err != nil {
		return services.Wrap(services.ErrEncoding, "write header", "create container", outPath, err)
	}

	header := info.Header(uint32(item.AudioID))
	if err := taf.Assemble(out, header, audio); err != nil {
		out.Close()
		os.Remove(outPath)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return err
	}

	w.logger.Debug("wrote container header",
		logging.Int64("job_id", item.ID),
		logging.Uint64("audio_id", uint64(header.AudioID)),
	)
	return nil
}

// HealthCheck reports readiness.
func (w *HeaderWriter) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("write header")
}
