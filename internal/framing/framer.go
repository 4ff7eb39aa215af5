package framing

import (
	"context"
	"encoding/json"
	"fmt"
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

// audioStreamName is the framed audio artifact within the job directory.
const audioStreamName = "audio.ogg"

// containerName is the assembled container within the job directory before
// verification moves it into place.
const containerName = "out.taf"

// Framer re-pages the job's encoded intermediates into a single aligned
// audio stream, one chapter per input.
type Framer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewFramer constructs the frame stage.
func NewFramer(cfg *config.Config, logger *slog.Logger) *Framer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Framer{cfg: cfg, logger: logger}
}

// Prepare verifies the encode stage left every intermediate behind.
func (f *Framer) Prepare(ctx context.Context, item *queue.Item) error {
	files := item.EncodedFiles()
	if len(files) == 0 {
		return services.Wrap(services.ErrEncoding, "frame", "locate intermediates",
			"job has no encoded files", nil)
	}
	for _, path := range files {
		if _, err := os.Stat(path); err != nil {
			return services.Wrap(services.ErrEncoding, "frame", "locate intermediates",
				fmt.Sprintf("intermediate %q is missing", path), err)
		}
	}
	return nil
}

// Execute writes the aligned stream into the job directory and records its
// chapter table, hash, and length on the job.
func (f *Framer) Execute(ctx context.Context, item *queue.Item) error {
	files := item.EncodedFiles()
	sources := make([]taf.Source, 0, len(files))
	handles := make([]*os.File, 0, len(files))
	defer func() {
		for _, h := range handles {
			h.Close()
		}
	}()
	for _, path := range files {
		h, err := os.Open(path)
		if err != nil {
			return services.Wrap(services.ErrEncoding, "frame", "open intermediate", path, err)
		}
		handles = append(handles, h)
		sources = append(sources, taf.Source{Name: filepath.Base(path), R: h})
	}

	// The stream is built in the worker's scratch directory and moved into
	// the job directory whole; the header stage never sees a partial file.
	jobDir := stage.JobDir(f.cfg, item.ID)
	scratch := stage.WorkDir(ctx)
	if scratch == "" {
		scratch = jobDir
	}
	stagingPath := filepath.Join(scratch, audioStreamName)
	out, err := os.Create(stagingPath)
	if err != nil {
		return services.Wrap(services.ErrEncoding, "frame", "create audio stream", stagingPath, err)
	}

	info, err := taf.WriteStream(out, sources, taf.StreamOptions{
		AudioID:  uint32(item.AudioID),
		Comments: []string{"title=" + item.Title},
	})
	if err != nil {
		out.Close()
		os.Remove(stagingPath)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(stagingPath)
		return err
	}
	audioPath := filepath.Join(jobDir, audioStreamName)
	if stagingPath != audioPath {
		if err := os.Rename(stagingPath, audioPath); err != nil {
			os.Remove(stagingPath)
			return services.Wrap(services.ErrEncoding, "frame", "move audio stream", stagingPath, err)
		}
	}

	encoded, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal stream info: %w", err)
	}
	item.StreamInfoJSON = string(encoded)

	f.logger.Debug("framed audio stream",
		logging.Int64("job_id", item.ID),
		logging.Int("chapters", len(info.ChapterPages)),
		logging.Uint64("granule", info.Granule),
	)
	return nil
}

// HealthCheck reports readiness; framing needs only the temp directory.
func (f *Framer) HealthCheck(ctx context.Context) stage.Health {
	if err := os.MkdirAll(f.cfg.Paths.TempDir, 0o755); err != nil {
		return stage.Unhealthy("frame", err.Error())
	}
	return stage.Healthy("frame")
}

// loadStreamInfo decodes the frame stage's recorded stream description.
func loadStreamInfo(item *queue.Item) (*taf.StreamInfo, error) {
	if item.StreamInfoJSON == "" {
		return nil, services.Wrap(services.ErrEncoding, "write header", "load stream info",
			"job carries no framed stream description", nil)
	}
	var info taf.StreamInfo
	if err := json.Unmarshal([]byte(item.StreamInfoJSON), &info); err != nil {
		return nil, fmt.Errorf("decode stream info: %w", err)
	}
	return &info, nil
}
