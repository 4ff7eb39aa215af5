package encoding

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tonietool/internal/config"
	"tonietool/internal/deps"
	"tonietool/internal/logging"
	"tonietool/internal/ogg"
	"tonietool/internal/queue"
	"tonietool/internal/services"
	"tonietool/internal/stage"
)

// Invoker runs the external encode of one source file into an Ogg/Opus
// output.
type Invoker interface {
	Encode(ctx context.Context, sourcePath, outputPath string, bitrate int, cbr bool) error
}

// Encoder is the first pipeline stage: it turns each source file of a job
// into a 48 kHz Ogg/Opus intermediate in the job directory.
type Encoder struct {
	cfg     *config.Config
	logger  *slog.Logger
	invoker Invoker
}

// New constructs the encode stage with the ffmpeg/opusenc invoker.
func New(cfg *config.Config, logger *slog.Logger) *Encoder {
	return NewWithInvoker(cfg, logger, &pipelineInvoker{cfg: cfg})
}

// NewWithInvoker constructs the encode stage with a custom invoker (used in
// tests).
func NewWithInvoker(cfg *config.Config, logger *slog.Logger, invoker Invoker) *Encoder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Encoder{cfg: cfg, logger: logger, invoker: invoker}
}

// Prepare validates the job's inputs and assigns the audio id that becomes
// both the header timestamp and the bitstream serial.
func (e *Encoder) Prepare(ctx context.Context, item *queue.Item) error {
	sources := item.SourcePaths()
	if len(sources) == 0 {
		return services.Wrap(services.ErrConfig, "encode", "validate inputs", "job has no source files", nil)
	}
	for _, src := range sources {
		if _, err := os.Stat(src); err != nil {
			return services.Wrap(services.ErrConfig, "encode", "validate inputs",
				fmt.Sprintf("source file %q is not readable", src), err)
		}
	}
	if item.AudioID == 0 {
		item.AudioID = time.Now().Unix()
	}
	if item.Bitrate == 0 {
		item.Bitrate = e.cfg.Encoding.Bitrate
	}
	return nil
}

// Execute encodes every source file, in input order so chapter numbering is
// stable. Each intermediate is produced in the worker's scratch directory
// and only moved into the job directory once complete, so a killed encode
// never leaves a partial file where the frame stage would pick it up.
func (e *Encoder) Execute(ctx context.Context, item *queue.Item) error {
	jobDir := stage.JobDir(e.cfg, item.ID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return services.Wrap(services.ErrEncoding, "encode", "create job directory", jobDir, err)
	}
	scratch := stage.WorkDir(ctx)
	if scratch == "" {
		scratch = jobDir
	}

	sources := item.SourcePaths()
	outputs := make([]string, 0, len(sources))
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := fmt.Sprintf("%02d.opus", i+1)
		staging := filepath.Join(scratch, name)
		if isOggOpus(src) {
			if err := copyFile(src, staging); err != nil {
				return services.Wrap(services.ErrEncoding, "encode", "copy opus input", src, err)
			}
			e.logger.Debug("passed through opus input", logging.String("source", src))
		} else {
			if err := e.invoker.Encode(ctx, src, staging, item.Bitrate, e.cfg.Encoding.CBR); err != nil {
				return err
			}
			e.logger.Debug("encoded input", logging.String("source", src), logging.Int("bitrate", item.Bitrate))
		}
		out := filepath.Join(jobDir, name)
		if staging != out {
			if err := os.Rename(staging, out); err != nil {
				return services.Wrap(services.ErrEncoding, "encode", "move intermediate", staging, err)
			}
		}
		outputs = append(outputs, out)
	}
	return item.SetEncodedFiles(outputs)
}

// HealthCheck reports whether the external encoders are available.
func (e *Encoder) HealthCheck(ctx context.Context) stage.Health {
	for _, status := range deps.CheckBinaries(deps.Requirements(e.cfg)) {
		if !status.Available && !status.Optional {
			return stage.Unhealthy("encode", status.Detail)
		}
	}
	return stage.Healthy("encode")
}

// isOggOpus sniffs the first page of the file for an OpusHead packet.
func isOggOpus(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	page, err := ogg.NewReader(f).NextPage()
	if err != nil {
		return false
	}
	packets := page.Packets()
	return len(packets) == 1 && ogg.IsOpusHead(packets[0])
}

func copyFile(src, dst string) error {
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
	return out.Close()
}
