package encoding

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"tonietool/internal/config"
	"tonietool/internal/services"
)

// pipelineInvoker decodes with ffmpeg and encodes with opusenc, connected
// by a pipe so no intermediate PCM file hits the disk.
type pipelineInvoker struct {
	cfg *config.Config
}

func (p *pipelineInvoker) Encode(ctx context.Context, sourcePath, outputPath string, bitrate int, cbr bool) error {
	ffmpegArgs := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", sourcePath,
		"-vn",
		"-ar", "48000",
		"-ac", "2",
		"-f", "wav",
		"-",
	}
	opusencArgs := []string{
		"--quiet",
		"--bitrate", fmt.Sprintf("%d", bitrate),
	}
	if cbr {
		opusencArgs = append(opusencArgs, "--hard-cbr")
	}
	opusencArgs = append(opusencArgs, "-", outputPath)

	ffmpeg := exec.CommandContext(ctx, p.cfg.FFmpegBinary(), ffmpegArgs...)
	opusenc := exec.CommandContext(ctx, p.cfg.OpusencBinary(), opusencArgs...)

	var ffmpegErr, opusencErr bytes.Buffer
	ffmpeg.Stderr = &ffmpegErr
	opusenc.Stderr = &opusencErr

	pipe, err := ffmpeg.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrEncoding, "encode", "ffmpeg", "create pipe", err)
	}
	opusenc.Stdin = pipe

	if err := ffmpeg.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "encode", "ffmpeg", "start decoder", err)
	}
	if err := opusenc.Start(); err != nil {
		_ = ffmpeg.Process.Kill()
		_ = ffmpeg.Wait()
		return services.Wrap(services.ErrExternalTool, "encode", "opusenc", "start encoder", err)
	}

	opusencWaitErr := opusenc.Wait()
	ffmpegWaitErr := ffmpeg.Wait()

	if ffmpegWaitErr != nil {
		os.Remove(outputPath)
		return services.Wrap(services.ErrEncoding, "encode", "ffmpeg",
			commandFailureDetail(sourcePath, &ffmpegErr), ffmpegWaitErr)
	}
	if opusencWaitErr != nil {
		os.Remove(outputPath)
		return services.Wrap(services.ErrEncoding, "encode", "opusenc",
			commandFailureDetail(sourcePath, &opusencErr), opusencWaitErr)
	}
	return nil
}

// commandFailureDetail includes the tail of the tool's stderr so job errors
// carry the actual encoder diagnostics.
func commandFailureDetail(sourcePath string, stderr *bytes.Buffer) string {
	detail := strings.TrimSpace(stderr.String())
	const maxDetail = 500
	if len(detail) > maxDetail {
		detail = "..." + detail[len(detail)-maxDetail:]
	}
	if detail == "" {
		return sourcePath
	}
	return fmt.Sprintf("%s: %s", sourcePath, detail)
}
