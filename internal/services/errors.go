package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEncoding marks failures of the underlying codec invocation
	// (ffmpeg/opusenc exited non-zero or produced no stream).
	ErrEncoding = errors.New("encoding failure")
	// ErrNetwork marks upload or API failures after retries are exhausted.
	ErrNetwork = errors.New("network error")
	// ErrConfig marks bad persisted settings.
	ErrConfig = errors.New("configuration error")
	// ErrExternalTool marks a required external binary that is missing or broken.
	ErrExternalTool = errors.New("external tool error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrEncoding
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether an error is worth retrying. Only network errors
// qualify; encoding and format failures are surfaced immediately.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
