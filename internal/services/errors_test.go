package services

import (
	"errors"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("connection refused")
	err := Wrap(ErrNetwork, "upload", "POST /api/fileUpload", "attempt 3", base)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause to survive, got %v", err)
	}
	want := "network error: upload: POST /api/fileUpload: attempt 3: connection refused"
	if err.Error() != want {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := Wrap(nil, "encode", "", "", nil)
	if !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected encoding marker fallback, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(Wrap(ErrEncoding, "encode", "opusenc", "", nil)) {
		t.Fatal("encoding failures must not be retryable")
	}
	if !Retryable(Wrap(ErrNetwork, "upload", "", "", nil)) {
		t.Fatal("network failures should be retryable")
	}
}
