package teddycloud_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"tonietool/internal/logging"
	"tonietool/internal/services"
	"tonietool/internal/services/teddycloud"
	"tonietool/internal/taf"
	"tonietool/internal/testsupport"
)

func newTestClient(t *testing.T, handler http.Handler, retries int) (*teddycloud.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := teddycloud.NewClientWithDoer(server.URL, "", "", server.Client(), retries, 0, logging.NewNop())
	return client, server
}

func TestUploadSendsMultipartForm(t *testing.T) {
	artwork := filepath.Join(t.TempDir(), "cover.png")
	testsupport.WriteFile(t, artwork, 128)

	var gotPath, gotSpecial, gotName string
	var gotBody []byte
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/fileUpload" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotPath = r.URL.Query().Get("path")
		gotSpecial = r.URL.Query().Get("special")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotName = header.Filename
		gotBody, _ = io.ReadAll(file)
		io.WriteString(w, "OK")
	}), 0)

	err := client.Upload(context.Background(), artwork, teddycloud.UploadOptions{
		Path:          "stories/bedtime",
		SpecialFolder: "library",
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if gotPath != "stories/bedtime" || gotSpecial != "library" {
		t.Fatalf("destination = %q in %q", gotPath, gotSpecial)
	}
	if gotName != "cover.png" {
		t.Fatalf("filename = %q", gotName)
	}
	if len(gotBody) != 128 {
		t.Fatalf("body length = %d", len(gotBody))
	}
}

func TestUploadRejectsCorruptContainer(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "broken.taf")
	testsupport.WriteFile(t, bad, 512)

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("corrupt container must not be uploaded")
	}), 0)

	err := client.Upload(context.Background(), bad, teddycloud.UploadOptions{})
	if !errors.Is(err, taf.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestUploadValidContainer(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "chapter.opus")
	testsupport.WriteOpusStream(t, src, 20, 777)
	out := filepath.Join(dir, "story.taf")
	f, err := os.Open(src)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := taf.Build(out, []taf.Source{{Name: "chapter.opus", R: f}}, taf.BuildOptions{AudioID: 777}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	uploaded := false
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploaded = true
		io.WriteString(w, "OK")
	}), 0)
	if err := client.Upload(context.Background(), out, teddycloud.UploadOptions{}); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if !uploaded {
		t.Fatal("server never saw the upload")
	}
}

func TestUploadRetriesServerErrors(t *testing.T) {
	artwork := filepath.Join(t.TempDir(), "cover.png")
	testsupport.WriteFile(t, artwork, 16)

	attempts := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "busy", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, "OK")
	}), 3)

	if err := client.Upload(context.Background(), artwork, teddycloud.UploadOptions{}); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestUploadExhaustsRetries(t *testing.T) {
	artwork := filepath.Join(t.TempDir(), "cover.png")
	testsupport.WriteFile(t, artwork, 16)

	attempts := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "down", http.StatusServiceUnavailable)
	}), 2)

	err := client.Upload(context.Background(), artwork, teddycloud.UploadOptions{})
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestUploadDoesNotRetryClientErrors(t *testing.T) {
	artwork := filepath.Join(t.TempDir(), "cover.png")
	testsupport.WriteFile(t, artwork, 16)

	attempts := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "no such path", http.StatusNotFound)
	}), 5)

	err := client.Upload(context.Background(), artwork, teddycloud.UploadOptions{})
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("client errors must not retry, attempts = %d", attempts)
	}
}

func TestFileIndexPrefersV2(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/fileIndexV2" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		io.WriteString(w, `{"files":[{"name":"story.taf","date":1700000000,"size":49152,"isDir":false}]}`)
	}), 0)

	entries, err := client.FileIndex(context.Background(), "stories", "library")
	if err != nil {
		t.Fatalf("FileIndex failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "story.taf" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].Modified.Unix() != 1700000000 {
		t.Fatalf("modified = %v", entries[0].Modified)
	}
}

func TestFileIndexFallsBackToV1(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/fileIndexV2":
			http.NotFound(w, r)
		case "/api/fileIndex":
			io.WriteString(w, `{"files":[{"name":"old.taf","date":"2023-08-01 12:00:00","size":4096,"isDir":false}]}`)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}), 0)

	entries, err := client.FileIndex(context.Background(), "", "")
	if err != nil {
		t.Fatalf("FileIndex failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "old.taf" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].Modified.Year() != 2023 {
		t.Fatalf("modified = %v", entries[0].Modified)
	}
}

func TestTagsFallsBackToLegacy(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/content/json/tags":
			http.NotFound(w, r)
		case "/api/getTagIndex":
			io.WriteString(w, `{"tags":[{"uid":"E0:04:03:50:11:22:33:44","type":"tag","valid":true,`+
				`"tonieInfo":{"series":"Benjamin","episode":"Zoo","tracks":["One","Two"]}}]}`)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}), 0)

	tags, err := client.Tags(context.Background())
	if err != nil {
		t.Fatalf("Tags failed: %v", err)
	}
	if len(tags) != 1 || tags[0].Series != "Benjamin" || len(tags[0].Tracks) != 2 {
		t.Fatalf("unexpected tags: %+v", tags)
	}
}

func TestCreateDirectoryWalksSegments(t *testing.T) {
	var bodies []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dirCreate" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		io.WriteString(w, "OK")
	}), 0)

	if err := client.CreateDirectory(context.Background(), "stories/bedtime/2023", "library"); err != nil {
		t.Fatalf("CreateDirectory failed: %v", err)
	}
	want := []string{"stories", "stories/bedtime", "stories/bedtime/2023"}
	if len(bodies) != len(want) {
		t.Fatalf("bodies = %v", bodies)
	}
	for i := range want {
		if bodies[i] != want[i] {
			t.Fatalf("segment %d = %q, want %q", i, bodies[i], want[i])
		}
	}
}

func TestBasicAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"files":[]}`)
	}))
	defer server.Close()

	client := teddycloud.NewClientWithDoer(server.URL, "alice", "secret", server.Client(), 0, 0, logging.NewNop())
	if _, err := client.FileIndex(context.Background(), "", ""); err != nil {
		t.Fatalf("FileIndex failed: %v", err)
	}
}
