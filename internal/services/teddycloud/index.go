package teddycloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"tonietool/internal/services"
)

// FileEntry is one file or directory on the server.
type FileEntry struct {
	Name     string
	Size     int64
	IsDir    bool
	Modified time.Time
}

type indexResponseV2 struct {
	Files []struct {
		Name  string `json:"name"`
		Date  int64  `json:"date"`
		Size  int64  `json:"size"`
		IsDir bool   `json:"isDir"`
	} `json:"files"`
}

type indexResponseV1 struct {
	Files []struct {
		Name  string `json:"name"`
		Date  string `json:"date"`
		Size  int64  `json:"size"`
		IsDir bool   `json:"isDir"`
	} `json:"files"`
}

// FileIndex lists the server directory at path. The V2 endpoint (unix
// timestamps) is preferred; servers predating it answer 404 and the call
// falls back to the V1 endpoint with its string-formatted dates.
func (c *Client) FileIndex(ctx context.Context, path, special string) ([]FileEntry, error) {
	query := url.Values{}
	if path != "" {
		query.Set("path", path)
	}
	if special != "" {
		query.Set("special", special)
	}

	entries, err := c.fileIndexV2(ctx, query)
	if err == nil {
		return entries, nil
	}
	fallback, v1Err := c.fileIndexV1(ctx, query)
	if v1Err != nil {
		return nil, err
	}
	return fallback, nil
}

func (c *Client) fileIndexV2(ctx context.Context, query url.Values) ([]FileEntry, error) {
	target := c.endpoint("/api/fileIndexV2", query)
	resp, err := c.doWithRetry(ctx, "file index v2", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded indexResponseV2
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, services.Wrap(services.ErrNetwork, "teddycloud", "file index v2", "decode response", err)
	}
	entries := make([]FileEntry, 0, len(decoded.Files))
	for _, f := range decoded.Files {
		entries = append(entries, FileEntry{
			Name:     f.Name,
			Size:     f.Size,
			IsDir:    f.IsDir,
			Modified: time.Unix(f.Date, 0),
		})
	}
	return entries, nil
}

func (c *Client) fileIndexV1(ctx context.Context, query url.Values) ([]FileEntry, error) {
	target := c.endpoint("/api/fileIndex", query)
	resp, err := c.doWithRetry(ctx, "file index", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded indexResponseV1
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, services.Wrap(services.ErrNetwork, "teddycloud", "file index", "decode response", err)
	}
	entries := make([]FileEntry, 0, len(decoded.Files))
	for _, f := range decoded.Files {
		entry := FileEntry{Name: f.Name, Size: f.Size, IsDir: f.IsDir}
		if parsed, err := time.Parse("2006-01-02 15:04:05", f.Date); err == nil {
			entry.Modified = parsed
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
