package teddycloud

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"tonietool/internal/logging"
	"tonietool/internal/services"
	"tonietool/internal/taf"
)

// UploadOptions selects the destination on the server.
type UploadOptions struct {
	// Path is the destination directory relative to the special folder.
	Path string
	// SpecialFolder is the server-side root ("library" or "content").
	SpecialFolder string
	// Filename overrides the local base name when set.
	Filename string
}

// Upload sends the file at localPath to /api/fileUpload as a multipart
// form. TAF inputs are validated first so a corrupt container never leaves
// the machine; other files (artwork) are sent as-is.
func (c *Client) Upload(ctx context.Context, localPath string, opts UploadOptions) error {
	if filepath.Ext(localPath) == ".taf" {
		info, err := taf.Analyze(localPath)
		if err != nil {
			return err
		}
		if !info.Valid() {
			return fmt.Errorf("%w: refusing to upload invalid container %s", taf.ErrInvalidFormat, localPath)
		}
		c.logger.Debug("container validated for upload",
			logging.String("file", localPath),
			logging.String("hash", hex.EncodeToString(info.Header.Hash[:])),
		)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return services.Wrap(services.ErrConfig, "teddycloud", "upload", localPath, err)
	}
	name := opts.Filename
	if name == "" {
		name = filepath.Base(localPath)
	}

	query := url.Values{}
	if opts.Path != "" {
		query.Set("path", opts.Path)
	}
	if opts.SpecialFolder != "" {
		query.Set("special", opts.SpecialFolder)
	}
	target := c.endpoint("/api/fileUpload", query)

	resp, err := c.doWithRetry(ctx, "upload "+name, func(ctx context.Context) (*http.Request, error) {
		var body bytes.Buffer
		form := multipart.NewWriter(&body)
		part, err := form.CreateFormFile("file", name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(data); err != nil {
			return nil, err
		}
		if err := form.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", form.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	c.logger.Info("uploaded file",
		logging.String("file", name),
		logging.String("path", opts.Path),
		logging.String("special", opts.SpecialFolder),
	)
	return nil
}
