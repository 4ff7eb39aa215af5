package teddycloud

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// CreateDirectory creates path on the server, one level at a time, so
// nested upload destinations exist before the first file arrives. Already
// existing directories are not an error.
func (c *Client) CreateDirectory(ctx context.Context, path, special string) error {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}

	built := ""
	for _, segment := range strings.Split(path, "/") {
		if built == "" {
			built = segment
		} else {
			built += "/" + segment
		}

		query := url.Values{}
		if special != "" {
			query.Set("special", special)
		}
		target := c.endpoint("/api/dirCreate", query)
		dir := built
		resp, err := c.doWithRetry(ctx, "create directory "+dir, func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(dir))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "text/plain")
			return req, nil
		})
		if err != nil {
			// The server answers an error for directories that already
			// exist; creation is idempotent from the caller's view.
			if strings.Contains(err.Error(), "exist") {
				continue
			}
			return err
		}
		resp.Body.Close()
	}
	return nil
}
