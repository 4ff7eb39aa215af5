package teddycloud

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tonietool/internal/config"
	"tonietool/internal/logging"
	"tonietool/internal/services"
)

// HTTPDoer describes the HTTP client used by the TeddyCloud service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one TeddyCloud server.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient HTTPDoer
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewClient builds a client from configuration, including optional basic
// auth and mutual-TLS credentials.
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	tc := cfg.TeddyCloud
	base := strings.TrimRight(strings.TrimSpace(tc.URL), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfig, "teddycloud", "configure client", "server url is not set", nil)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: time.Duration(tc.ConnectionTimeout) * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: time.Duration(tc.ConnectionTimeout) * time.Second,
	}
	if tc.IgnoreSSLVerify || tc.ClientCertPath != "" {
		tlsCfg := &tls.Config{InsecureSkipVerify: tc.IgnoreSSLVerify}
		if tc.ClientCertPath != "" {
			cert, err := tls.LoadX509KeyPair(tc.ClientCertPath, tc.ClientKeyPath)
			if err != nil {
				return nil, services.Wrap(services.ErrConfig, "teddycloud", "load client certificate", tc.ClientCertPath, err)
			}
			tlsCfg.Certificates = []tls.Certificate{cert}
		}
		transport.TLSClientConfig = tlsCfg
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   time.Duration(tc.ReadTimeout) * time.Second,
	}
	return NewClientWithDoer(base, tc.Username, tc.Password, httpClient,
		tc.MaxRetries, time.Duration(tc.RetryDelay)*time.Second, logger), nil
}

// NewClientWithDoer constructs a client around an injected HTTP doer.
func NewClientWithDoer(baseURL, username, password string, doer HTTPDoer, maxRetries int, retryDelay time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		username:   username,
		password:   password,
		httpClient: doer,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// endpoint joins the API path and query parameters onto the base URL.
func (c *Client) endpoint(apiPath string, query url.Values) string {
	u := c.baseURL + apiPath
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// requestBuilder produces a fresh request per attempt; bodies are consumed
// by a failed attempt and cannot be replayed.
type requestBuilder func(ctx context.Context) (*http.Request, error)

// doWithRetry runs the request with the configured bounded retry policy:
// transport errors and 5xx responses retry after a fixed delay, 4xx fail
// immediately. The caller owns the returned body.
func (c *Client) doWithRetry(ctx context.Context, operation string, build requestBuilder) (*http.Response, error) {
	var lastErr error
	attempts := c.maxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			c.logger.Debug("retrying teddycloud request",
				logging.String("operation", operation),
				logging.Int("attempt", attempt),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		req, err := build(ctx)
		if err != nil {
			return nil, services.Wrap(services.ErrNetwork, "teddycloud", operation, "build request", err)
		}
		if c.username != "" {
			req.SetBasicAuth(c.username, c.password)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = services.Wrap(services.ErrNetwork, "teddycloud", operation, "", err)
			continue
		}
		switch {
		case resp.StatusCode < 400:
			return resp, nil
		case resp.StatusCode >= 500:
			lastErr = services.Wrap(services.ErrNetwork, "teddycloud", operation,
				fmt.Sprintf("server returned %d: %s", resp.StatusCode, readErrorBody(resp.Body)), nil)
			resp.Body.Close()
			continue
		default:
			// Client errors are not transient; retrying cannot help.
			detail := fmt.Sprintf("server rejected request with %d: %s", resp.StatusCode, readErrorBody(resp.Body))
			resp.Body.Close()
			return nil, services.Wrap(services.ErrNetwork, "teddycloud", operation, detail, nil)
		}
	}
	return nil, lastErr
}

// readErrorBody returns a short excerpt of an error response body.
func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 200))
	return strings.TrimSpace(string(data))
}

// HealthCheck probes the server by listing the file index root.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.FileIndex(ctx, "", "")
	return err
}
