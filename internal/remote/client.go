// Package remote speaks the peer scan protocol: GET http://<host>:5000/scan
// returning a JSON array of hits.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"modscan/internal/shared"
)

const (
	DefaultPort    = 5000
	ScanPath       = "/scan"
	HealthPath     = "/healthz"
	DefaultTimeout = 5 * time.Second

	maxResponseBytes = 4 << 20
)

type Client struct {
	http *http.Client
	port int
	log  *zap.Logger
}

type ClientOption func(*Client)

func WithPort(port int) ClientOption {
	return func(c *Client) {
		if port > 0 {
			c.port = port
		}
	}
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func NewClient(timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		http: &http.Client{Timeout: timeout},
		port: DefaultPort,
		log:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// wireHit is the peer's hit object. Label is required; evidence defaults to
// "unknown".
type wireHit struct {
	Label    *string `json:"label"`
	Evidence *string `json:"evidence"`
	Pid      int     `json:"pid,omitempty"`
	Source   string  `json:"source,omitempty"`
}

// Scan asks the peer at address for its hits. Every fault leaves Hits empty
// and sets Failure, so a clean peer (no-hits) is distinguishable from an
// unreachable one (failed).
func (c *Client) Scan(ctx context.Context, address string) *shared.ScanReport {
	address = strings.TrimSpace(address)
	report := shared.NewReport(shared.KindRemote, address)

	endpoint, err := c.endpoint(address)
	if err != nil {
		return report.Fail(shared.NewFailure(shared.FailureInvalidInput, err))
	}
	report.Target = endpoint

	hits, f := c.fetch(ctx, endpoint)
	if f != nil {
		c.log.Warn("remote scan failed",
			zap.String("endpoint", endpoint),
			zap.String("kind", string(f.Kind)),
			zap.String("reason", f.Reason))
		return report.Fail(f)
	}

	report.Hits = hits
	report.Inspected = len(hits)
	c.log.Info("remote scan complete", zap.String("endpoint", endpoint), zap.Int("hits", len(hits)))
	return report.Finish()
}

func (c *Client) endpoint(address string) (string, error) {
	if address == "" {
		return "", shared.Invalid("empty address")
	}
	host := address
	port := strconv.Itoa(c.port)
	if h, p, err := net.SplitHostPort(address); err == nil {
		if _, err := strconv.Atoi(p); err != nil {
			return "", shared.Invalid("address %q: bad port", address)
		}
		host, port = h, p
	}
	host = strings.Trim(host, "[]")
	if host == "" || strings.ContainsAny(host, "/?# ") {
		return "", shared.Invalid("address %q is not a host", address)
	}
	return "http://" + net.JoinHostPort(host, port) + ScanPath, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]shared.DetectionHit, *shared.Failure) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, shared.NewFailure(shared.FailureInvalidInput, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, shared.NewFailure(shared.FailureCanceled, err)
		}
		return nil, shared.NewFailure(shared.FailureTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, shared.NewFailure(shared.FailureTransient, fmt.Errorf("peer returned status %d", resp.StatusCode))
	}

	var wire []wireHit
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&wire); err != nil {
		return nil, shared.NewFailure(shared.FailureMalformed, fmt.Errorf("decode hits: %w", err))
	}

	hits := make([]shared.DetectionHit, 0, len(wire))
	for i, w := range wire {
		if w.Label == nil || strings.TrimSpace(*w.Label) == "" {
			return nil, shared.NewFailure(shared.FailureMalformed, fmt.Errorf("hit %d has no label", i))
		}
		evidence := shared.UnknownEvidence
		if w.Evidence != nil && *w.Evidence != "" {
			evidence = *w.Evidence
		}
		hits = append(hits, shared.DetectionHit{
			Label:    *w.Label,
			Evidence: evidence,
			Pid:      w.Pid,
			Source:   shared.SourceRemote,
		})
	}
	return hits, nil
}
