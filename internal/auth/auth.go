// Package auth is the client for the login and license-validation service.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"modscan/internal/shared"
)

const (
	loginPath   = "/login.php"
	licensePath = "/validate_license.php"

	maxBodyBytes = 64 << 10
)

type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, shared.Invalid("auth base url is not configured")
	}
	if u, err := url.Parse(baseURL); err != nil || u.Host == "" {
		return nil, shared.Invalid("auth base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}, nil
}

// Login reports whether the service accepted the credentials. Transport and
// decode failures return false together with the error.
func (c *Client) Login(ctx context.Context, username, password string) (bool, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return false, shared.Invalid("username and password are required")
	}

	var resp struct {
		Success *bool `json:"success"`
	}
	form := url.Values{"username": {username}, "password": {password}}
	if err := c.post(ctx, loginPath, form, &resp); err != nil {
		return false, err
	}
	ok := resp.Success != nil && *resp.Success
	c.log.Info("login", zap.String("user", username), zap.Bool("accepted", ok))
	return ok, nil
}

// ValidateLicense reports whether key is a valid license.
func (c *Client) ValidateLicense(ctx context.Context, key string) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, shared.Invalid("license key is required")
	}

	var resp struct {
		Valid *bool `json:"valid"`
	}
	if err := c.post(ctx, licensePath, url.Values{"license_key": {key}}, &resp); err != nil {
		return false, err
	}
	ok := resp.Valid != nil && *resp.Valid
	c.log.Info("license validation", zap.Bool("valid", ok))
	return ok, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}
