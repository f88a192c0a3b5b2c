// Package remote is the HTTP client for the identity and remote progress store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"studytrail/internal/models"
)

// Claim statuses returned by the server
const (
	StatusCreated = "created"
	StatusExists  = "exists"
)

// maxBodyBytes bounds how much of a response body is read
const maxBodyBytes = 1 << 20

// ClaimResponse is the server's answer to a username claim
type ClaimResponse struct {
	Status   string `json:"status"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client talks to the remote store over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a client for the server at baseURL. A zero timeout disables
// the per-request deadline.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Claim asks the server to create or resume username
func (c *Client) Claim(ctx context.Context, username string) (*ClaimResponse, error) {
	body, err := json.Marshal(map[string]string{"username": username})
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/claims", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}

	var claim ClaimResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&claim); err != nil {
		return nil, fmt.Errorf("%w: malformed claim response: %v", ErrUnavailable, err)
	}
	if claim.Token == "" || (claim.Status != StatusCreated && claim.Status != StatusExists) {
		return nil, fmt.Errorf("%w: incomplete claim response", ErrUnavailable)
	}
	return &claim, nil
}

// SuggestUsername asks the server for a generated username that is free to claim
func (c *Client) SuggestUsername(ctx context.Context) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/usernames/suggestion", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readError(resp)
	}

	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil || body.Username == "" {
		return "", fmt.Errorf("%w: malformed suggestion response", ErrUnavailable)
	}
	return body.Username, nil
}

// FetchProgress returns the remote record for username, or ErrNotFound
func (c *Client) FetchProgress(ctx context.Context, username string) (*models.CurriculumProgress, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.progressURL(username), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return models.DecodeProgress(data)
}

// PushProgress replaces the remote record with p, authenticated by the identity's token
func (c *Client) PushProgress(ctx context.Context, identity models.Identity, p *models.CurriculumProgress) error {
	if !identity.CanWrite() {
		return ErrUnauthorized
	}

	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.progressURL(identity.Username), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.authorized(ctx, identity.AuthToken).Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return readError(resp)
	}
	return nil
}

// authorized wraps the base client so every request carries the bearer token
func (c *Client) authorized(ctx context.Context, token string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
}

func (c *Client) progressURL(username string) string {
	return c.baseURL + "/api/v1/progress/" + url.PathEscape(username)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func readError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var body errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err == nil {
		apiErr.Message = body.Error
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		apiErr.kind = ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		apiErr.kind = ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr.kind = ErrRateLimited
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		apiErr.kind = ErrRejected
	default:
		apiErr.kind = ErrUnavailable
	}
	return apiErr
}
