// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package emulex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/mulebridge/internal/buildinfo"
)

const (
	searchPath   = "emulex/search/"
	statusPath   = "emulex/status/"
	apiKeyHeader = "X-API-KEY"

	maxResponseBytes int64 = 32 << 20
)

// Client talks to the emulex daemon. Requests are spaced at least delay apart.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	delay      time.Duration
	log        zerolog.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient creates a client for the daemon at baseURL.
func NewClient(baseURL, apiKey string, timeoutSeconds, delaySeconds int) *Client {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	if delaySeconds < 0 {
		delaySeconds = 0
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/",
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
		delay:      time.Duration(delaySeconds) * time.Second,
		log:        log.Logger.With().Str("module", "emulex-client").Logger(),
	}
}

// Search posts keyword to the daemon and returns the raw response body.
// Anything but 201 Created is a StatusError.
func (c *Client) Search(ctx context.Context, keyword string, priority int) ([]byte, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, ErrEmptyQuery
	}

	endpoint, err := c.endpoint(searchPath)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("keyword", keyword)
	form.Set("priority", strconv.Itoa(priority))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("emulex search request failed: %w", err)
	}

	c.log.Debug().Int("status", status).Str("keyword", keyword).Msgf("search response: %s", truncate(string(body), 1024))

	if status != http.StatusCreated {
		return nil, &StatusError{StatusCode: status, URL: endpoint, Body: string(body)}
	}

	return body, nil
}

// Status queries the daemon health endpoint and returns the status code and body.
func (c *Client) Status(ctx context.Context) (int, []byte, error) {
	endpoint, err := c.endpoint(statusPath)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build status request: %w", err)
	}

	status, body, err := c.do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("emulex status request failed: %w", err)
	}

	c.log.Debug().Int("status", status).Msgf("status response: %s", truncate(string(body), 1024))

	return status, body, nil
}

func (c *Client) endpoint(path string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse emulex url: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse emulex path: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	if err := c.wait(req.Context()); err != nil {
		return 0, nil, err
	}

	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > maxResponseBytes {
		return resp.StatusCode, nil, fmt.Errorf("emulex response exceeded %d bytes limit", maxResponseBytes)
	}

	return resp.StatusCode, body, nil
}

// wait blocks until delay has passed since the previous request.
func (c *Client) wait(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.delay > 0 && !c.lastRequest.IsZero() {
		if remaining := c.delay - time.Since(c.lastRequest); remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	c.lastRequest = time.Now()
	return nil
}
