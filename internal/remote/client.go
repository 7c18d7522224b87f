// Package remote talks to the storefront's advisory HTTP API. Every call is bounded by
// a timeout and every failure is reported as ErrRemoteUnavailable.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrRemoteUnavailable = errors.New("remote unavailable")

type Client struct {
	baseURL    string
	webhookURL string
	timeout    time.Duration
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithWebhookURL(u string) Option {
	return func(c *Client) { c.webhookURL = u }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	base := strings.TrimRight(baseURL, "/")
	c := &Client{
		baseURL:    base,
		webhookURL: base + "/ordine-completato",
		timeout:    timeout,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

type requestOpts struct {
	bearer string
	query  url.Values
	header http.Header
}

func (c *Client) do(ctx context.Context, method, target string, body, out any, ro requestOpts) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	if len(ro.query) > 0 {
		target += "?" + ro.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return fmt.Errorf("create request: %w: %w", ErrRemoteUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range ro.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if ro.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+ro.bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w: %w", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%s %s: status %d: %w", method, target, resp.StatusCode, ErrRemoteUnavailable)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w: %w", ErrRemoteUnavailable, err)
	}
	return nil
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}
