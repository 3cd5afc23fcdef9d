package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultHub       = "https://huggingface.co/api/models"
	DefaultInference = "https://api-inference.huggingface.co/models"
)

var defaultBackoff = []time.Duration{
	10 * time.Second,
	30 * time.Second,
	1 * time.Minute,
}

type Config struct {
	Token     string
	Hub       string
	Inference string
	Client    *http.Client
	Logger    zerolog.Logger
	// Backoff between retries, the last value is reused.
	Backoff     []time.Duration
	MaxAttempts int
}

// Client talks to the Hugging Face Hub and inference API.
type Client struct {
	client      *http.Client
	token       string
	hub         string
	inference   string
	log         zerolog.Logger
	backoff     []time.Duration
	maxAttempts int
}

func New(cfg *Config) *Client {
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: 5 * time.Minute,
		}
	}
	hub := DefaultHub
	if cfg.Hub != "" {
		hub = strings.TrimSuffix(cfg.Hub, "/")
	}
	inference := DefaultInference
	if cfg.Inference != "" {
		inference = strings.TrimSuffix(cfg.Inference, "/")
	}
	backoff := defaultBackoff
	if len(cfg.Backoff) > 0 {
		backoff = cfg.Backoff
	}
	maxAttempts := 3
	if cfg.MaxAttempts > 0 {
		maxAttempts = cfg.MaxAttempts
	}
	return &Client{
		client:      client,
		token:       cfg.Token,
		hub:         hub,
		inference:   inference,
		log:         cfg.Logger,
		backoff:     backoff,
		maxAttempts: maxAttempts,
	}
}

type errStatusCode int

func (e errStatusCode) Error() string {
	return fmt.Sprintf("%d", e)
}

// StatusCode returns the HTTP status code wrapped in err, or 0.
func StatusCode(err error) int {
	var errStatus errStatusCode
	if errors.As(err, &errStatus) {
		return int(errStatus)
	}
	return 0
}

type response struct {
	body        []byte
	contentType string
}

func (c *Client) do(ctx context.Context, method, u string, in any, accept string) (*response, error) {
	attempts := 0
	var err error
	for {
		if err != nil {
			c.log.Warn().Err(err).Msg("huggingface: retrying")
		}
		var resp *response
		resp, err = c.doAttempt(ctx, method, u, in, accept)
		if err == nil {
			return resp, nil
		}
		// Increase attempts and check if we should stop
		attempts++
		if attempts >= c.maxAttempts {
			return nil, err
		}

		// Retry on timeouts and on model loading or rate limiting
		var netErr net.Error
		retry := errors.As(err, &netErr) && netErr.Timeout()
		switch StatusCode(err) {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
			retry = true
		}
		if !retry {
			return nil, err
		}

		idx := attempts - 1
		if idx >= len(c.backoff) {
			idx = len(c.backoff) - 1
		}
		wait := c.backoff[idx]
		c.log.Debug().Dur("wait", wait).Msg("huggingface: server not ready, waiting before retrying")
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Client) doAttempt(ctx context.Context, method, u string, in any, accept string) (*response, error) {
	var body []byte
	var reqBody io.Reader
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("huggingface: couldn't marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(body)
	}
	logBody := string(body)
	if len(logBody) > 100 {
		logBody = logBody[:100] + "..."
	}
	c.log.Debug().Str("method", method).Str("url", u).Str("body", logBody).Msg("huggingface: do")

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("huggingface: couldn't create request: %w", err)
	}
	if in != nil {
		req.Header.Set("content-type", "application/json")
	}
	if accept != "" {
		req.Header.Set("accept", accept)
	}
	if c.token != "" {
		req.Header.Set("authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface: couldn't %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("huggingface: couldn't read response body: %w", err)
	}
	contentType := resp.Header.Get("content-type")
	c.log.Debug().Int("status", resp.StatusCode).Str("content-type", contentType).Int("size", len(respBody)).Msg("huggingface: response")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("huggingface: %s %s returned (%s): %w", method, u, errorMessage(respBody), errStatusCode(resp.StatusCode))
	}
	return &response{body: respBody, contentType: contentType}, nil
}

// errorMessage extracts the error field of a json error response.
func errorMessage(b []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	msg := string(b)
	if err := json.Unmarshal(b, &e); err == nil && e.Error != "" {
		msg = e.Error
	}
	if len(msg) > 100 {
		msg = msg[:100] + "..."
	}
	return msg
}

func modelPath(base, name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/%s", base, strings.Join(parts, "/"))
}

func unmarshal(b []byte, out any) error {
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("huggingface: couldn't unmarshal response body (%T): %w", out, err)
	}
	return nil
}
