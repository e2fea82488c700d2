// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

// Package backend is the HTTP client for the managed auth and database
// service (a Supabase-compatible GoTrue and PostgREST API).
//
// Auth calls live under /auth/v1, table reads and RPCs under /rest/v1. Every
// call carries the project's anon key in the apikey header and a bearer
// token: the user's access token when one is given, the anon key otherwise.
//
// Failures are returned as *Error with a typed Code. Calls run behind a
// circuit breaker and an optional outbound rate limiter. Nothing is retried;
// the user is the retry mechanism.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tenpo/internal/logging"
	"github.com/tomtom215/tenpo/internal/metrics"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// Config configures a Client.
type Config struct {
	URL     string
	AnonKey string
	Timeout time.Duration

	// RateLimit is outbound requests per second; zero disables the limiter.
	RateLimit float64
	RateBurst int

	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration

	// HTTPClient overrides the default client. Used by tests.
	HTTPClient *http.Client
}

// Client talks to the backend.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*rawResponse]
	limiter *rate.Limiter
}

// rawResponse is a fully read HTTP response.
type rawResponse struct {
	status int
	body   []byte
}

// New creates a backend client.
func New(cfg *Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("backend anon key is required")
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		anonKey: cfg.AnonKey,
		http:    httpClient,
		breaker: newBreaker(cfg),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// Ready reports whether the circuit breaker lets calls through.
func (c *Client) Ready() bool {
	return c.breaker.State() != gobreaker.StateOpen
}

// request describes one backend call.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	token  string // user access token, empty for anon calls
	body   interface{}
}

// do executes req and decodes a successful JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, req *request, out interface{}) error {
	start := time.Now()
	resp, err := c.execute(ctx, req)
	code := "ok"
	if err != nil {
		code = string(CodeOf(err))
	}
	metrics.RecordBackendRequest(req.op, code, time.Since(start))
	if err != nil {
		return err
	}

	if out == nil || len(resp.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &Error{Op: req.op, Status: resp.status, Code: CodeUnknown, Message: "decode response: " + err.Error()}
	}
	return nil
}

func (c *Client) execute(ctx context.Context, req *request) (*rawResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Op: req.op, Code: CodeRateLimited, Message: err.Error()}
		}
	}

	resp, err := c.breaker.Execute(func() (*rawResponse, error) {
		return c.roundTrip(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		logging.Ctx(ctx).Warn().Str("op", req.op).Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		return nil, &Error{Op: req.op, Status: http.StatusServiceUnavailable, Code: CodeUnavailable, Message: err.Error()}
	}
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, req *request) (*rawResponse, error) {
	var body io.Reader = http.NoBody
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", req.op, err)
		}
		body = bytes.NewReader(payload)
	}

	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", req.op, err)
	}
	httpReq.Header.Set("apikey", c.anonKey)
	bearer := req.token
	if bearer == "" {
		bearer = c.anonKey
	}
	httpReq.Header.Set("Authorization", "Bearer "+bearer)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &Error{Op: req.op, Code: CodeUnavailable, Message: err.Error()}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Op: req.op, Status: httpResp.StatusCode, Code: CodeUnavailable, Message: "read body: " + err.Error()}
	}

	raw := &rawResponse{status: httpResp.StatusCode, body: data}
	if httpResp.StatusCode >= 400 {
		return raw, errorFromResponse(req.op, httpResp.StatusCode, data)
	}
	return raw, nil
}

// errorBody covers the error shapes of both the auth server and PostgREST.
type errorBody struct {
	ErrorCode        string `json:"error_code"`
	Code             interface{} `json:"code"` // int from auth, string from PostgREST
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func errorFromResponse(op string, status int, data []byte) *Error {
	var eb errorBody
	_ = json.Unmarshal(data, &eb)

	message := firstNonEmpty(eb.Msg, eb.Message, eb.ErrorDescription, eb.Error)
	if message == "" {
		message = http.StatusText(status)
	}
	errorCode := eb.ErrorCode
	if errorCode == "" {
		if s, ok := eb.Code.(string); ok {
			errorCode = s
		}
	}

	return &Error{
		Op:      op,
		Status:  status,
		Code:    classify(status, errorCode, message),
		Message: message,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
