// Package client is the Go data layer for StudyHub: a transport that attaches
// the session token, classifies failures and retries connectivity errors, plus
// typed calls for every API route.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second

	idempotencyHeader     = "Idempotency-Key"
	codeRequestInProgress = "request_in_progress"
)

type Option func(*Client)

// WithHTTPClient replaces the default client. Its Timeout bounds each attempt.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetry sets how many times a connectivity failure is retried and the
// first delay; each further delay doubles.
func WithRetry(maxRetries int, base time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseDelay = base
	}
}

// WithSleep replaces the backoff sleep, mostly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// WithKeepSessionOnForbidden keeps the token after a 403. By default both 401
// and 403 end the session.
func WithKeepSessionOnForbidden() Option {
	return func(c *Client) { c.keepOnForbidden = true }
}

type Client struct {
	baseURL         string
	session         *Session
	http            *http.Client
	maxRetries      int
	baseDelay       time.Duration
	sleep           func(ctx context.Context, d time.Duration) error
	log             logrus.FieldLogger
	keepOnForbidden bool
}

// New builds a client. A nil session starts signed out with no persistence.
func New(baseURL string, session *Session, opts ...Option) *Client {
	if session == nil {
		session = NewSession(nil)
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    session,
		http:       &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		sleep:      sleepContext,
		log:        discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *Session {
	return c.session
}

type errorBody struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors"`
}

// Do sends one API call and decodes a successful body into out when out is
// not nil. Every failure is an *Error except context cancellation, which is
// returned as the context's error.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}, header http.Header) error {
	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: Unexpected, cause: err}
		}
		payload = raw
	}
	retryable := retryableMethod(method) || header.Get(idempotencyHeader) != ""

	for attempt := 0; ; attempt++ {
		resp, err := c.attempt(ctx, method, path, payload, header)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !retryable || attempt >= c.maxRetries {
				return &Error{Kind: Transient, cause: err}
			}
			if err := c.backoff(ctx, method, path, attempt, err); err != nil {
				return err
			}
			continue
		}

		err = c.handle(resp, out)
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Kind == Transient && retryable && attempt < c.maxRetries {
			if err := c.backoff(ctx, method, path, attempt, apiErr); err != nil {
				return err
			}
			continue
		}
		return err
	}
}

func (c *Client) backoff(ctx context.Context, method, path string, attempt int, cause error) error {
	delay := c.baseDelay << attempt
	c.log.WithError(cause).WithFields(logrus.Fields{
		"method":  method,
		"path":    path,
		"attempt": attempt + 1,
		"delay":   delay,
	}).Debug("request not completed, retrying")
	return c.sleep(ctx, delay)
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, header http.Header) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.http.Do(req)
}

func (c *Client) handle(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Kind: Unexpected, Status: resp.StatusCode, cause: err}
		}
		return nil
	}

	apiErr := &Error{Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode}
	var parsed errorBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err == nil {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Message
		apiErr.Fields = parsed.Errors
	}
	if apiErr.Code == codeRequestInProgress {
		// An earlier attempt with the same Idempotency-Key is still running.
		apiErr.Kind = Transient
	}
	if apiErr.Kind == Unexpected {
		// Never hand server internals to the caller.
		apiErr.cause = errors.New(apiErr.Message)
		apiErr.Message = ""
	}

	switch apiErr.Kind {
	case Unauthenticated:
		c.invalidate(ReasonUnauthenticated)
	case Forbidden:
		if !c.keepOnForbidden {
			c.invalidate(ReasonForbidden)
		}
	}
	return apiErr
}

func (c *Client) invalidate(reason Reason) {
	if !c.session.Authenticated() {
		return
	}
	c.session.Invalidate(reason)
}

func retryableMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
