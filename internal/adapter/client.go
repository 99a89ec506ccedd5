package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrInsufficientCredits is returned when the backend rejects a call
// because the user's balance is too low.
var ErrInsufficientCredits = errors.New("insufficient credits")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Method  string
	URL     string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed: %s %s (status: %d)", e.Method, e.URL, e.Status)
}

// Unwrap lets errors.Is match ErrInsufficientCredits on 402 responses.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusPaymentRequired {
		return ErrInsufficientCredits
	}
	return nil
}

// errorBody is the JSON error envelope the backend returns.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type ClientOpts struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the Vintifi backend functions and data API on behalf of
// the signed-in user. The user's token travels in the request context.
type Client struct {
	httpClient *resty.Client
	baseURL    string
}

func NewClient(opts ClientOpts) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	c := Client{baseURL: opts.BaseURL}
	c.httpClient = resty.New().
		SetDebug(false).
		SetBaseURL(c.baseURL).
		SetTimeout(timeout).
		SetHeaders(
			map[string]string{
				"Accept":     "application/json",
				"User-Agent": "vintifi-app/1.0",
			},
		)
	return &c
}

type tokenKey struct{}

// WithToken returns a context carrying the user's bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token stored by WithToken.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

func (c *Client) req(ctx context.Context, result any) *resty.Request {
	request := c.httpClient.
		NewRequest().
		SetContext(ctx).
		SetError(&errorBody{})

	if token := TokenFrom(ctx); token != "" {
		request.SetAuthToken(token)
	}
	if result != nil {
		request.SetResult(result)
	}
	return request
}

// handleError turns failing responses (>399) into *APIError. Without this,
// failing responses would have nil error.
func handleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if res.IsError() {
		apiErr := &APIError{
			Method: res.Request.Method,
			URL:    res.Request.URL,
			Status: res.StatusCode(),
		}
		if body, ok := res.Error().(*errorBody); ok && body != nil {
			apiErr.Message = body.Error
			if apiErr.Message == "" {
				apiErr.Message = body.Message
			}
		}
		return res, apiErr
	}
	return res, nil
}
