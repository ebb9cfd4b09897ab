package providers

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
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxResponseBodyBytes  = 1 << 20

	// HeaderIdempotencyKey carries the delivery idempotency key on every
	// publish call so a redelivered attempt can be collapsed upstream.
	HeaderIdempotencyKey = "Idempotency-Key"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type RESTClientConfig struct {
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	DefaultHeaders map[string]string
	HTTPClient     HTTPDoer
}

// RESTClient is the shared JSON-over-HTTP surface the platform adapters
// publish through. It owns request construction, auth headers, bounded
// response reads, and nothing platform specific.
type RESTClient struct {
	baseURL        string
	userAgent      string
	timeout        time.Duration
	defaultHeaders map[string]string
	httpClient     HTTPDoer
}

type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

func NewRESTClient(cfg RESTClientConfig) (*RESTClient, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("providers: base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("providers: parse base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	headers := make(map[string]string, len(cfg.DefaultHeaders))
	for key, value := range cfg.DefaultHeaders {
		headers[key] = value
	}
	return &RESTClient{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		userAgent:      strings.TrimSpace(cfg.UserAgent),
		timeout:        timeout,
		defaultHeaders: headers,
		httpClient:     httpClient,
	}, nil
}

type Request struct {
	Method         string
	Path           string
	Token          string
	IdempotencyKey string
	Payload        any
}

func (c *RESTClient) PostJSON(ctx context.Context, path string, token string, idempotencyKey string, payload any) (Response, error) {
	return c.Do(ctx, Request{
		Method:         http.MethodPost,
		Path:           path,
		Token:          token,
		IdempotencyKey: idempotencyKey,
		Payload:        payload,
	})
}

func (c *RESTClient) Delete(ctx context.Context, path string, token string) (Response, error) {
	return c.Do(ctx, Request{
		Method: http.MethodDelete,
		Path:   path,
		Token:  token,
	})
}

func (c *RESTClient) Do(ctx context.Context, req Request) (Response, error) {
	if c == nil || c.httpClient == nil {
		return Response{}, fmt.Errorf("providers: http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var body io.Reader
	if req.Payload != nil {
		encoded, err := json.Marshal(req.Payload)
		if err != nil {
			return Response{}, fmt.Errorf("providers: encode request payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return Response{}, fmt.Errorf("providers: build request: %w", err)
	}
	if req.Payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if token := strings.TrimSpace(req.Token); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		httpReq.Header.Set(HeaderIdempotencyKey, key)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	for key, value := range c.defaultHeaders {
		httpReq.Header.Set(key, value)
	}

	httpRes, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("providers: %s %s: %w", req.Method, req.Path, err)
	}
	defer httpRes.Body.Close()

	resBody, err := io.ReadAll(io.LimitReader(httpRes.Body, maxResponseBodyBytes+1))
	if err != nil {
		return Response{}, fmt.Errorf("providers: read response body: %w", err)
	}
	if int64(len(resBody)) > maxResponseBodyBytes {
		return Response{}, fmt.Errorf("providers: response exceeds %d bytes", maxResponseBodyBytes)
	}

	return Response{
		StatusCode: httpRes.StatusCode,
		Body:       resBody,
		Header:     httpRes.Header,
	}, nil
}

// DecodeJSON unmarshals a response body into out, tolerating empty bodies.
func DecodeJSON(res Response, out any) error {
	if len(bytes.TrimSpace(res.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return fmt.Errorf("providers: decode response body: %w", err)
	}
	return nil
}
