// Package devkit is the test kit for platform publisher adapters: a
// scripted HTTP transport, canned platform fixtures, and a conformance
// check for the contract every adapter shares.
package devkit

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/goliatone/go-publisher/providers"
)

// Script is one canned upstream response. Err short-circuits the call the
// way a network failure would.
type Script struct {
	Status int
	Body   string
	Header http.Header
	Err    error
}

// RecordedRequest is the adapter-visible shape of one outbound call.
type RecordedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// FakeHTTPDoer plays back scripted responses in order and records every
// request. Past the last script it repeats the final one; with no scripts
// it answers 200 with an empty object.
type FakeHTTPDoer struct {
	mu       sync.Mutex
	scripts  []Script
	requests []RecordedRequest
}

func NewFakeHTTPDoer(scripts ...Script) *FakeHTTPDoer {
	return &FakeHTTPDoer{scripts: append([]Script(nil), scripts...)}
}

func (d *FakeHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	if d == nil {
		return nil, fmt.Errorf("devkit: fake http doer is nil")
	}
	var body []byte
	if req.Body != nil {
		read, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("devkit: read request body: %w", err)
		}
		body = read
	}

	d.mu.Lock()
	d.requests = append(d.requests, RecordedRequest{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})
	index := len(d.requests) - 1
	script := Script{Status: http.StatusOK, Body: "{}"}
	if index < len(d.scripts) {
		script = d.scripts[index]
	} else if len(d.scripts) > 0 {
		script = d.scripts[len(d.scripts)-1]
	}
	d.mu.Unlock()

	if script.Err != nil {
		return nil, script.Err
	}
	header := http.Header{}
	if script.Header != nil {
		header = script.Header.Clone()
	}
	return &http.Response{
		StatusCode: script.Status,
		Body:       io.NopCloser(strings.NewReader(script.Body)),
		Header:     header,
	}, nil
}

func (d *FakeHTTPDoer) Requests() []RecordedRequest {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]RecordedRequest, len(d.requests))
	copy(out, d.requests)
	return out
}

var _ providers.HTTPDoer = (*FakeHTTPDoer)(nil)
