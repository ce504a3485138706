// Package httputil provides the outbound HTTP client abstraction shared by
// the fetcher, the reverse geocoder and the LLM client. All three talk to
// remote services through the Client interface so tests can run against the
// canned-response mock instead of the network.
package httputil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout bounds every outbound request so a stalled remote call
// cannot hang a pipeline stage indefinitely.
const DefaultTimeout = 60 * time.Second

// Client abstracts outbound HTTP operations for testability.
// Use NewStandardClient for production; NewMockClient for testing.
type Client interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
	// Get issues a GET to the specified URL.
	Get(url string) (*http.Response, error)
	// Post issues a POST to the specified URL.
	Post(url, contentType string, body io.Reader) (*http.Response, error)
}

// StandardClient wraps *http.Client to implement Client.
type StandardClient struct {
	*http.Client
}

// NewStandardClient creates a StandardClient wrapping the given http.Client.
// A nil argument yields a client with the package default timeout.
func NewStandardClient(c *http.Client) *StandardClient {
	if c == nil {
		c = &http.Client{Timeout: DefaultTimeout}
	}
	return &StandardClient{Client: c}
}

// Do sends an HTTP request.
func (c *StandardClient) Do(req *http.Request) (*http.Response, error) {
	return c.Client.Do(req)
}

// Get issues a GET request.
func (c *StandardClient) Get(url string) (*http.Response, error) {
	return c.Client.Get(url)
}

// Post issues a POST request.
func (c *StandardClient) Post(url, contentType string, body io.Reader) (*http.Response, error) {
	return c.Client.Post(url, contentType, body)
}

// MockClient is a Client that replays queued canned responses in order and
// records every request it receives.
type MockClient struct {
	mu        sync.Mutex
	requests  []*http.Request
	queue     []mockResponse
	nextIdx   int
	failAfter error
}

type mockResponse struct {
	status int
	body   string
	header http.Header
	err    error
}

// NewMockClient creates an empty mock client. With nothing queued, requests
// succeed with 200 and an empty body.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Enqueue queues a response with the given status code and body.
func (m *MockClient) Enqueue(status int, body string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockResponse{status: status, body: body, header: make(http.Header)})
	return m
}

// EnqueueError queues a transport-level failure.
func (m *MockClient) EnqueueError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockResponse{err: err})
	return m
}

// FailWith makes every request past the queued responses return err.
func (m *MockClient) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = err
}

// Do records the request and replays the next queued response.
func (m *MockClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.nextIdx < len(m.queue) {
		resp := m.queue[m.nextIdx]
		m.nextIdx++
		if resp.err != nil {
			return nil, resp.err
		}
		return &http.Response{
			StatusCode: resp.status,
			Body:       io.NopCloser(bytes.NewBufferString(resp.body)),
			Header:     resp.header,
			Request:    req,
		}, nil
	}

	if m.failAfter != nil {
		return nil, m.failAfter
	}

	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewBufferString("")),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// Get issues a GET request through Do.
func (m *MockClient) Get(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return m.Do(req)
}

// Post issues a POST request through Do.
func (m *MockClient) Post(url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return m.Do(req)
}

// Request returns the nth recorded request, or nil if out of range.
func (m *MockClient) Request(n int) *http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 || n >= len(m.requests) {
		return nil
	}
	return m.requests[n]
}

// RequestCount returns the number of recorded requests.
func (m *MockClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
