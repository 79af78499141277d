// Package testutil provides test doubles for the storybook backend.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines a canned response for a mock provider endpoint.
type MockResponse struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
	Delay      time.Duration
}

// MockProvider is a configurable mock generative-AI provider server.
// Point a provider client's BaseURL at URL() and register responses per path.
type MockProvider struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requestCount    int
	lastRequestHdr  http.Header
	lastRequestBody []byte
}

// NewMockProvider creates a started mock provider server.
func NewMockProvider() *MockProvider {
	mock := &MockProvider{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.requestCount++
		mock.lastRequestHdr = r.Header.Clone()
		mock.lastRequestBody = body
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockProvider) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockProvider) Close() {
	m.server.Close()
}

// Reset clears counters and recorded request data.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.lastRequestHdr = nil
	m.lastRequestBody = nil
}

// SetHandler registers a custom handler for a path.
func (m *MockProvider) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse registers a canned response for a path.
func (m *MockProvider) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, ResponseHandler(resp))
}

// RequestCount returns the number of requests received.
func (m *MockProvider) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// LastRequestHeaders returns the headers of the most recent request.
func (m *MockProvider) LastRequestHeaders() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHdr
}

// LastRequestBody returns the body of the most recent request.
func (m *MockProvider) LastRequestBody() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestBody
}

// ResponseHandler converts a MockResponse into a handler.
func ResponseHandler(resp MockResponse) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if len(resp.Body) > 0 {
			w.Write(resp.Body)
		}
	}
}

// FailThenSucceed returns a handler that serves fail for the first n
// requests to its path and ok afterwards.
func FailThenSucceed(n int, fail, ok MockResponse) http.HandlerFunc {
	var mu sync.Mutex
	served := 0
	failHandler := ResponseHandler(fail)
	okHandler := ResponseHandler(ok)

	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		served++
		failing := served <= n
		mu.Unlock()

		if failing {
			failHandler(w, r)
			return
		}
		okHandler(w, r)
	}
}

// NewJSONResponse creates a 200 response with a JSON body.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       []byte(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewImageResponse creates a 200 response with raw image bytes.
func NewImageResponse(data []byte, mimeType string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers:    map[string]string{"Content-Type": mimeType},
	}
}

// NewAudioResponse creates a 200 response with raw audio bytes.
func NewAudioResponse(data []byte) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers:    map[string]string{"Content-Type": "audio/mpeg"},
	}
}

// NewRateLimitResponse creates a 429 response with a Retry-After header.
func NewRateLimitResponse(retryAfterSeconds int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       []byte(`{"error":"rate limit exceeded"}`),
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Retry-After":  strconv.Itoa(retryAfterSeconds),
		},
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       []byte(`{"error":"internal server error"}`),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
