package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// RecordedRequest is a request seen by a TestServer.
type RecordedRequest struct {
	Method string
	Path   string
	Body   string
	Header http.Header
}

// TestServer is an HTTP server that echoes requests and records them.
// GET /status/{code} replies with that status code.
type TestServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest
}

// StartTestServer starts a TestServer that is closed when the test ends.
func StartTestServer(t testing.TB) *TestServer {
	t.Helper()
	ts := &TestServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status/{code}", func(w http.ResponseWriter, r *http.Request) {
		ts.record(r, "")
		var code int
		if _, err := fmt.Sscanf(r.PathValue("code"), "%d", &code); err != nil || code < 100 {
			code = http.StatusBadRequest
		}
		w.WriteHeader(code)
		_, _ = fmt.Fprintf(w, "status %d", code)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ts.record(r, string(body))
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintf(w, "%s %s %s", r.Method, r.URL.Path, body)
	})
	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func (ts *TestServer) record(r *http.Request, body string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.requests = append(ts.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Body:   body,
		Header: r.Header.Clone(),
	})
}

// Requests returns the requests received so far.
func (ts *TestServer) Requests() []RecordedRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]RecordedRequest, len(ts.requests))
	copy(out, ts.requests)
	return out
}
