package handler

import (
	"context"
	"sync"
)

// Response receives the outcome of one execution. Exactly one outcome is
// recorded: either status, headers and body, or a network error. Later
// writes are ignored. It is safe for concurrent use.
type Response struct {
	mu        sync.Mutex
	completed bool
	done      chan struct{}

	status     int
	headers    map[string][]string
	body       []byte
	networkErr error
}

// NewResponse returns an empty response.
func NewResponse() *Response {
	return &Response{done: make(chan struct{})}
}

// Status returns the HTTP status code, or 0 when unset.
func (r *Response) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Headers returns the response headers keyed by both lower-cased and
// original names.
func (r *Response) Headers() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headers
}

// Header returns the first value of the named header.
func (r *Response) Header(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v := r.headers[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Body returns the response body. It is empty when the body was streamed.
func (r *Response) Body() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body
}

// NetworkError returns the recoverable error recorded for the request.
func (r *Response) NetworkError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.networkErr
}

// Succeeded reports whether status, headers and body were recorded.
func (r *Response) Succeeded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed && r.networkErr == nil
}

// Done is closed once an outcome is recorded.
func (r *Response) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doneLocked()
}

// Wait blocks until an outcome is recorded or ctx is done.
func (r *Response) Wait(ctx context.Context) error {
	select {
	case <-r.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Response) succeed(status int, headers map[string][]string, body []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completed {
		return false
	}
	r.status, r.headers, r.body = status, headers, body
	r.completeLocked()
	return true
}

func (r *Response) fail(err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completed {
		return false
	}
	r.networkErr = err
	r.completeLocked()
	return true
}

func (r *Response) completeLocked() {
	r.completed = true
	close(r.doneLocked())
}

func (r *Response) doneLocked() chan struct{} {
	if r.done == nil {
		r.done = make(chan struct{})
	}
	return r.done
}
