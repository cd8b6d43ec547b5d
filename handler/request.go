package handler

import (
	"fmt"
	"io"
	"iter"
	"maps"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Request describes one HTTP call independently of any client library.
type Request interface {
	Host() string
	// Port returns the target port, or 0 for the scheme default.
	Port() int
	Path() string
	Querystring() string
	// Headers yields header names and values. Values are coerced to strings.
	Headers() iter.Seq2[string, any]
	// BodyStream returns the request body, or nil. A body that exposes a
	// filesystem path (Pather or *os.File) is sent from that file.
	BodyStream() io.Reader
	// ProxyURI returns the proxy to use, or nil.
	ProxyURI() *url.URL
	UseSSL() bool
	SSLVerifyPeer() bool
	SSLCAFile() string
	// ReadTimeout overrides the handler inactivity timeout when positive.
	ReadTimeout() time.Duration
	HTTPMethod() string
}

// Pather is implemented by body sources backed by a file.
type Pather interface {
	Path() string
}

// bodyPath reports the filesystem path behind a body source.
func bodyPath(r io.Reader) (string, bool) {
	switch b := r.(type) {
	case Pather:
		return b.Path(), b.Path() != ""
	case *os.File:
		return b.Name(), true
	}
	return "", false
}

// FileBody is a body source sent from the file at its path.
type FileBody string

// Path returns the file path.
func (f FileBody) Path() string { return string(f) }

// Read always fails; the dispatcher opens the file itself.
func (f FileBody) Read([]byte) (int, error) {
	return 0, fmt.Errorf("handler: FileBody %q is read by path", string(f))
}

// BasicRequest is a URL-based Request.
type BasicRequest struct {
	Method string
	URL    *url.URL
	Header map[string]any
	Body   io.Reader
	// Proxy is the proxy URI, or nil for a direct connection.
	Proxy *url.URL
	// VerifyPeer enables certificate verification for https URLs.
	VerifyPeer bool
	// CAFile is a PEM bundle used to verify the server.
	CAFile string
	// Timeout is the read inactivity timeout; 0 uses the handler default.
	Timeout time.Duration
}

var _ Request = (*BasicRequest)(nil)

// NewRequest parses rawURL into a BasicRequest with peer verification on.
func NewRequest(method, rawURL string) (*BasicRequest, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("handler: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("handler: unsupported url scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("handler: url %q has no host", rawURL)
	}
	return &BasicRequest{
		Method:     method,
		URL:        u,
		Header:     map[string]any{},
		VerifyPeer: true,
	}, nil
}

func (r *BasicRequest) Host() string { return r.URL.Hostname() }

func (r *BasicRequest) Port() int {
	p, err := strconv.Atoi(r.URL.Port())
	if err != nil {
		return 0
	}
	return p
}

func (r *BasicRequest) Path() string { return r.URL.EscapedPath() }

func (r *BasicRequest) Querystring() string { return r.URL.RawQuery }

func (r *BasicRequest) Headers() iter.Seq2[string, any] { return maps.All(r.Header) }

func (r *BasicRequest) BodyStream() io.Reader { return r.Body }

func (r *BasicRequest) ProxyURI() *url.URL { return r.Proxy }

func (r *BasicRequest) UseSSL() bool { return strings.EqualFold(r.URL.Scheme, "https") }

func (r *BasicRequest) SSLVerifyPeer() bool { return r.VerifyPeer }

func (r *BasicRequest) SSLCAFile() string { return r.CAFile }

func (r *BasicRequest) ReadTimeout() time.Duration { return r.Timeout }

func (r *BasicRequest) HTTPMethod() string { return r.Method }

// defaultPort returns the scheme default port.
func defaultPort(ssl bool) int {
	if ssl {
		return 443
	}
	return 80
}

// originOf returns scheme://host:port for req.
func originOf(req Request) string {
	scheme := "http"
	if req.UseSSL() {
		scheme = "https"
	}
	port := req.Port()
	if port == 0 {
		port = defaultPort(req.UseSSL())
	}
	return scheme + "://" + hostPort(req.Host(), port)
}
