package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eranb/em-aws/version"
)

// supportedMethods are the verbs the dispatcher can issue.
var supportedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodHead,
	http.MethodPatch,
	http.MethodOptions,
}

// checkMethod normalizes method and rejects unsupported verbs.
func checkMethod(method string) (string, error) {
	m := strings.ToUpper(method)
	if !slices.Contains(supportedMethods, m) {
		return "", fatalError(FatalUnsupported, "dispatch", fmt.Errorf("unsupported http method %q", method))
	}
	return m, nil
}

// call is one dispatch on a checked-out connection.
type call struct {
	method     string
	host       string
	port       int
	ssl        bool
	opts       CallOptions
	sink       io.Writer
	inactivity time.Duration
}

// dispatch issues the call and waits for it to complete. With a sink the
// body is forwarded chunk by chunk and RawResponse.Body stays empty.
func (c *conn) dispatch(ctx context.Context, cl call) (RawResponse, error) {
	if err := c.configure(cl.opts); err != nil {
		return RawResponse{}, err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	wd := startWatchdog(cl.inactivity, cancel)
	defer wd.stop()

	req, err := c.newRequest(withProxy(ctx, cl.opts.Proxy), cl, wd)
	if err != nil {
		return RawResponse{}, err
	}

	resp, err := c.rt.RoundTrip(req)
	if err != nil {
		return RawResponse{}, causeOf(ctx, err)
	}
	defer resp.Body.Close()

	raw := RawResponse{Status: resp.StatusCode, Header: resp.Header}
	body := &activityReader{r: resp.Body, wd: wd}
	if cl.sink != nil {
		if _, err := io.Copy(cl.sink, body); err != nil {
			return RawResponse{}, causeOf(ctx, err)
		}
		return raw, nil
	}
	if raw.Body, err = io.ReadAll(body); err != nil {
		return RawResponse{}, causeOf(ctx, err)
	}
	return raw, nil
}

// newRequest builds the outbound request for cl. Reads of the request body
// touch wd, so a slow upload is not mistaken for an idle call.
func (c *conn) newRequest(ctx context.Context, cl call, wd *watchdog) (*http.Request, error) {
	scheme := "http"
	if cl.ssl {
		scheme = "https"
	}
	path := cl.opts.Path
	if path == "" {
		path = "/"
	}
	u := &url.URL{
		Scheme:   scheme,
		Host:     hostPort(cl.host, cl.port),
		RawQuery: cl.opts.Query,
	}
	if err := setPath(u, path); err != nil {
		return nil, fatalError(FatalInvalidArgument, "dispatch", err)
	}

	body, length, err := requestBody(cl.opts)
	if err != nil {
		return nil, err
	}
	if body != nil && wd != nil {
		body = &activityReadCloser{activityReader{r: body, wd: wd}, body}
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		if body != nil {
			body.Close()
		}
		return nil, fatalError(FatalInvalidArgument, "dispatch", err)
	}
	if length >= 0 {
		req.ContentLength = length
	}

	names := make([]string, 0, len(cl.opts.Headers))
	for name := range cl.opts.Headers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if v := cl.opts.Headers[name]; v != "" {
			req.Header.Set(name, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", version.UserAgent())
	}
	req.Close = !c.pooled
	return req, nil
}

// setPath sets an already-escaped path on u.
func setPath(u *url.URL, escaped string) error {
	p, err := url.PathUnescape(escaped)
	if err != nil {
		return fmt.Errorf("invalid request path %q: %w", escaped, err)
	}
	u.Path, u.RawPath = p, escaped
	return nil
}

// requestBody opens the body source. length is -1 when unknown.
func requestBody(opts CallOptions) (io.ReadCloser, int64, error) {
	if opts.File != "" {
		f, err := os.Open(opts.File)
		if err != nil {
			return nil, 0, fmt.Errorf("open body file: %w", err)
		}
		st, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, fmt.Errorf("stat body file: %w", err)
		}
		if st.Size() == 0 {
			f.Close()
			return nil, -1, nil
		}
		return f, st.Size(), nil
	}
	if len(opts.Body) == 0 {
		return nil, -1, nil
	}
	return io.NopCloser(bytes.NewReader(opts.Body)), int64(len(opts.Body)), nil
}

// causeOf prefers the watchdog cause over the transport's own error.
func causeOf(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrInactivity) {
		return fmt.Errorf("%w: %w", ErrInactivity, err)
	}
	return err
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// watchdog cancels a call when no data arrives for its interval.
type watchdog struct {
	mu    sync.Mutex
	d     time.Duration
	timer *time.Timer
}

func startWatchdog(d time.Duration, cancel context.CancelCauseFunc) *watchdog {
	if d <= 0 {
		return nil
	}
	return &watchdog{d: d, timer: time.AfterFunc(d, func() { cancel(ErrInactivity) })}
}

// touch restarts the interval.
func (w *watchdog) touch() {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.timer.Reset(w.d)
	w.mu.Unlock()
}

func (w *watchdog) stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.timer.Stop()
	w.mu.Unlock()
}

// activityReader touches the watchdog whenever bytes arrive.
type activityReader struct {
	r  io.Reader
	wd *watchdog
}

func (a *activityReader) Read(p []byte) (int, error) {
	n, err := a.r.Read(p)
	if n > 0 {
		a.wd.touch()
	}
	return n, err
}

type activityReadCloser struct {
	activityReader
	io.Closer
}
