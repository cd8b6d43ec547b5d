package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eranb/em-aws/logger"
	"github.com/eranb/em-aws/observability"
	"github.com/eranb/em-aws/pool"
)

// Handler executes Requests over per-origin connection pools.
type Handler struct {
	cfg     Config
	pools   *pool.Manager[*conn]
	log     *logger.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
	wrapRT  func(http.RoundTripper) http.RoundTripper
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(l *logger.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithMetrics records request and pool metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(h *Handler) { h.tracer = t }
}

// WithRoundTripper wraps the transport of every connection. The wrapper
// receives the connection's own transport and may replace it.
func WithRoundTripper(wrap func(http.RoundTripper) http.RoundTripper) Option {
	return func(h *Handler) { h.wrapRT = wrap }
}

// New creates a Handler.
func New(cfg Config, opts ...Option) (*Handler, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Handler{
		cfg:    cfg,
		log:    logger.Get("handler"),
		tracer: observability.Tracer(),
	}
	for _, opt := range opts {
		opt(h)
	}

	pc := cfg.poolConfig()
	pc.OnAcquire = func(origin string) { h.recordCheckout(origin, 1) }
	pc.OnRelease = func(origin string) { h.recordCheckout(origin, -1) }
	pc.OnReject = h.onReject
	h.pools = pool.NewManager(pc, h.dial)

	h.log.Info("handler created", logger.Fields(
		"pool_size", cfg.PoolSize,
		"never_block", cfg.NeverBlock,
		"pool_timeout", cfg.PoolTimeout.String(),
		"connect_timeout", cfg.ConnectTimeout.String(),
		"inactivity_timeout", cfg.InactivityTimeout.String(),
	))
	return h, nil
}

// Config returns the handler configuration.
func (h *Handler) Config() Config {
	return h.cfg
}

// Stats returns the occupancy of every origin pool.
func (h *Handler) Stats() []pool.Stats {
	return h.pools.Stats()
}

// CallOption configures one Handle call.
type CallOption func(*callOptions)

type callOptions struct {
	sink      io.Writer
	scheduler *Scheduler
}

// WithStream forwards the response body to w as it arrives instead of
// buffering it on the Response.
func WithStream(w io.Writer) CallOption {
	return func(o *callOptions) { o.sink = w }
}

// WithScheduler runs the call on s when s is running. Async calls then
// return before completion; their fatal errors are returned by s.Stop.
func WithScheduler(s *Scheduler) CallOption {
	return func(o *callOptions) { o.scheduler = s }
}

// Handle executes req and records the outcome on resp. Network errors are
// recorded on resp; only fatal errors are returned.
func (h *Handler) Handle(ctx context.Context, req Request, resp *Response, opts ...CallOption) error {
	return h.handle(ctx, req, resp, false, opts)
}

// HandleAsync is Handle in async mode. With a running scheduler it returns
// immediately and resp is populated later.
func (h *Handler) HandleAsync(ctx context.Context, req Request, resp *Response, opts ...CallOption) error {
	return h.handle(ctx, req, resp, true, opts)
}

func (h *Handler) handle(ctx context.Context, req Request, resp *Response, async bool, opts []CallOption) error {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}

	callOpts, err := BuildOptions(h.cfg, req)
	if err != nil {
		if IsFatal(err) {
			h.log.WithContext(ctx).Error("invalid request options", logger.Fields(logger.FieldError, err.Error()))
			return err
		}
		h.recordFailure(ctx, resp, err)
		return nil
	}
	callOpts.Async = callOpts.Async || async

	task := func(ctx context.Context) error {
		return h.execute(ctx, req, resp, callOpts, co.sink)
	}

	if s := co.scheduler; s.Running() {
		if !callOpts.Async {
			return task(ctx)
		}
		if err := s.Go(task); err != nil {
			return fatalError(FatalInvalidArgument, "dispatch", err)
		}
		return nil
	}

	s := NewScheduler()
	if err := s.Start(ctx); err != nil {
		return fatalError(FatalInternalDefect, "dispatch", err)
	}
	if err := s.Go(task); err != nil {
		return fatalError(FatalInternalDefect, "dispatch", err)
	}
	return s.Stop()
}

// execute runs one request to completion and records its outcome.
func (h *Handler) execute(ctx context.Context, req Request, resp *Response, opts CallOptions, sink io.Writer) error {
	requestID := uuid.NewString()
	ctx = logger.ContextWithRequestID(ctx, requestID)
	origin := originOf(req)

	ctx, span := h.tracer.Start(ctx, observability.SpanRequest,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(observability.AttrRequestID, requestID),
			attribute.String(observability.AttrMethod, req.HTTPMethod()),
			attribute.String(observability.AttrOrigin, origin),
			attribute.Bool(observability.AttrAsync, opts.Async),
			attribute.Bool(observability.AttrPooled, h.cfg.PoolSize > 0),
			attribute.Bool(observability.AttrStreamSink, sink != nil),
		),
	)
	defer span.End()

	log := h.log.WithContext(ctx)
	log.Debug("dispatching request", logger.Fields(
		logger.FieldMethod, req.HTTPMethod(),
		logger.FieldOrigin, origin,
		logger.FieldAsync, opts.Async,
	))

	start := time.Now()
	raw, err := h.roundTrip(ctx, origin, req, opts, sink)
	if err == nil && raw.Status == 0 {
		err = &Error{Kind: KindTimeout, Op: "dispatch", Err: errZeroStatus}
	}
	duration := time.Since(start)

	if err != nil {
		var e *Error
		errors.As(err, &e)
		span.RecordError(err)
		span.SetStatus(codes.Error, e.Kind.String())
		span.SetAttributes(attribute.String(observability.AttrErrorKind, e.Kind.String()))

		if e.Kind == KindFatal {
			span.SetAttributes(attribute.String(observability.AttrFatalKind, e.Fatal.String()))
			log.Error("request failed fatally", logger.MergeWithDuration(
				logger.ErrorFields(e.Fatal.String(), err), duration))
			h.recordRequest(ctx, req.HTTPMethod(), observability.OutcomeFatal, duration)
			return e
		}
		h.recordFailure(ctx, resp, e)
		h.recordRequest(ctx, req.HTTPMethod(), observability.OutcomeFailed, duration)
		return nil
	}

	status, headers, body := Normalize(raw)
	resp.succeed(status, headers, body)
	span.SetAttributes(attribute.Int(observability.AttrStatus, status))
	log.Debug("request completed", logger.MergeWithDuration(logger.Fields(
		logger.FieldStatus, status,
		logger.FieldOrigin, origin,
	), duration))
	h.recordRequest(ctx, req.HTTPMethod(), observability.OutcomeSucceeded, duration)
	return nil
}

// roundTrip acquires a connection and dispatches on it. Every error it
// returns is classified; panics become internal defects.
func (h *Handler) roundTrip(ctx context.Context, origin string, req Request, opts CallOptions, sink io.Writer) (raw RawResponse, err error) {
	var (
		c        *conn
		acquired bool
	)
	defer func() {
		if p := recover(); p != nil {
			raw, err = RawResponse{}, fatalError(FatalInternalDefect, "dispatch", fmt.Errorf("panic: %v", p))
		}
		if acquired {
			if err == nil {
				h.pools.Release(origin, c)
			} else {
				h.pools.Discard(origin, c)
			}
		}
		err = classify("dispatch", err)
	}()

	method, err := checkMethod(req.HTTPMethod())
	if err != nil {
		return RawResponse{}, err
	}

	waitStart := time.Now()
	c, err = h.pools.Acquire(ctx, origin)
	if h.metrics != nil && h.cfg.PoolSize > 0 {
		h.metrics.RecordPoolWait(ctx, origin, time.Since(waitStart))
	}
	if err != nil {
		return RawResponse{}, classify("acquire", err)
	}
	acquired = true

	port := req.Port()
	if port == 0 {
		port = defaultPort(req.UseSSL())
	}
	inactivity := h.cfg.InactivityTimeout
	if rt := req.ReadTimeout(); rt > 0 {
		inactivity = rt
	}

	return c.dispatch(ctx, call{
		method:     method,
		host:       req.Host(),
		port:       port,
		ssl:        req.UseSSL(),
		opts:       opts,
		sink:       sink,
		inactivity: inactivity,
	})
}

// dial is the pool factory.
func (h *Handler) dial(_ context.Context, origin string, pooled bool) (*conn, error) {
	if pooled {
		h.log.Debug("opening pooled connection", logger.Fields(logger.FieldOrigin, origin))
	}
	return newConn(origin, pooled, h.cfg, h.wrapRT)
}

// Shutdown closes every pool. Later calls record a network error.
func (h *Handler) Shutdown(ctx context.Context) error {
	err := h.pools.Shutdown(ctx)
	h.log.Info("handler shut down")
	return err
}

func (h *Handler) recordFailure(ctx context.Context, resp *Response, err error) {
	resp.fail(err)
	kind := KindOf(err).String()
	h.log.WithContext(ctx).Warn("request recorded network error", logger.ErrorFields(kind, err))
	if h.metrics != nil {
		h.metrics.RecordNetworkError(ctx, kind)
	}
}

func (h *Handler) recordRequest(ctx context.Context, method, outcome string, d time.Duration) {
	if h.metrics != nil {
		h.metrics.RecordRequest(ctx, method, outcome, d)
	}
}

func (h *Handler) recordCheckout(origin string, delta int64) {
	if h.metrics != nil {
		h.metrics.RecordCheckout(context.Background(), origin, delta)
	}
}

func (h *Handler) onReject(origin string, err error) {
	reason := "timeout"
	switch {
	case errors.Is(err, pool.ErrExhausted):
		reason = "exhausted"
	case errors.Is(err, context.Canceled):
		reason = "canceled"
	}
	h.log.Debug("connection acquisition rejected", logger.Fields(
		logger.FieldOrigin, origin,
		"reason", reason,
	))
	if h.metrics != nil {
		h.metrics.RecordPoolReject(context.Background(), origin, reason)
	}
}
