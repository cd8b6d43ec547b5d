package handler

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"

	"github.com/eranb/em-aws/security"
)

const (
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// conn is one checked-out connection slot. It owns a transport limited to
// a single connection to its origin; pooled conns keep that connection
// alive between calls.
type conn struct {
	origin string
	pooled bool
	cfg    Config
	wrap   func(http.RoundTripper) http.RoundTripper

	transport *http.Transport
	rt        http.RoundTripper
	tlsKey    string
}

func newConn(origin string, pooled bool, cfg Config, wrap func(http.RoundTripper) http.RoundTripper) (*conn, error) {
	c := &conn{origin: origin, pooled: pooled, cfg: cfg, wrap: wrap}
	if err := c.rebuild(nil, ""); err != nil {
		return nil, err
	}
	return c, nil
}

// configure prepares the transport for the TLS material in opts. The
// transport, and with it the live connection, is replaced only when that
// material changes.
func (c *conn) configure(opts CallOptions) error {
	tc := tlsConfig(opts)
	key := tc.Key()
	if key == c.tlsKey && c.rt != nil {
		return nil
	}
	built, err := tc.Build()
	if err != nil {
		return fatalError(FatalInvalidArgument, "dispatch", err)
	}
	c.Close()
	return c.rebuild(built, key)
}

func (c *conn) rebuild(tlsCfg *tls.Config, key string) error {
	dialer := &net.Dialer{
		Timeout:   c.cfg.ConnectTimeout,
		KeepAlive: defaultKeepAlive,
	}
	t := &http.Transport{
		Proxy:                 proxyFromContext,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       tlsCfg,
		TLSHandshakeTimeout:   c.cfg.ConnectTimeout,
		MaxConnsPerHost:       1,
		MaxIdleConns:          1,
		MaxIdleConnsPerHost:   1,
		IdleConnTimeout:       defaultIdleConnTimeout,
		ExpectContinueTimeout: time.Second,
		DisableKeepAlives:     !c.pooled,
		DisableCompression:    true,
	}
	if c.cfg.HTTP2 && c.pooled {
		if _, err := http2.ConfigureTransports(t); err != nil {
			return fatalError(FatalInternalDefect, "dispatch", fmt.Errorf("configure http2: %w", err))
		}
	}

	c.transport, c.tlsKey = t, key
	c.rt = t
	if c.wrap != nil {
		c.rt = c.wrap(t)
	}
	return nil
}

// Close drops the idle connection held by the transport.
func (c *conn) Close() error {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}

// tlsConfig maps call options onto TLS settings.
func tlsConfig(opts CallOptions) *security.TLSConfig {
	tc := &security.TLSConfig{SkipVerify: opts.SkipVerify}
	if opts.TLS != nil {
		tc.CertChainFile = opts.TLS.CertChainFile
		tc.PrivateKeyFile = opts.TLS.PrivateKeyFile
	}
	return tc
}

type proxyKey struct{}

// withProxy stores the proxy for one call on its context.
func withProxy(ctx context.Context, p *ProxyOptions) context.Context {
	if p == nil || p.Host == "" {
		return ctx
	}
	return context.WithValue(ctx, proxyKey{}, &url.URL{
		Scheme: "http",
		Host:   hostPort(p.Host, p.Port),
	})
}

func proxyFromContext(req *http.Request) (*url.URL, error) {
	u, _ := req.Context().Value(proxyKey{}).(*url.URL)
	return u, nil
}
