package handler

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
)

// ProxyOptions is the proxy endpoint for one call.
type ProxyOptions struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// TLSOptions is the TLS material for one call. A cert chain without a
// private key is used as trust roots.
type TLSOptions struct {
	PrivateKeyFile string `mapstructure:"private_key_file"`
	CertChainFile  string `mapstructure:"cert_chain_file"`
}

// CallOptions are the client-call options derived for one request.
// Absent options are nil or empty. Body and File are mutually exclusive.
type CallOptions struct {
	Headers    map[string]string `mapstructure:"headers"`
	Proxy      *ProxyOptions     `mapstructure:"proxy"`
	TLS        *TLSOptions       `mapstructure:"tls"`
	SkipVerify bool              `mapstructure:"skip_verify"`
	Body       []byte            `mapstructure:"body"`
	File       string            `mapstructure:"file"`
	Query      string            `mapstructure:"query"`
	Path       string            `mapstructure:"path"`
	Async      bool              `mapstructure:"async"`

	// Extra holds default options the dispatcher does not interpret.
	Extra map[string]any `mapstructure:",remain"`
}

// BuildOptions derives the call options for req. Layers are applied from
// lowest to highest priority: handler defaults, headers, proxy, TLS, then
// query, body and path. It does not mutate cfg or req; calling it twice on
// the same pair yields equal options as long as the body source can be
// re-read (seekable readers and bytes.Buffer are not consumed).
func BuildOptions(cfg Config, req Request) (CallOptions, error) {
	opts, err := decodeDefaults(cfg.Defaults)
	if err != nil {
		return CallOptions{}, fatalError(FatalInvalidArgument, "build", err)
	}

	// headers; names are case-insensitive so each layer is keyed lowercase
	headers := map[string]string{"content-type": ""}
	for name, value := range opts.Headers {
		headers[strings.ToLower(name)] = value
	}
	if seq := req.Headers(); seq != nil {
		for name, value := range seq {
			headers[strings.ToLower(name)] = headerValue(value)
		}
	}
	opts.Headers = headers

	// proxy
	if u := req.ProxyURI(); u != nil {
		port, err := proxyPort(u.Scheme, u.Port())
		if err != nil {
			return CallOptions{}, fatalError(FatalInvalidArgument, "build", err)
		}
		opts.Proxy = &ProxyOptions{Host: u.Hostname(), Port: port}
	}

	// tls
	if req.UseSSL() {
		switch {
		case !req.SSLVerifyPeer():
			opts.SkipVerify = true
		case req.SSLCAFile() != "":
			opts.TLS = &TLSOptions{
				PrivateKeyFile: req.SSLCAFile(),
				CertChainFile:  req.SSLCAFile(),
			}
		}
	}

	// query, body, path
	if q := req.Querystring(); q != "" {
		opts.Query = q
	}
	if path, ok := bodyPath(req.BodyStream()); ok {
		opts.File, opts.Body = path, nil
	} else {
		body, err := materialize(req.BodyStream())
		if err != nil {
			return CallOptions{}, &Error{Kind: KindOther, Op: "build", Err: fmt.Errorf("read body: %w", err)}
		}
		opts.Body, opts.File = body, ""
	}
	if p := req.Path(); p != "" {
		opts.Path = p
	}

	return opts, nil
}

// decodeDefaults decodes the handler's default request options.
func decodeDefaults(defaults map[string]any) (CallOptions, error) {
	var opts CallOptions
	if len(defaults) == 0 {
		return opts, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
		DecodeHook:       stringToBytesHook,
	})
	if err != nil {
		return opts, err
	}
	if err := dec.Decode(defaults); err != nil {
		return CallOptions{}, fmt.Errorf("decode default options: %w", err)
	}
	return opts, nil
}

// stringToBytesHook decodes a string body option as raw bytes.
func stringToBytesHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.String && to == reflect.TypeFor[[]byte]() {
		return []byte(data.(string)), nil
	}
	return data, nil
}

// headerValue coerces a header value to its wire form.
func headerValue(v any) string {
	switch t := v.(type) {
	case []string:
		return strings.Join(t, ", ")
	case fmt.Stringer:
		return t.String()
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

// proxyPort returns the explicit proxy port or the scheme default.
func proxyPort(scheme, port string) (int, error) {
	if port == "" {
		return defaultPort(strings.EqualFold(scheme, "https")), nil
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return 0, fmt.Errorf("invalid proxy port %q: %w", port, err)
	}
	return p, nil
}

// materialize reads a body source fully. Seekable readers are rewound to
// their original offset and buffers are read without being drained.
func materialize(r io.Reader) ([]byte, error) {
	switch b := r.(type) {
	case nil:
		return []byte{}, nil
	case *bytes.Buffer:
		return append([]byte{}, b.Bytes()...), nil
	case io.ReadSeeker:
		offset, err := b.Seek(0, io.SeekCurrent)
		if err != nil {
			return io.ReadAll(b)
		}
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, err
		}
		if _, err := b.Seek(offset, io.SeekStart); err != nil {
			return nil, err
		}
		return data, nil
	default:
		return io.ReadAll(r)
	}
}
