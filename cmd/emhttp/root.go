package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eranb/em-aws/component"
	"github.com/eranb/em-aws/config"
	"github.com/eranb/em-aws/handler"
	"github.com/eranb/em-aws/logger"
	"github.com/eranb/em-aws/observability"
	"github.com/eranb/em-aws/version"
)

const serviceName = "emhttp"

// Exit codes.
const (
	exitOK           = 0
	exitNetworkError = 1
	exitFatal        = 2
)

type options struct {
	method     string
	headers    []string
	data       string
	dataFile   string
	proxy      string
	caCert     string
	insecure   bool
	timeout    time.Duration
	configFile string
}

// exitError carries a process exit code out of cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func newRootCmd(stdout io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   serviceName + " [flags] URL",
		Short: "Execute one HTTP request through a pooled connection handler",
		Long: `emhttp sends a single request and prints the status line, the response
headers and the body. Handler options are read from emhttp.yml, config.yml or
EMHTTP_* environment variables, e.g. EMHTTP_HANDLER_POOL_SIZE=10.

Exit status is 1 when the request failed with a network error and 2 when it
could not be executed at all.`,
		Version:       version.GetFullVersion(),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args[0], stdout)
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	f := cmd.Flags()
	f.StringVarP(&opts.method, "method", "X", http.MethodGet, "HTTP method")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, `request header "name: value" (repeatable)`)
	f.StringVarP(&opts.data, "data", "d", "", "request body")
	f.StringVar(&opts.dataFile, "data-file", "", "send the body from this file")
	f.StringVar(&opts.proxy, "proxy", "", "proxy URI, e.g. http://proxy:3128")
	f.StringVar(&opts.caCert, "cacert", "", "PEM bundle used to verify the server")
	f.BoolVarP(&opts.insecure, "insecure", "k", false, "skip server certificate verification")
	f.DurationVar(&opts.timeout, "timeout", 0, "read inactivity timeout (0 uses the configured default)")
	f.StringVarP(&opts.configFile, "config", "c", "", "config file (default: searched)")
	cmd.MarkFlagsMutuallyExclusive("data", "data-file")
	return cmd
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout)
	if args == nil {
		args = []string{} // cobra falls back to os.Args on nil
	}
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(stderr, "emhttp:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFatal
}

func run(ctx context.Context, opts options, rawURL string, stdout io.Writer) error {
	var svc config.ServiceConfig
	var loadOpts []config.LoaderOption
	if opts.configFile != "" {
		loadOpts = append(loadOpts, config.WithConfigFile(opts.configFile))
	}
	if err := config.LoadConfig(serviceName, &svc, loadOpts...); err != nil {
		return err
	}
	svc.ApplyDefaults()
	if err := svc.Validate(); err != nil {
		return err
	}

	logger.Init(svc.Logging)
	log := logger.WithComponent("cli")

	shutdown, err := observability.Init(ctx, svc.Observability, svc.Name, version.GetShortVersion(), svc.Environment)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn("observability shutdown failed", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	hcfg, err := handler.ParseOptions(svc.Handler)
	if err != nil {
		return err
	}
	metrics, err := observability.NewMetrics(observability.Meter(observability.TracerName))
	if err != nil {
		return err
	}

	comp := handler.NewComponent("http-handler", hcfg, handler.WithMetrics(metrics))
	registry := component.NewRegistry()
	if err := registry.Register(comp); err != nil {
		return err
	}
	if err := registry.StartAll(ctx); err != nil {
		return err
	}
	defer func() {
		if err := registry.StopAll(context.WithoutCancel(ctx)); err != nil {
			log.Warn("stopping components failed", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	req, err := buildRequest(opts, rawURL)
	if err != nil {
		return err
	}

	resp := handler.NewResponse()
	if err := comp.Handler().Handle(ctx, req, resp); err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	if err := resp.NetworkError(); err != nil {
		return &exitError{code: exitNetworkError, err: err}
	}
	return printResponse(stdout, resp)
}

func buildRequest(opts options, rawURL string) (*handler.BasicRequest, error) {
	req, err := handler.NewRequest(opts.method, rawURL)
	if err != nil {
		return nil, err
	}
	for _, h := range opts.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, want \"name: value\"", h)
		}
		req.Header[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	switch {
	case opts.dataFile != "":
		req.Body = handler.FileBody(opts.dataFile)
	case opts.data != "":
		req.Body = strings.NewReader(opts.data)
	}
	if opts.proxy != "" {
		if req.Proxy, err = url.Parse(opts.proxy); err != nil {
			return nil, fmt.Errorf("invalid proxy: %w", err)
		}
	}
	req.CAFile = opts.caCert
	req.VerifyPeer = !opts.insecure
	req.Timeout = opts.timeout
	return req, nil
}

// printResponse writes the status line, the headers under their original
// names and the body.
func printResponse(w io.Writer, resp *handler.Response) error {
	headers := resp.Headers()
	original := make(map[string]bool, len(headers))
	for name := range headers {
		if lower := strings.ToLower(name); lower != name {
			original[lower] = true
		}
	}
	names := make([]string, 0, len(headers))
	for name := range headers {
		if name == strings.ToLower(name) && original[name] {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)

	if _, err := fmt.Fprintf(w, "HTTP %d %s\n", resp.Status(), http.StatusText(resp.Status())); err != nil {
		return err
	}
	for _, name := range names {
		for _, v := range headers[name] {
			fmt.Fprintf(w, "%s: %s\n", name, v)
		}
	}
	fmt.Fprintln(w)
	_, err := w.Write(resp.Body())
	return err
}
