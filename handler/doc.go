// Package handler executes abstract HTTP requests over pooled connections.
//
// A Handler turns a Request into CallOptions, checks a connection out of
// the per-origin pool, dispatches the call and writes the outcome to a
// Response. Every execution ends in exactly one of two states: the
// response carries status, headers and body, or it carries a network
// error. Network errors (timeouts, pool exhaustion, pool timeouts and any
// unclassified transport failure) never escape Handle. Fatal errors
// (unsupported verbs, invalid arguments, internal defects) are returned
// from Handle and leave the response untouched.
//
//	h, err := handler.New(handler.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer h.Shutdown(ctx)
//
//	req, _ := handler.NewRequest(http.MethodGet, "https://example.com/items?page=2")
//	resp := handler.NewResponse()
//	if err := h.Handle(ctx, req, resp); err != nil {
//	    return err // fatal
//	}
//	if err := resp.NetworkError(); err != nil {
//	    // recoverable, e.g. handler.IsTimeout(err)
//	}
//
// Async mode (HandleAsync, or "async: true" in the default options)
// returns before the call completes when a running Scheduler is supplied
// with WithScheduler; the response is populated later and Response.Done
// is closed when it is.
package handler
