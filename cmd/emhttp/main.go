// Command emhttp executes one HTTP request through the pooled handler.
//
//	emhttp -X POST -H 'content-type: application/json' -d '{"a":1}' https://example.com/items
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
