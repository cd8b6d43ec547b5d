// Package pool keeps bounded sets of reusable connections keyed by origin.
//
// A Manager lazily creates one Pool per origin (scheme://host:port) the first
// time that origin is acquired. Each pool enforces a maximum number of
// concurrently checked-out connections. When the limit is reached, Acquire
// either waits for a release (bounded by Config.Timeout) or, with
// Config.NeverBlock, fails immediately with ErrExhausted.
//
// A Size of 0 disables pooling: every Acquire builds a fresh connection and
// Release closes it.
//
//	m := pool.NewManager(pool.Config{Size: 5, Timeout: 10 * time.Second}, dial)
//	conn, err := m.Acquire(ctx, "https://example.com:443")
//	if err != nil {
//	    return err
//	}
//	defer m.Release("https://example.com:443", conn)
package pool
