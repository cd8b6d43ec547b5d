// Package security turns TLS file material into a *tls.Config.
//
// The handler derives TLS settings per request: a CA bundle for verifying
// the server, and optionally a client certificate chain with its private
// key. A chain file that carries no private key is treated as additional
// trust roots, which lets a single "CA file" setting serve both roles.
//
//	cfg := security.TLSConfig{
//	    CertChainFile:  "/etc/ssl/ca-bundle.pem",
//	    PrivateKeyFile: "/etc/ssl/ca-bundle.pem",
//	}
//	tlsConfig, err := cfg.Build()
package security
