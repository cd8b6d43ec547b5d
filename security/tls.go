package security

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// TLSConfig holds the TLS material for one outbound connection.
type TLSConfig struct {
	// SkipVerify disables server certificate verification.
	SkipVerify bool `yaml:"skip_verify" mapstructure:"skip_verify"`

	// CAFile is a PEM bundle of trust roots for verifying the server.
	CAFile string `yaml:"ca_file" mapstructure:"ca_file"`

	// CertChainFile is a PEM certificate chain. It is presented as a client
	// certificate when PrivateKeyFile holds a matching key, otherwise its
	// certificates are added to the trust roots.
	CertChainFile string `yaml:"cert_chain_file" mapstructure:"cert_chain_file"`

	// PrivateKeyFile is the PEM private key for CertChainFile. It may be the
	// same file as CertChainFile.
	PrivateKeyFile string `yaml:"private_key_file" mapstructure:"private_key_file"`

	// ServerName overrides the server name used for certificate verification.
	ServerName string `yaml:"server_name" mapstructure:"server_name"`

	// MinVersion is the minimum TLS version. Defaults to TLS 1.2.
	MinVersion uint16 `yaml:"min_version" mapstructure:"min_version"`
}

// Build creates a *tls.Config from the configuration.
// Returns nil if nothing is configured.
func (c *TLSConfig) Build() (*tls.Config, error) {
	if !c.IsEnabled() {
		return nil, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	minVersion := c.MinVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}

	cfg := &tls.Config{
		InsecureSkipVerify: c.SkipVerify, //nolint:gosec // opt-in per request
		ServerName:         c.ServerName,
		MinVersion:         minVersion,
	}

	if c.CAFile != "" {
		data, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("security/tls: read CA file: %w", err)
		}
		if err := addRoots(cfg, data); err != nil {
			return nil, err
		}
	}

	if err := c.loadChain(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is consistent.
func (c *TLSConfig) Validate() error {
	if c == nil {
		return nil
	}
	if c.PrivateKeyFile != "" && c.CertChainFile == "" {
		return fmt.Errorf("security/tls: private_key_file requires cert_chain_file")
	}
	return nil
}

// IsEnabled returns true if any TLS setting is configured.
func (c *TLSConfig) IsEnabled() bool {
	if c == nil {
		return false
	}
	return c.SkipVerify || c.CAFile != "" || c.CertChainFile != "" ||
		c.PrivateKeyFile != "" || c.ServerName != "" || c.MinVersion != 0
}

// Key identifies the configuration. Two configs with the same key build
// equivalent *tls.Config values.
func (c *TLSConfig) Key() string {
	if !c.IsEnabled() {
		return ""
	}
	return strings.Join([]string{
		strconv.FormatBool(c.SkipVerify),
		c.CAFile,
		c.CertChainFile,
		c.PrivateKeyFile,
		c.ServerName,
		strconv.FormatUint(uint64(c.MinVersion), 10),
	}, "|")
}

// loadChain installs CertChainFile either as the client certificate or as
// extra trust roots.
func (c *TLSConfig) loadChain(cfg *tls.Config) error {
	if c.CertChainFile == "" {
		return nil
	}
	chain, err := os.ReadFile(c.CertChainFile)
	if err != nil {
		return fmt.Errorf("security/tls: read cert chain file: %w", err)
	}

	key := chain
	if c.PrivateKeyFile != "" && c.PrivateKeyFile != c.CertChainFile {
		if key, err = os.ReadFile(c.PrivateKeyFile); err != nil {
			return fmt.Errorf("security/tls: read private key file: %w", err)
		}
	}

	if !hasPrivateKey(key) {
		return addRoots(cfg, chain)
	}

	cert, err := tls.X509KeyPair(chain, key)
	if err != nil {
		return fmt.Errorf("security/tls: load client certificate: %w", err)
	}
	cfg.Certificates = []tls.Certificate{cert}
	return nil
}

func addRoots(cfg *tls.Config, data []byte) error {
	if cfg.RootCAs == nil {
		cfg.RootCAs = x509.NewCertPool()
	}
	if !cfg.RootCAs.AppendCertsFromPEM(data) {
		return fmt.Errorf("security/tls: failed to parse CA certificate")
	}
	return nil
}

func hasPrivateKey(data []byte) bool {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return false
		}
		if block.Type == "PRIVATE KEY" || strings.HasSuffix(block.Type, " PRIVATE KEY") {
			return true
		}
	}
}
