package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSFiles names the PEM files for a TLS client connection.
type TLSFiles struct {
	Cert       string
	Key        string
	CACert     string
	ServerName string
	// InsecureSkipVerify disables server certificate checks. Control-plane
	// installs commonly run with self-signed certificates.
	InsecureSkipVerify bool
}

// IsZero reports whether nothing is configured.
func (f TLSFiles) IsZero() bool {
	return f == TLSFiles{}
}

// ClientConfig builds a *tls.Config from the files. Returns nil, nil when
// nothing is configured (plaintext or system defaults).
func (f TLSFiles) ClientConfig() (*tls.Config, error) {
	if f.IsZero() {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		ServerName:         f.ServerName,
		InsecureSkipVerify: f.InsecureSkipVerify,
	}

	if f.Cert != "" || f.Key != "" {
		cert, err := tls.LoadX509KeyPair(f.Cert, f.Key)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if f.CACert != "" {
		caPEM, err := os.ReadFile(f.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA cert %s", f.CACert)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}
