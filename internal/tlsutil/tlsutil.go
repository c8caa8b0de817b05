// Package tlsutil loads server TLS material for the HTTP and gRPC front ends.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ServerConfig holds the TLS settings of a listening server.
type ServerConfig struct {
	// CertFile is the path to the server certificate (PEM).
	CertFile string

	// KeyFile is the path to the server private key (PEM).
	KeyFile string

	// CAFile is the path to a CA bundle used to verify client certificates.
	// Empty disables client verification.
	CAFile string

	// ClientAuth is the client certificate policy, e.g. tls.RequireAndVerifyClientCert for mTLS.
	ClientAuth tls.ClientAuthType

	// MinVersion defaults to TLS 1.2.
	MinVersion uint16
}

// NewServerTLS builds a *tls.Config from cfg. The certificate is validated
// once up front. When reload is true it is read again from disk on every
// handshake so rotated files are picked up without a restart; otherwise the
// initially loaded pair is served.
func NewServerTLS(prefix string, cfg *ServerConfig, reload bool) (*tls.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%s: TLS config is nil", prefix)
	}
	if cfg.CertFile == "" {
		return nil, fmt.Errorf("%s: server certificate file is required", prefix)
	}
	if cfg.KeyFile == "" {
		return nil, fmt.Errorf("%s: server key file is required", prefix)
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ClientAuth: cfg.ClientAuth,
	}
	if cfg.MinVersion > 0 {
		tlsConfig.MinVersion = cfg.MinVersion
	}

	cert, err := LoadKeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%s: load server certificate: %w", prefix, err)
	}

	if reload {
		certFile, keyFile := cfg.CertFile, cfg.KeyFile
		tlsConfig.GetCertificate = func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			cert, err := LoadKeyPair(certFile, keyFile)
			if err != nil {
				return nil, err
			}
			return &cert, nil
		}
	} else {
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" {
		pool, err := LoadCAPool(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("%s: load CA certificate: %w", prefix, err)
		}
		tlsConfig.ClientCAs = pool
	}

	return tlsConfig, nil
}

// LoadKeyPair reads and parses a PEM certificate and key.
func LoadKeyPair(certFile, keyFile string) (tls.Certificate, error) {
	certPEM, err := ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read certificate file: %w", err)
	}

	keyPEM, err := ReadFile(keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read key file: %w", err)
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parse certificate: %w", err)
	}

	return cert, nil
}

// LoadCAPool reads a PEM bundle into a certificate pool.
func LoadCAPool(caFile string) (*x509.CertPool, error) {
	caCert, err := ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA certificate")
	}

	return pool, nil
}

// ReadFile reads path through os.OpenInRoot of its directory, so the final
// element cannot escape via symlinks.
func ReadFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("empty TLS file path")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("resolve TLS path %q: %w", path, err)
	}

	f, err := os.OpenInRoot(filepath.Dir(abs), filepath.Base(abs))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}
