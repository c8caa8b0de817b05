package httpserver

import (
	"crypto/tls"
	"errors"
	"net/http"

	"github.com/AmmannChristian/go-casdoorauth/internal/tlsutil"
)

// TLSConfig holds TLS configuration for the HTTP server.
type TLSConfig = tlsutil.ServerConfig

// NewTLSConfig creates a *tls.Config for an http.Server. The certificate is
// loaded once; set reload via ConfigureServer to pick up rotated files.
//
// Example:
//
//	tlsCfg, err := httpserver.NewTLSConfig(&httpserver.TLSConfig{
//	    CertFile: "/etc/casdoor-authd/tls.crt",
//	    KeyFile:  "/etc/casdoor-authd/tls.key",
//	})
func NewTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	return tlsutil.NewServerTLS("httpserver", cfg, false)
}

// ConfigureServer sets server.TLSConfig from cfg. With reload, the key pair
// is read from disk on every handshake.
func ConfigureServer(server *http.Server, cfg *TLSConfig, reload bool) error {
	if server == nil {
		return errors.New("httpserver: server is nil")
	}

	tlsConfig, err := tlsutil.NewServerTLS("httpserver", cfg, reload)
	if err != nil {
		return err
	}

	server.TLSConfig = tlsConfig
	return nil
}
