package grpcserver

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/AmmannChristian/go-casdoorauth/internal/tlsutil"
)

// TLSConfig holds TLS configuration for the gRPC server.
type TLSConfig = tlsutil.ServerConfig

// NewServerCredentials creates gRPC transport credentials from cfg.
//
// The key pair is validated at startup and then read from disk again on
// every handshake, so certificates rotated by tools like cert-manager are
// served without restarting the server.
//
// Example:
//
//	creds, err := grpcserver.NewServerCredentials(&grpcserver.TLSConfig{
//	    CertFile:   "/path/to/server.crt",
//	    KeyFile:    "/path/to/server.key",
//	    CAFile:     "/path/to/ca.crt",
//	    ClientAuth: tls.RequireAndVerifyClientCert,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	server := grpc.NewServer(grpc.Creds(creds))
func NewServerCredentials(cfg *TLSConfig) (credentials.TransportCredentials, error) {
	tlsConfig, err := tlsutil.NewServerTLS("grpcserver", cfg, true)
	if err != nil {
		return nil, err
	}
	return credentials.NewTLS(tlsConfig), nil
}

// ServerOption wraps NewServerCredentials as a grpc.ServerOption.
func ServerOption(cfg *TLSConfig) (grpc.ServerOption, error) {
	creds, err := NewServerCredentials(cfg)
	if err != nil {
		return nil, err
	}
	return grpc.Creds(creds), nil
}
