// Package testutil provides test helpers for go-casdoorauth packages.
//
// It includes utilities to spin up IPv4-only local HTTP servers (avoiding IPv6 in sandboxes),
// generate RSA key pairs wrapped in self-signed certificates the way Casdoor publishes them,
// and sign Casdoor-shaped user tokens.
//
// # Utilities
//
//   - NewLocalHTTPServer: start httptest server bound to 127.0.0.1, closed on cleanup
//   - RoundTripFunc and StaticJSONResponse: stub HTTP endpoints without sockets
//   - GenerateKeyPair / NewJWKSServer: signing material and a matching JWKS endpoint
//   - NewUserClaims: builder for signed Casdoor user tokens
//   - WriteTestCertAndKey: temporary server certificate for TLS tests
package testutil
