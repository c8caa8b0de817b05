// Package casdoorclient authenticates outbound calls as a Casdoor application.
//
// A TokenManager obtains access tokens from the Casdoor token endpoint with
// the client credentials grant and caches them until shortly before expiry.
// Transport adds the token to HTTP requests; the client interceptors add it
// to gRPC metadata.
//
//	resolver, err := config.NewResolver(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tm, err := casdoorclient.NewTokenManager(resolver)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := casdoorclient.NewHTTPClient(tm, nil)
//
//	conn, err := grpc.NewClient("orders:9090", tm.DialOptions()...)
package casdoorclient
