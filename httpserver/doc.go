// Package httpserver puts the Casdoor authorization engine in front of an http.Handler.
//
// The middleware acts as the identity resolver for the authz.Engine: a
// request without an Authorization header is anonymous, any other request is
// authenticated with the bearer token it carries (empty when the header is
// not a Bearer credential). The request path is cleaned before matching, so
// "/health/../api" is not treated as a health check.
//
// # Quick Start
//
//	resolver, err := config.NewResolver(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	parser, err := authz.NewParserBuilder(resolver).Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/api/orders", ordersHandler)
//
//	handler := httpserver.Middleware(authz.NewEngine(parser))(mux)
//	http.ListenAndServe(":8080", handler)
//
// # Accessing the User in Handlers
//
//	func ordersHandler(w http.ResponseWriter, r *http.Request) {
//	    user := httpserver.MustUserFromContext(r.Context())
//	    fmt.Fprintf(w, "orders of %s/%s", user.Owner, user.Name)
//	}
//
// Anonymous requests that were let through because their path is public
// carry no user; use UserFromContext there.
//
// # Error Handling
//
// Denied requests get HTTP 401 by default. WithUnauthorizedHandler replaces
// the response; the error passed to it matches ErrUnauthorized and is a
// *DeniedError naming the path and reason.
//
// # TLS
//
// NewTLSConfig and ConfigureServer build server TLS settings, optionally
// reloading the key pair on each handshake so rotated certificates are
// served without a restart.
package httpserver
