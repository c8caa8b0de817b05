// Package authz decides whether a request may proceed.
//
// An Engine evaluates one Identity per request:
//
//	anonymous     -> PERMIT on a public path, otherwise DENY
//	authenticated -> DENY without a token
//	              -> DENY unless the TokenParser returns a user with a name
//	              -> DENY if a configured Policy is not satisfied
//	              -> PERMIT
//
// Public paths are "/" and everything under /health, /metrics, /openapi,
// /swagger-ui, /q/ and the management namespace (/casdoor-auth by default).
// Parser errors and panics are converted to DENY, so the engine fails closed.
//
// Typical setup:
//
//	resolver, err := config.NewResolver(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	parser, err := authz.NewParserBuilder(resolver).Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer authz.CloseParser(parser)
//
//	engine := authz.NewEngine(parser,
//		authz.WithPolicy(authz.Policy{RequiredRoles: []string{"admin"}}),
//	)
//
// The engine is transport agnostic; see the httpserver and grpcserver
// packages for identity resolvers that feed it.
package authz
