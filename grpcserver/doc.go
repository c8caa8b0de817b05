// Package grpcserver puts the Casdoor authorization engine in front of gRPC services.
//
// The interceptors resolve the identity of each call from the "authorization"
// metadata entry and use the full method name as the path. Calls without
// that entry are anonymous and only pass for public methods; denied calls
// fail with codes.Unauthenticated.
//
// # Quick Start
//
//	engine := authz.NewEngine(parser,
//	    authz.WithPublicPaths("/grpc.health.v1.Health/Check"),
//	)
//
//	server := grpc.NewServer(
//	    grpc.UnaryInterceptor(grpcserver.UnaryServerInterceptor(engine)),
//	    grpc.StreamInterceptor(grpcserver.StreamServerInterceptor(engine)),
//	)
//
// Handlers read the authenticated user with UserFromContext.
package grpcserver
