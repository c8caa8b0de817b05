package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AmmannChristian/go-casdoorauth/authz"
	"github.com/AmmannChristian/go-casdoorauth/casdoorclient"
	"github.com/AmmannChristian/go-casdoorauth/httpserver"
	"github.com/AmmannChristian/go-casdoorauth/oidcconfig"
)

type globalOptions struct {
	configFile string
	logLevel   string
	environ    []string
}

// newRootCmd builds the command tree. environ is the process environment
// used for the EnvSource.
func newRootCmd(environ []string) *cobra.Command {
	global := &globalOptions{environ: environ}

	root := &cobra.Command{
		Use:   "casdoor-authd",
		Short: "Casdoor authorization proxy",
		Long: `casdoor-authd validates Casdoor tokens in front of an upstream service.

Settings are read from casdoor.* keys in an optional YAML file and from
CASDOOR_* environment variables, which take precedence over the file.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "casdoor-authd version %s\n" .Version}}`)

	root.PersistentFlags().StringVarP(&global.configFile, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&global.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(global))
	root.AddCommand(newTokenCmd(global))

	return root
}

func newServeCmd(global *globalOptions) *cobra.Command {
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authorization proxy",
		Long: `Run the authorization proxy.

Requests without an Authorization header pass only for public paths:
"/", /health, /metrics, /openapi, /swagger-ui, /q/ and the management path.
Requests with a bearer token pass when the token belongs to a Casdoor user.

Examples:
  casdoor-authd serve --upstream http://127.0.0.1:9000
  casdoor-authd serve -c casdoor.yaml --upstream http://orders:9000 --require-role admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), global, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.listen, "listen", ":8080", "Address to listen on")
	flags.StringVar(&opts.upstream, "upstream", "", "Upstream URL to proxy authorized requests to")
	flags.StringVar(&opts.parser, "parser", parserAuto, "Token parser (auto, jwks, introspection, oidc)")
	flags.StringVar(&opts.managementPath, "management-path", authz.DefaultManagementPath, "Public management namespace")
	flags.StringSliceVar(&opts.publicPaths, "public-prefix", nil, "Additional public path prefixes")
	flags.StringSliceVar(&opts.requiredRoles, "require-role", nil, "Casdoor roles required on every authenticated request")
	flags.StringSliceVar(&opts.requiredPerms, "require-permission", nil, "Casdoor permissions required on every authenticated request")
	flags.BoolVar(&opts.allowAdmin, "allow-admin", false, "Let Casdoor admins bypass role and permission checks")
	flags.BoolVar(&opts.login, "login", false, "Serve the OIDC login flow under the management path")
	flags.StringVar(&opts.tlsCertFile, "tls-cert", "", "TLS certificate file")
	flags.StringVar(&opts.tlsKeyFile, "tls-key", "", "TLS private key file")
	flags.StringVar(&opts.tlsCAFile, "tls-client-ca", "", "CA file for verifying client certificates")
	flags.DurationVar(&opts.shutdownGrace, "shutdown-grace", 10*time.Second, "Time allowed for in-flight requests on shutdown")

	return cmd
}

func newTokenCmd(global *globalOptions) *cobra.Command {
	var scopes []string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an access token for the configured application",
		Long: `Fetch an access token with the client credentials grant and print it.

Example:
  curl -H "Authorization: Bearer $(casdoor-authd token)" http://localhost:8080/api/orders`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, global, scopes)
		},
	}

	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Scopes to request")

	return cmd
}

func runServe(ctx context.Context, global *globalOptions, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := newLogger(global.logLevel, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	plog := newPrintfLogger(logger)

	upstream, err := parseUpstream(opts.upstream)
	if err != nil {
		return err
	}

	stack, err := loadStack(global.configFile, global.environ)
	if err != nil {
		return err
	}
	resolver, err := loadResolver(stack, plog)
	if err != nil {
		return err
	}

	parser, closeParser, err := buildParser(ctx, opts.parser, stack, resolver, plog)
	if err != nil {
		return err
	}
	defer closeParser()

	var login *oidcconfig.Provider
	if opts.login {
		login, err = oidcconfig.NewProviderFromLookup(ctx, stack, oidcconfig.WithProviderLogger(plog))
		if err != nil {
			return err
		}
	}

	engine := newEngine(parser, opts, plog)
	server := &http.Server{
		Addr:              opts.listen,
		Handler:           newHandler(engine, upstream, login, opts.managementPath, plog),
		ReadHeaderTimeout: 10 * time.Second,
	}

	useTLS := opts.tlsCertFile != "" || opts.tlsKeyFile != ""
	if useTLS {
		tlsCfg := &httpserver.TLSConfig{
			CertFile: opts.tlsCertFile,
			KeyFile:  opts.tlsKeyFile,
			CAFile:   opts.tlsCAFile,
		}
		if opts.tlsCAFile != "" {
			tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
		}
		if err := httpserver.ConfigureServer(server, tlsCfg, true); err != nil {
			return err
		}
	}

	listener, err := net.Listen("tcp", opts.listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", opts.listen, err)
	}

	cfg := resolver.Config()
	logger.Info("casdoor-authd started",
		zap.String("listen", listener.Addr().String()),
		zap.String("upstream", upstream.String()),
		zap.String("endpoint", cfg.Endpoint),
		zap.String("organization", cfg.OrganizationName),
		zap.String("parser", opts.parser),
		zap.Bool("tls", useTLS),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if useTLS {
			errCh <- server.ServeTLS(listener, "", "")
			return
		}
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("grace", opts.shutdownGrace))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownGrace)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func runToken(cmd *cobra.Command, global *globalOptions, scopes []string) error {
	logger, err := newLogger(global.logLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	plog := newPrintfLogger(logger)

	stack, err := loadStack(global.configFile, global.environ)
	if err != nil {
		return err
	}
	resolver, err := loadResolver(stack, plog)
	if err != nil {
		return err
	}

	opts := []casdoorclient.Option{casdoorclient.WithLogger(plog)}
	if len(scopes) > 0 {
		opts = append(opts, casdoorclient.WithScopes(scopes...))
	}

	tm, err := casdoorclient.NewTokenManager(resolver, opts...)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	token, err := tm.Token(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(token))
	return err
}
