package authz

import (
	"context"
	"fmt"
	"strings"
)

// Decision is the outcome of evaluating a request. The zero value is Deny.
type Decision int

const (
	// Deny rejects the request.
	Deny Decision = iota
	// Permit lets the request through.
	Permit
)

// String returns "PERMIT" or "DENY".
func (d Decision) String() string {
	if d == Permit {
		return "PERMIT"
	}
	return "DENY"
}

// Identity is what the identity resolver knows about a request before the
// engine runs.
type Identity struct {
	// Anonymous is true when the request carried no credentials at all.
	Anonymous bool
	// Token is the bearer token of an authenticated request. It may be empty
	// when the credentials were present but unusable.
	Token string
	// Path is the normalized request path (or gRPC full method).
	Path string
}

// Result is the decision together with the user that was authenticated, if any.
type Result struct {
	Decision Decision
	User     *User
	Reason   string
}

// Permitted reports whether r.Decision is Permit.
func (r Result) Permitted() bool {
	return r.Decision == Permit
}

// DefaultManagementPath is the namespace the engine's own endpoints live under.
const DefaultManagementPath = "/casdoor-auth"

var defaultPublicPrefixes = []string{"/health", "/metrics", "/openapi", "/swagger-ui", "/q/"}

// Engine decides PERMIT or DENY for a single request. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	parser     TokenParser
	exactPaths map[string]struct{}
	prefixes   []string
	policy     *Evaluator
	logger     Logger
}

type engineConfig struct {
	managementPath string
	exactPaths     []string
	prefixes       []string
	policy         *Policy
	logger         Logger
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithManagementPath replaces the default management namespace that is
// always public. An empty path removes it from the allowlist.
func WithManagementPath(path string) Option {
	return func(c *engineConfig) {
		c.managementPath = strings.TrimSpace(path)
	}
}

// WithPublicPaths adds paths that are public on exact match.
func WithPublicPaths(paths ...string) Option {
	return func(c *engineConfig) {
		c.exactPaths = append(c.exactPaths, paths...)
	}
}

// WithPublicPathPrefixes adds path prefixes that are public.
func WithPublicPathPrefixes(prefixes ...string) Option {
	return func(c *engineConfig) {
		c.prefixes = append(c.prefixes, prefixes...)
	}
}

// WithPolicy requires authenticated users to satisfy policy.
func WithPolicy(policy Policy) Option {
	return func(c *engineConfig) {
		c.policy = &policy
	}
}

// WithLogger sets a logger for denied requests and parser failures.
func WithLogger(logger Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// NewEngine creates a decision engine backed by parser. A nil parser is
// allowed; every authenticated request is then denied.
func NewEngine(parser TokenParser, opts ...Option) *Engine {
	cfg := &engineConfig{managementPath: DefaultManagementPath}
	for _, opt := range opts {
		opt(cfg)
	}

	e := &Engine{
		parser:     parser,
		exactPaths: map[string]struct{}{"/": {}},
		logger:     cfg.logger,
	}
	for _, p := range cfg.exactPaths {
		if p = strings.TrimSpace(p); p != "" {
			e.exactPaths[p] = struct{}{}
		}
	}

	prefixes := append([]string{}, defaultPublicPrefixes...)
	if cfg.managementPath != "" {
		prefixes = append(prefixes, cfg.managementPath)
	}
	for _, p := range append(prefixes, cfg.prefixes...) {
		if p = strings.TrimSpace(p); p != "" {
			e.prefixes = append(e.prefixes, p)
		}
	}

	if cfg.policy != nil {
		if evaluator := NewEvaluator(*cfg.policy); evaluator.Enabled() {
			e.policy = evaluator
		}
	}

	return e
}

// IsPublic reports whether path is on the allowlist. The empty path is never public.
func (e *Engine) IsPublic(path string) bool {
	if path == "" {
		return false
	}
	if _, ok := e.exactPaths[path]; ok {
		return true
	}
	for _, prefix := range e.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Decide returns the decision for id.
func (e *Engine) Decide(ctx context.Context, id Identity) Decision {
	return e.Evaluate(ctx, id).Decision
}

// Evaluate runs the decision state machine for id. It never panics and never
// returns Permit on error.
func (e *Engine) Evaluate(ctx context.Context, id Identity) Result {
	if id.Anonymous {
		if e.IsPublic(id.Path) {
			return Result{Decision: Permit, Reason: "public path"}
		}
		return e.deny(id, "anonymous request to protected path")
	}

	if id.Token == "" {
		return e.deny(id, "missing bearer token")
	}
	if e.parser == nil {
		return e.deny(id, "no token parser configured")
	}

	user, err := e.parse(ctx, id.Token)
	if err != nil {
		return e.deny(id, err.Error())
	}
	if user == nil || user.Name == "" {
		return e.deny(id, "token user has no name")
	}

	if e.policy != nil {
		if err := e.policy.Authorize(user); err != nil {
			return e.deny(id, err.Error())
		}
	}

	return Result{Decision: Permit, User: user, Reason: "authenticated"}
}

func (e *Engine) parse(ctx context.Context, token string) (user *User, err error) {
	defer func() {
		if r := recover(); r != nil {
			user = nil
			err = fmt.Errorf("authz: token parser panicked: %v", r)
		}
	}()

	return e.parser.ParseJWTToken(ctx, token)
}

func (e *Engine) deny(id Identity, reason string) Result {
	if e.logger != nil {
		e.logger.Printf("authz: denied %q: %s", id.Path, reason)
	}
	return Result{Decision: Deny, Reason: reason}
}
