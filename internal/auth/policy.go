package auth

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gate/internal/observability"
)

// Outcome is the terminal decision of the policy for one request.
type Outcome int

const (
	OutcomeProceed Outcome = iota
	OutcomeRejectUnauthenticated
	OutcomeRejectForbidden
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProceed:
		return "proceed"
	case OutcomeRejectUnauthenticated:
		return "reject_unauthenticated"
	case OutcomeRejectForbidden:
		return "reject_forbidden"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Rule maps an Ant-style path pattern to a requirement. "*" matches within one
// path segment, "**" across segments, and a trailing "/**" also matches the bare
// prefix. Methods restricts the rule to those HTTP methods; empty means all.
type Rule struct {
	Pattern     string
	Methods     []string
	Requirement Requirement
}

type compiledRule struct {
	rule    Rule
	matcher glob.Glob
	// folded matches lowercased paths for case-insensitive routers.
	folded  glob.Glob
	methods map[string]struct{}
}

// Policy is an ordered rule list; the first matching rule wins and unmatched
// requests must be authenticated.
type Policy struct {
	rules   []compiledRule
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewPolicy compiles rules in order.
func NewPolicy(rules []Rule, logger *zap.Logger, metrics *observability.Metrics) (*Policy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Policy{logger: logger, metrics: metrics}
	for i, rule := range rules {
		if !strings.HasPrefix(rule.Pattern, "/") {
			return nil, fmt.Errorf("rule %d: pattern %q must start with /", i, rule.Pattern)
		}
		pattern := rule.Pattern
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			pattern = "{" + prefix + "," + prefix + "/**}"
			if prefix == "" {
				pattern = "{/,/**}"
			}
		}
		matcher, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("rule %d: compile %q: %w", i, rule.Pattern, err)
		}
		folded, err := glob.Compile(strings.ToLower(pattern), '/')
		if err != nil {
			return nil, fmt.Errorf("rule %d: compile %q: %w", i, rule.Pattern, err)
		}
		compiled := compiledRule{rule: rule, matcher: matcher, folded: folded}
		if len(rule.Methods) > 0 {
			compiled.methods = make(map[string]struct{}, len(rule.Methods))
			for _, m := range rule.Methods {
				compiled.methods[strings.ToUpper(m)] = struct{}{}
			}
		}
		p.rules = append(p.rules, compiled)
	}
	return p, nil
}

// Evaluate decides whether a request for method and path may proceed. auth is nil
// for unauthenticated callers. The path is matched exactly as given.
func (p *Policy) Evaluate(method, path string, auth *Authentication) Outcome {
	return p.requirementFor(method, path, true).decide(auth)
}

func (p *Policy) requirementFor(method, path string, caseSensitive bool) Requirement {
	method = strings.ToUpper(method)
	for _, r := range p.rules {
		if r.methods != nil {
			if _, ok := r.methods[method]; !ok {
				continue
			}
		}
		matcher := r.matcher
		if !caseSensitive {
			matcher = r.folded
		}
		if matcher.Match(path) {
			return r.rule.Requirement
		}
	}
	return Authenticated()
}

// routingPath normalizes path the way the router does before picking a route,
// so a rule always sees the path of the handler that will run.
func routingPath(path string, cfg fiber.Config) string {
	if !cfg.CaseSensitive {
		path = strings.ToLower(path)
	}
	if !cfg.StrictRouting && len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

// Handle is the pipeline stage that enforces the policy. It must run after the
// authenticator; a request it sees without a recorded authentication is treated
// as unauthenticated.
func (p *Policy) Handle(c *fiber.Ctx) error {
	path := c.Path()
	cfg := c.App().Config()
	outcome := p.requirementFor(c.Method(), routingPath(path, cfg), cfg.CaseSensitive).decide(AuthenticationFrom(c))
	p.metrics.RecordDecision(outcome.String())

	if outcome == OutcomeProceed {
		return c.Next()
	}

	p.logger.Debug("request rejected by policy",
		zap.String("request_id", observability.RequestID(c)),
		zap.String("method", c.Method()),
		zap.String("path", path),
		zap.Stringer("outcome", outcome))
	if outcome == OutcomeRejectUnauthenticated {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	}
	return Reject(path, outcome)
}
