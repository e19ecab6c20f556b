package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	sessiondomain "storefront/sessioncore/internal/session/domain"
)

const destinationQuery = "data.storefront.routing.destination"

// Default Rego policy, equivalent to FallbackDestination.
const defaultRegoPolicy = `package storefront.routing

default destination := "/onboarding"

destination := "/pending-approval" if {
	input.state == "pending_approval"
}

destination := "/merchant/home" if {
	input.state == "authenticated"
	input.role == "merchant"
}

destination := "/store/dashboard" if {
	input.state == "authenticated"
	input.role == "store_owner"
}

destination := "/admin/console" if {
	input.state == "authenticated"
	input.role == "admin"
}
`

// OPAEvaluator routes verdicts with a compiled Rego policy.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles policy, or the default routing policy when policy is empty.
func NewOPAEvaluator(ctx context.Context, policy string) (*OPAEvaluator, error) {
	if strings.TrimSpace(policy) == "" {
		policy = defaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"routing.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile routing policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(destinationQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare routing policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// NewOPAEvaluatorFromFile compiles the policy at path. An empty path uses the default policy.
func NewOPAEvaluatorFromFile(ctx context.Context, path string) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx, "")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing policy: %w", err)
	}
	return NewOPAEvaluator(ctx, string(b))
}

// Destination evaluates the policy for verdict. If evaluation fails or yields something other
// than an absolute path, the built-in table is used.
func (e *OPAEvaluator) Destination(ctx context.Context, verdict sessiondomain.Verdict) (string, error) {
	input := map[string]interface{}{
		"state": verdict.State.String(),
		"role":  string(verdict.Role),
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		log.Printf("policy: routing evaluation failed: %v, using defaults", err)
		return FallbackDestination(verdict), nil
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		log.Printf("policy: routing policy returned no destination for %s, using defaults", verdict)
		return FallbackDestination(verdict), nil
	}
	dest, ok := rs[0].Expressions[0].Value.(string)
	if !ok || !strings.HasPrefix(dest, "/") {
		log.Printf("policy: routing policy returned %v for %s, using defaults", rs[0].Expressions[0].Value, verdict)
		return FallbackDestination(verdict), nil
	}
	return dest, nil
}

// HealthCheck verifies the compiled policy evaluates for the fail-closed verdict.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{"state": "unauthenticated", "role": ""}))
	if err != nil {
		return fmt.Errorf("eval routing policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("routing policy query returned no result")
	}
	return nil
}
