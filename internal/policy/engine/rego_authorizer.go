package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/open-policy-agent/opa/v1/rego"
)

// AccessQuery is the Rego rule consulted for authenticated requests.
const AccessQuery = "data.edu.access.allow"

// DefaultAccessModule allows every authenticated request.
const DefaultAccessModule = `package edu.access

default allow := true
`

// ErrNoDecision is returned when the module does not define a boolean allow.
var ErrNoDecision = errors.New("policy: rego query returned no boolean decision")

// RegoAuthorizer evaluates an operator-supplied Rego module. The query is
// prepared once; Authorize only evaluates it.
type RegoAuthorizer struct {
	query rego.PreparedEvalQuery
}

// NewRegoAuthorizer compiles module and prepares AccessQuery. Compile errors
// are returned so they surface at startup.
func NewRegoAuthorizer(ctx context.Context, module string) (*RegoAuthorizer, error) {
	q, err := rego.New(
		rego.Query(AccessQuery),
		rego.Module("access.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: prepare rego: %w", err)
	}
	return &RegoAuthorizer{query: q}, nil
}

// LoadRegoAuthorizer reads the module at path. An empty path uses DefaultAccessModule.
func LoadRegoAuthorizer(ctx context.Context, path string) (*RegoAuthorizer, error) {
	if path == "" {
		return NewRegoAuthorizer(ctx, DefaultAccessModule)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	return NewRegoAuthorizer(ctx, string(src))
}

// Authorize evaluates AccessQuery with input {method, path, principal:{user_id, username}}.
func (a *RegoAuthorizer) Authorize(ctx context.Context, req AccessRequest) (bool, error) {
	input := map[string]interface{}{
		"method": req.Method,
		"path":   req.Path,
	}
	if req.Principal != nil {
		input["principal"] = map[string]interface{}{
			"user_id":  json.Number(strconv.FormatInt(req.Principal.UserID, 10)),
			"username": req.Principal.Username,
		}
	}
	rs, err := a.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("policy: eval: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, ErrNoDecision
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, ErrNoDecision
	}
	return allowed, nil
}

// HealthCheck verifies the prepared query still evaluates. An undefined
// decision for the anonymous probe input is not a failure.
func (a *RegoAuthorizer) HealthCheck(ctx context.Context) error {
	_, err := a.Authorize(ctx, AccessRequest{Method: "GET", Path: "/api/health"})
	if errors.Is(err, ErrNoDecision) {
		return nil
	}
	return err
}
