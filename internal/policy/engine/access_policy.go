package engine

import (
	"context"

	"edu-platform/backend/internal/apperr"
	identitydomain "edu-platform/backend/internal/identity/domain"
	"edu-platform/backend/internal/policy/domain"
)

// AccessRequest is the input to an Authorizer.
type AccessRequest struct {
	Method    string
	Path      string
	Principal *identitydomain.Principal
}

// Authorizer makes a fine-grained decision for an authenticated request.
// A non-nil error is treated as a denial.
type Authorizer interface {
	Authorize(ctx context.Context, req AccessRequest) (bool, error)
}

// AccessPolicy decides whether a request may proceed to its handler.
type AccessPolicy struct {
	routes     *RouteTable
	authorizer Authorizer
}

// NewAccessPolicy returns a policy over routes. authorizer may be nil.
func NewAccessPolicy(routes *RouteTable, authorizer Authorizer) *AccessPolicy {
	return &AccessPolicy{routes: routes, authorizer: authorizer}
}

// Requirement returns the classification of method and path.
func (p *AccessPolicy) Requirement(method, path string) domain.Requirement {
	return p.routes.Classify(method, path)
}

// Decide returns nil when the request may proceed. A protected route without
// a principal yields an apperr.Unauthorized error; an authorizer refusal
// yields apperr.Forbidden.
func (p *AccessPolicy) Decide(ctx context.Context, method, path string, principal *identitydomain.Principal) error {
	if p.routes.Classify(method, path) == domain.RequirementPublic {
		return nil
	}
	if principal == nil {
		return apperr.New(apperr.Unauthorized)
	}
	if p.authorizer == nil {
		return nil
	}
	allowed, err := p.authorizer.Authorize(ctx, AccessRequest{Method: method, Path: path, Principal: principal})
	if err != nil {
		return apperr.New(apperr.Forbidden).WithCause(err)
	}
	if !allowed {
		return apperr.New(apperr.Forbidden)
	}
	return nil
}
