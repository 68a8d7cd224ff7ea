package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Requirement is what a route demands of the caller.
type Requirement int

const (
	// RequirementPublic permits anonymous and authenticated callers alike.
	RequirementPublic Requirement = iota + 1
	// RequirementAuthenticated demands a verified principal.
	RequirementAuthenticated
)

func (r Requirement) String() string {
	switch r {
	case RequirementPublic:
		return "public"
	case RequirementAuthenticated:
		return "authenticated"
	}
	return fmt.Sprintf("Requirement(%d)", int(r))
}

// Rule classifies requests whose path matches Pattern and whose method is in
// Methods. An empty Methods matches every method.
//
// Patterns use '/' as separator: '*' matches within one segment, '**' spans
// segments, and a trailing "/**" also matches the bare prefix.
type Rule struct {
	Pattern     string
	Methods     []string
	Requirement Requirement
}

var knownMethods = map[string]struct{}{
	http.MethodGet: {}, http.MethodHead: {}, http.MethodPost: {}, http.MethodPut: {},
	http.MethodPatch: {}, http.MethodDelete: {}, http.MethodOptions: {},
	http.MethodConnect: {}, http.MethodTrace: {},
}

// Validate reports the first problem with r.
func (r Rule) Validate() error {
	if !strings.HasPrefix(r.Pattern, "/") {
		return fmt.Errorf("policy: pattern %q must start with /", r.Pattern)
	}
	if r.Requirement != RequirementPublic && r.Requirement != RequirementAuthenticated {
		return fmt.Errorf("policy: pattern %q: invalid requirement %d", r.Pattern, int(r.Requirement))
	}
	for _, m := range r.Methods {
		if _, ok := knownMethods[m]; !ok {
			return fmt.Errorf("policy: pattern %q: unknown method %q", r.Pattern, m)
		}
	}
	return nil
}

// ErrEmptyRule is returned by ParseRule for a blank entry.
var ErrEmptyRule = errors.New("policy: empty route entry")

// ParseRule parses a configured entry of the form "pattern" or "METHOD pattern".
// METHOD may be a '|' separated list, e.g. "GET|HEAD /api/contents/**".
func ParseRule(entry string, req Requirement) (Rule, error) {
	fields := strings.Fields(entry)
	var rule Rule
	switch len(fields) {
	case 0:
		return Rule{}, ErrEmptyRule
	case 1:
		rule = Rule{Pattern: fields[0], Requirement: req}
	case 2:
		var methods []string
		for _, m := range strings.Split(fields[0], "|") {
			if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
				methods = append(methods, m)
			}
		}
		rule = Rule{Pattern: fields[1], Methods: methods, Requirement: req}
	default:
		return Rule{}, fmt.Errorf("policy: malformed route entry %q", entry)
	}
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// ParseRules parses entries with ParseRule.
func ParseRules(entries []string, req Requirement) ([]Rule, error) {
	out := make([]Rule, 0, len(entries))
	for _, e := range entries {
		r, err := ParseRule(e, req)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// DefaultPublicRules are the routes reachable without a session token.
func DefaultPublicRules() []Rule {
	return []Rule{
		{Pattern: "/api/health", Methods: []string{http.MethodGet, http.MethodHead}, Requirement: RequirementPublic},
		{Pattern: "/api/auth/login", Methods: []string{http.MethodPost}, Requirement: RequirementPublic},
		{Pattern: "/api/auth/register", Methods: []string{http.MethodPost}, Requirement: RequirementPublic},
		{Pattern: "/api/auth/refresh", Methods: []string{http.MethodPost}, Requirement: RequirementPublic},
		{Pattern: "/api/contents/**", Methods: []string{http.MethodGet, http.MethodHead}, Requirement: RequirementPublic},
		{Pattern: "/grpc.health.v1.Health/**", Requirement: RequirementPublic},
	}
}

// DefaultAuthenticatedRules are routes that always require a principal.
func DefaultAuthenticatedRules() []Rule {
	return []Rule{
		{Pattern: "/api/auth/me", Requirement: RequirementAuthenticated},
	}
}
