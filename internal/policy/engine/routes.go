package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"edu-platform/backend/internal/policy/domain"
)

const pathSeparator = '/'

type compiledRule struct {
	rule    domain.Rule
	globs   []glob.Glob
	methods map[string]struct{}
}

func (c *compiledRule) matches(method, path string) bool {
	if len(c.methods) > 0 {
		if _, ok := c.methods[method]; !ok {
			return false
		}
	}
	for _, g := range c.globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// RouteTable classifies requests by an ordered rule list. It is immutable
// after construction and safe for concurrent use.
type RouteTable struct {
	rules []compiledRule
}

// NewRouteTable compiles rules. Public rules are ordered before authenticated
// ones; relative order within each group is kept. Requests matching no rule
// require authentication.
func NewRouteTable(rules []domain.Rule) (*RouteTable, error) {
	ordered := append([]domain.Rule(nil), rules...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Requirement == domain.RequirementPublic &&
			ordered[j].Requirement != domain.RequirementPublic
	})

	t := &RouteTable{rules: make([]compiledRule, 0, len(ordered))}
	for _, r := range ordered {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		c, err := compileRule(r)
		if err != nil {
			return nil, err
		}
		t.rules = append(t.rules, c)
	}
	return t, nil
}

func compileRule(r domain.Rule) (compiledRule, error) {
	patterns := []string{r.Pattern}
	if prefix, ok := strings.CutSuffix(r.Pattern, "/**"); ok && prefix != "" {
		patterns = append(patterns, prefix)
	}
	c := compiledRule{rule: r}
	for _, p := range patterns {
		g, err := glob.Compile(p, pathSeparator)
		if err != nil {
			return compiledRule{}, fmt.Errorf("policy: compile pattern %q: %w", r.Pattern, err)
		}
		c.globs = append(c.globs, g)
	}
	if len(r.Methods) > 0 {
		c.methods = make(map[string]struct{}, len(r.Methods))
		for _, m := range r.Methods {
			c.methods[m] = struct{}{}
		}
	}
	return c, nil
}

// Classify returns the requirement of the first rule matching method and path,
// or RequirementAuthenticated when none does.
func (t *RouteTable) Classify(method, path string) domain.Requirement {
	for i := range t.rules {
		if t.rules[i].matches(method, path) {
			return t.rules[i].rule.Requirement
		}
	}
	return domain.RequirementAuthenticated
}

// Rules returns the rules in evaluation order.
func (t *RouteTable) Rules() []domain.Rule {
	out := make([]domain.Rule, len(t.rules))
	for i := range t.rules {
		out[i] = t.rules[i].rule
	}
	return out
}
