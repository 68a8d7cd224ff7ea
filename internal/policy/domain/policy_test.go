package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseRule(t *testing.T) {
	testCases := []struct {
		entry   string
		want    Rule
		wantErr bool
	}{
		{"/api/tags/**", Rule{Pattern: "/api/tags/**", Requirement: RequirementPublic}, false},
		{"  get /api/tags  ", Rule{Pattern: "/api/tags", Methods: []string{"GET"}, Requirement: RequirementPublic}, false},
		{"GET|head /api/x", Rule{Pattern: "/api/x", Methods: []string{"GET", "HEAD"}, Requirement: RequirementPublic}, false},
		{"api/no-slash", Rule{}, true},
		{"FETCH /api/x", Rule{}, true},
		{"GET /a /b", Rule{}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.entry, func(t *testing.T) {
			got, err := ParseRule(tc.entry, RequirementPublic)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseRule(%q) err = %v, wantErr %v", tc.entry, err, tc.wantErr)
			}
			if !tc.wantErr && !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ParseRule(%q) = %+v, want %+v", tc.entry, got, tc.want)
			}
		})
	}
}

func TestParseRule_Empty(t *testing.T) {
	if _, err := ParseRule("   ", RequirementPublic); !errors.Is(err, ErrEmptyRule) {
		t.Errorf("err = %v, want ErrEmptyRule", err)
	}
}

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]string{"/a", "POST /b"}, RequirementAuthenticated)
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if len(rules) != 2 || rules[1].Methods[0] != "POST" || rules[0].Requirement != RequirementAuthenticated {
		t.Errorf("rules = %+v", rules)
	}
	if _, err := ParseRules([]string{"/a", "bad"}, RequirementPublic); err == nil {
		t.Error("expected error for bad entry")
	}
}

func TestRule_ValidateRequirement(t *testing.T) {
	if err := (Rule{Pattern: "/x"}).Validate(); err == nil {
		t.Error("zero requirement should be invalid")
	}
}

func TestDefaultRulesValidate(t *testing.T) {
	for _, r := range append(DefaultPublicRules(), DefaultAuthenticatedRules()...) {
		if err := r.Validate(); err != nil {
			t.Errorf("default rule %+v: %v", r, err)
		}
	}
}

func TestRequirement_String(t *testing.T) {
	if RequirementPublic.String() != "public" || RequirementAuthenticated.String() != "authenticated" {
		t.Error("unexpected requirement names")
	}
	if Requirement(9).String() != "Requirement(9)" {
		t.Errorf("unknown = %q", Requirement(9).String())
	}
}
