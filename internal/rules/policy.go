package rules

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/objgate/internal/ir"
)

// Effect is the outcome a policy statement grants to matching callers.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Policy is a declarative rule set loaded from YAML:
//
//	strict: true
//	field_policy: inherit
//	rules:
//	  - type: widget
//	    action: write
//	    field: price
//	    effect: allow
//	    roles: [pricing]
//	    message: only pricing may change prices
type Policy struct {
	// Strict, when set, overrides the registry's strict mode.
	Strict *bool `yaml:"strict,omitempty"`

	// FieldPolicy, when set, overrides the registry's field policy.
	FieldPolicy string `yaml:"field_policy,omitempty"`

	Statements []Statement `yaml:"rules"`
}

// Statement is one policy entry. A caller matches when it satisfies the
// Users and Roles lists (an empty list matches everyone). An allow statement
// denies non-matching callers; a deny statement denies matching callers.
type Statement struct {
	Type    string   `yaml:"type"`
	Action  string   `yaml:"action"`
	Field   string   `yaml:"field,omitempty"`
	Effect  Effect   `yaml:"effect"`
	Users   []string `yaml:"users,omitempty"`
	Roles   []string `yaml:"roles,omitempty"`
	Message string   `yaml:"message,omitempty"`
}

// LoadPolicy reads and parses a policy file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy parses a YAML policy document. Unknown fields are rejected.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, ir.InvalidInput("parse policy: %v", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that every statement names a known action and effect.
func (p *Policy) Validate() error {
	if _, err := ParseFieldPolicy(p.FieldPolicy); err != nil {
		return err
	}
	for i, s := range p.Statements {
		if s.Type == "" {
			return ir.InvalidInput("policy rule %d: type is required", i)
		}
		switch ir.Action(strings.ToLower(s.Action)) {
		case ir.ActionRead, ir.ActionWrite, ir.ActionDelete, ir.ActionQuery, ir.ActionLog:
		default:
			return ir.InvalidInput("policy rule %d: unknown action %q", i, s.Action)
		}
		switch s.Effect {
		case EffectAllow, EffectDeny:
		default:
			return ir.InvalidInput("policy rule %d: unknown effect %q", i, s.Effect)
		}
	}
	return nil
}

// Install registers every statement with reg and applies the strict and
// field policy overrides. The returned handles remove the statements again.
func (p *Policy) Install(reg *Registry) []Handle {
	if p.Strict != nil {
		reg.SetStrict(*p.Strict)
	}
	if p.FieldPolicy != "" {
		fp, _ := ParseFieldPolicy(p.FieldPolicy)
		reg.SetFieldPolicy(fp)
	}
	handles := make([]Handle, 0, len(p.Statements))
	for _, s := range p.Statements {
		handles = append(handles, reg.Add(s.Type, ir.Action(s.Action), s.Field, s.Rule()))
	}
	return handles
}

// Rule compiles the statement into a Rule.
func (s Statement) Rule() Rule {
	return func(_ context.Context, op *ir.Operation) error {
		matched := s.matches(op.Meta)
		if (s.Effect == EffectAllow) == matched {
			return nil
		}
		msg := s.Message
		if msg == "" {
			msg = fmt.Sprintf("%s %s denied by policy", s.Type, s.Action)
			if s.Field != "" {
				msg = fmt.Sprintf("%s %s of %s denied by policy", s.Type, s.Action, s.Field)
			}
		}
		return denied(op, msg)
	}
}

func (s Statement) matches(meta ir.Meta) bool {
	if len(s.Users) > 0 && !slices.Contains(s.Users, meta.User) {
		return false
	}
	if len(s.Roles) > 0 && !slices.ContainsFunc(s.Roles, meta.HasRole) {
		return false
	}
	return true
}
