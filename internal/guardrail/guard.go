// Package guardrail screens analysis requests before any model call.
package guardrail

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/cel-go/cel"
	"github.com/jonathan/contract-analyzer/internal/types"
	"gopkg.in/yaml.v3"
)

// MaxTextBytes is the largest text the rule cost limit is sized for. Every
// ingestion path caps contract text below it.
const MaxTextBytes = 8 << 20

// maxPatternLen is the longest regex that can scan MaxTextBytes within the limit
const maxPatternLen = 256

// celCostLimit bounds the evaluation cost of one rule. CEL charges a regex match
// about len(text)/10 * len(pattern)/4; the limit admits four such matches per rule.
const celCostLimit uint64 = 4 * (MaxTextBytes / 10) * (maxPatternLen / 4)

// Verdict is the outcome of screening one request
type Verdict struct {
	Blocked bool   `json:"blocked"`
	Rule    string `json:"rule,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Guard screens a request. A blocked verdict means the model must not be invoked.
type Guard interface {
	Check(ctx context.Context, req *types.AnalysisRequest) (*Verdict, error)
}

// Rule is a named CEL boolean expression over text, contract_type and persona.
// The request is blocked when the expression evaluates to true.
type Rule struct {
	Name       string `yaml:"name" validate:"required"`
	Expression string `yaml:"expression" validate:"required"`
	Reason     string `yaml:"reason"`
}

type compiledRule struct {
	rule    Rule
	program cel.Program
}

// CELGuard evaluates rules in order; the first match blocks.
// Rules are compiled once; Check is safe for concurrent use.
type CELGuard struct {
	rules []compiledRule
}

var ruleValidator = validator.New()

// NewCELGuard compiles rules into a guard.
func NewCELGuard(rules []Rule) (*CELGuard, error) {
	env, err := cel.NewEnv(
		cel.Variable("text", cel.StringType),
		cel.Variable("contract_type", cel.StringType),
		cel.Variable("persona", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	guard := &CELGuard{rules: make([]compiledRule, 0, len(rules))}
	for _, rule := range rules {
		if err := ruleValidator.Struct(rule); err != nil {
			return nil, &RuleError{Rule: rule.Name, Message: "invalid rule", Cause: err}
		}

		ast, issues := env.Compile(rule.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, &RuleError{Rule: rule.Name, Message: "compile error", Cause: issues.Err()}
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, &RuleError{Rule: rule.Name, Message: fmt.Sprintf("expression must evaluate to bool, got %s", ast.OutputType())}
		}

		prog, err := env.Program(ast, cel.CostLimit(celCostLimit))
		if err != nil {
			return nil, &RuleError{Rule: rule.Name, Message: "program creation error", Cause: err}
		}
		guard.rules = append(guard.rules, compiledRule{rule: rule, program: prog})
	}
	return guard, nil
}

// NewDefaultGuard compiles DefaultRules.
func NewDefaultGuard() (*CELGuard, error) {
	return NewCELGuard(DefaultRules())
}

// Check evaluates every rule against the request. Evaluation errors block the request.
func (g *CELGuard) Check(ctx context.Context, req *types.AnalysisRequest) (*Verdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vars := map[string]any{
		"text":          req.ContractText,
		"contract_type": string(req.ContractType),
		"persona":       string(req.Persona),
	}

	for _, cr := range g.rules {
		out, _, err := cr.program.Eval(vars)
		if err != nil {
			return &Verdict{
				Blocked: true,
				Rule:    cr.rule.Name,
				Reason:  fmt.Sprintf("guardrail evaluation failed: %v", err),
			}, nil
		}
		if matched, ok := out.Value().(bool); ok && matched {
			reason := cr.rule.Reason
			if reason == "" {
				reason = fmt.Sprintf("content matched guardrail rule %q", cr.rule.Name)
			}
			return &Verdict{Blocked: true, Rule: cr.rule.Name, Reason: reason}, nil
		}
	}
	return &Verdict{}, nil
}

// RuleNames returns the configured rule names in evaluation order.
func (g *CELGuard) RuleNames() []string {
	names := make([]string, 0, len(g.rules))
	for _, cr := range g.rules {
		names = append(names, cr.rule.Name)
	}
	return names
}

// rulesFile is the YAML layout of a rules file
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads rules from a YAML file with a top-level "rules" list.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read guardrail rules %s: %w", path, err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse guardrail rules %s: %w", path, err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("guardrail rules %s defines no rules", path)
	}
	for i := range file.Rules {
		file.Rules[i].Name = strings.TrimSpace(file.Rules[i].Name)
	}
	return file.Rules, nil
}

// RuleError reports a rule that could not be compiled
type RuleError struct {
	Rule    string
	Message string
	Cause   error
}

func (e *RuleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("guardrail rule %q: %s: %v", e.Rule, e.Message, e.Cause)
	}
	return fmt.Sprintf("guardrail rule %q: %s", e.Rule, e.Message)
}

func (e *RuleError) Unwrap() error {
	return e.Cause
}
