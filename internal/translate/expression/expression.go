// Package expression wraps the expr-lang compiler behind the small
// compile/evaluate contract translation actions need. Only administrator-
// authored strings are ever compiled; submitted values enter evaluation
// solely as context data.
package expression

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	dErrors "idhub/pkg/domain-errors"
)

// Program is a compiled expression. Immutable; compiled once at action
// construction time and shared across evaluations.
type Program struct {
	src  string
	prog *vm.Program
}

// Compile compiles an expression source string. A syntax error is fatal to
// profile installation, reported as an invalid-profile domain error.
func Compile(src string) (*Program, error) {
	prog, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidProfile, fmt.Sprintf("invalid expression %q", src))
	}
	return &Program{src: src, prog: prog}, nil
}

// MustCompile is Compile for tests and static defaults.
func MustCompile(src string) *Program {
	p, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return p
}

// Source returns the original expression text.
func (p *Program) Source() string {
	return p.src
}

// Evaluate runs the program against a context map. Evaluation is synchronous,
// side-effect free and bounded by input size. Runtime errors (missing keys,
// type mismatches on attacker-influenced data) are returned, never panicked;
// callers decide whether they are fatal.
func (p *Program) Evaluate(env map[string]any) (any, error) {
	out, err := vm.Run(p.prog, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", p.src, err)
	}
	return out, nil
}

// EvaluateBool evaluates a condition. Only a genuine boolean true (or the
// string "true") counts as true; nil, errors and everything else are false.
func (p *Program) EvaluateBool(env map[string]any) (bool, error) {
	out, err := p.Evaluate(env)
	if err != nil {
		return false, err
	}
	switch v := out.(type) {
	case bool:
		return v, nil
	case string:
		return v == "true", nil
	default:
		return false, nil
	}
}
