// Package formula compiles and evaluates the small integer arithmetic language used in
// rule values, e.g. "-(value // 10)" or "max(1, rel_value / 20)".
//
// The grammar is closed: integer literals, the declared variables, the operators
// + - * / // % with parentheses and unary sign, and the functions min, max and abs.
// Nothing else can be referenced, so a rule author cannot reach process state.
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/" | "//" | "%") unary }
//	unary   = ("+" | "-") unary | primary
//	primary = int | ident | ident "(" expr { "," expr } ")" | "(" expr ")"
//
// Division: "//" floors toward negative infinity and "%" takes the sign of the divisor.
// "/" truncates toward zero, the result of converting a true quotient back to an int.
package formula

import (
	"errors"
	"fmt"
	"slices"
)

const (
	maxSourceLength = 256
	maxDepth        = 32
)

var (
	// ErrSyntax indicates the formula text does not match the grammar.
	ErrSyntax = errors.New("formula syntax error")
	// ErrUnknownVariable indicates an identifier that was not declared at compile time.
	ErrUnknownVariable = errors.New("unknown variable")
	// ErrUnknownFunction indicates a call to a function outside the whitelist.
	ErrUnknownFunction = errors.New("unknown function")
	// ErrDivisionByZero is returned from Eval when a divisor evaluates to zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrMissingVariable is returned from Eval when a declared variable has no value.
	ErrMissingVariable = errors.New("missing variable value")
)

// Formula is a compiled expression. It is immutable and safe for concurrent use.
type Formula struct {
	source string
	vars   []string
	root   node
}

// Compile parses source, accepting only the listed variable names.
func Compile(source string, vars ...string) (*Formula, error) {
	if len(source) > maxSourceLength {
		return nil, fmt.Errorf("%w: formula longer than %d characters", ErrSyntax, maxSourceLength)
	}
	toks, err := tokenize(source)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, vars: vars}
	root, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, tok.text, tok.pos)
	}
	return &Formula{source: source, vars: slices.Clone(vars), root: root}, nil
}

// Source returns the text the formula was compiled from.
func (f *Formula) Source() string { return f.source }

// Eval evaluates the formula. Every variable referenced by the formula must be present in vars.
func (f *Formula) Eval(vars map[string]int) (int, error) {
	return f.root.eval(vars)
}

// Evaluate compiles and evaluates source in one step.
func Evaluate(source string, vars map[string]int) (int, error) {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	f, err := Compile(source, names...)
	if err != nil {
		return 0, err
	}
	return f.Eval(vars)
}
