package formula

import (
	"fmt"
	"strconv"
)

type node interface {
	eval(vars map[string]int) (int, error)
}

type intNode int

func (n intNode) eval(map[string]int) (int, error) { return int(n), nil }

type varNode string

func (n varNode) eval(vars map[string]int) (int, error) {
	v, ok := vars[string(n)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingVariable, string(n))
	}
	return v, nil
}

type negNode struct{ operand node }

func (n negNode) eval(vars map[string]int) (int, error) {
	v, err := n.operand.eval(vars)
	return -v, err
}

type binaryNode struct {
	op          string
	left, right node
}

func (n binaryNode) eval(vars map[string]int) (int, error) {
	a, err := n.left.eval(vars)
	if err != nil {
		return 0, err
	}
	b, err := n.right.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	case "//":
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return floorDiv(a, b), nil
	case "%":
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a - floorDiv(a, b)*b, nil
	}
	return 0, fmt.Errorf("%w: operator %q", ErrSyntax, n.op)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

type callNode struct {
	name string
	fn   func(args []int) int
	args []node
}

func (n callNode) eval(vars map[string]int) (int, error) {
	vals := make([]int, len(n.args))
	for i, arg := range n.args {
		v, err := arg.eval(vars)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}
	return n.fn(vals), nil
}

type function struct {
	minArgs, maxArgs int
	apply            func(args []int) int
}

func (f function) arity() string {
	if f.minArgs == f.maxArgs {
		return strconv.Itoa(f.minArgs)
	}
	if f.maxArgs == 0 {
		return "at least " + strconv.Itoa(f.minArgs)
	}
	return fmt.Sprintf("%d to %d", f.minArgs, f.maxArgs)
}

var functions = map[string]function{
	"min": {minArgs: 1, apply: func(args []int) int { return minOf(args) }},
	"max": {minArgs: 1, apply: func(args []int) int { return maxOf(args) }},
	"abs": {minArgs: 1, maxArgs: 1, apply: func(args []int) int {
		if args[0] < 0 {
			return -args[0]
		}
		return args[0]
	}},
}

func minOf(args []int) int {
	m := args[0]
	for _, v := range args[1:] {
		m = min(m, v)
	}
	return m
}

func maxOf(args []int) int {
	m := args[0]
	for _, v := range args[1:] {
		m = max(m, v)
	}
	return m
}
