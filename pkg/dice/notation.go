// Package dice parses dice notation ("1d20", "2d6+3", "1d8-1+1d4") and rolls it.
package dice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	maxDiceCount = 100
	maxDieSides  = 1000
)

// ErrInvalidNotation indicates a dice notation string could not be parsed.
var ErrInvalidNotation = errors.New("invalid dice notation")

// Term is one signed group of identical dice, e.g. the "2d6" in "2d6+3".
type Term struct {
	Count    int
	Sides    int
	Negative bool
}

// Expression is a parsed dice notation.
//
// Postcondition of Parse: len(Terms) > 0 || Modifier != 0.
type Expression struct {
	Terms    []Term
	Modifier int // flat modifier, sum of all constant terms
}

// Parse parses a dice notation. Whitespace is ignored and the "d" is case-insensitive.
// A term without a count ("d8") is read as one die.
func Parse(notation string) (Expression, error) {
	s := strings.ToLower(strings.Join(strings.Fields(notation), ""))
	if s == "" {
		return Expression{}, fmt.Errorf("%w: empty notation", ErrInvalidNotation)
	}

	var expr Expression
	i := 0
	for i < len(s) {
		negative := false
		switch s[i] {
		case '+':
			i++
		case '-':
			negative = true
			i++
		default:
			if i > 0 {
				return Expression{}, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidNotation, s[i], notation)
			}
		}

		start := i
		for i < len(s) && s[i] != '+' && s[i] != '-' {
			i++
		}
		part := s[start:i]
		if part == "" {
			return Expression{}, fmt.Errorf("%w: dangling operator in %q", ErrInvalidNotation, notation)
		}

		if before, after, ok := strings.Cut(part, "d"); ok {
			term, err := parseTerm(before, after)
			if err != nil {
				return Expression{}, fmt.Errorf("%w: %q: %v", ErrInvalidNotation, notation, err)
			}
			term.Negative = negative
			expr.Terms = append(expr.Terms, term)
			continue
		}

		n, err := strconv.Atoi(part)
		if err != nil {
			return Expression{}, fmt.Errorf("%w: bad constant %q in %q", ErrInvalidNotation, part, notation)
		}
		if negative {
			n = -n
		}
		expr.Modifier += n
	}
	return expr, nil
}

func parseTerm(count, sides string) (Term, error) {
	t := Term{Count: 1}
	if count != "" {
		n, err := strconv.Atoi(count)
		if err != nil {
			return Term{}, fmt.Errorf("bad dice count %q", count)
		}
		t.Count = n
	}
	n, err := strconv.Atoi(sides)
	if err != nil {
		return Term{}, fmt.Errorf("bad die size %q", sides)
	}
	t.Sides = n

	if t.Count < 1 || t.Count > maxDiceCount {
		return Term{}, fmt.Errorf("dice count must be between 1 and %d", maxDiceCount)
	}
	if t.Sides < 1 || t.Sides > maxDieSides {
		return Term{}, fmt.Errorf("die size must be between 1 and %d", maxDieSides)
	}
	return t, nil
}

// IsSingleDie reports whether the expression is exactly one die ("1dX") with no modifier.
func (e Expression) IsSingleDie() bool {
	return len(e.Terms) == 1 && e.Terms[0].Count == 1 && !e.Terms[0].Negative && e.Modifier == 0
}

// HasDie reports whether any term rolls a die with the given number of sides.
func (e Expression) HasDie(sides int) bool {
	for _, t := range e.Terms {
		if t.Sides == sides {
			return true
		}
	}
	return false
}

// DiceOnly returns the expression without its flat modifier.
func (e Expression) DiceOnly() Expression {
	return Expression{Terms: e.Terms}
}

// Max returns the highest value the expression can produce.
func (e Expression) Max() int {
	total := e.Modifier
	for _, t := range e.Terms {
		if t.Negative {
			total -= t.Count
			continue
		}
		total += t.Count * t.Sides
	}
	return total
}

// String renders the expression in canonical notation.
func (e Expression) String() string {
	var sb strings.Builder
	for i, t := range e.Terms {
		switch {
		case t.Negative:
			sb.WriteByte('-')
		case i > 0:
			sb.WriteByte('+')
		}
		fmt.Fprintf(&sb, "%dd%d", t.Count, t.Sides)
	}
	switch {
	case e.Modifier > 0 && sb.Len() > 0:
		fmt.Fprintf(&sb, "+%d", e.Modifier)
	case e.Modifier != 0 || sb.Len() == 0:
		fmt.Fprintf(&sb, "%d", e.Modifier)
	}
	return sb.String()
}
