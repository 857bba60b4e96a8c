package dice

import (
	"fmt"
	"sync"

	"github.com/jwebster45206/d20"
)

// Roll is the audit trail of one evaluated notation.
//
// Postcondition: Total == sum(Rolls, negative terms subtracted) + Modifier.
type Roll struct {
	Notation string `json:"notation"`
	Rolls    []int  `json:"rolls"`
	Modifier int    `json:"modifier"`
	Total    int    `json:"total"`
}

// Roller evaluates dice notation into a total and the individual die results.
type Roller interface {
	Roll(notation string) (Roll, error)
}

// Source rolls count dice of the given sides and returns each face.
type Source interface {
	Dice(count, sides int) ([]int, error)
}

// d20Source rolls through a d20.Roller, which is not safe for concurrent use.
type d20Source struct {
	mu     sync.Mutex
	roller *d20.Roller
}

func (s *d20Source) Dice(count, sides int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.roller.Dice(uint(count), uint(sides)).Roll()
	if err != nil {
		return nil, err
	}
	return out.DiceRolls, nil
}

// RandomRoller rolls dice from a Source. It is safe for concurrent use.
type RandomRoller struct {
	src Source
}

var _ Roller = (*RandomRoller)(nil)

// NewRandomRoller returns a roller backed by a d20 roller seeded with seed.
func NewRandomRoller(seed int64) *RandomRoller {
	return &RandomRoller{src: &d20Source{roller: d20.NewRoller(seed)}}
}

// NewRoller returns a roller backed by src.
func NewRoller(src Source) *RandomRoller {
	return &RandomRoller{src: src}
}

// Roll parses and rolls notation.
func (r *RandomRoller) Roll(notation string) (Roll, error) {
	expr, err := Parse(notation)
	if err != nil {
		return Roll{}, err
	}
	res, err := RollExpression(expr, r.src)
	if err != nil {
		return Roll{}, err
	}
	res.Notation = notation
	return res, nil
}

// RollExpression rolls a parsed expression. Dice are rolled in term order.
func RollExpression(expr Expression, src Source) (Roll, error) {
	res := Roll{
		Notation: expr.String(),
		Rolls:    make([]int, 0, len(expr.Terms)),
		Modifier: expr.Modifier,
		Total:    expr.Modifier,
	}
	for _, t := range expr.Terms {
		faces, err := src.Dice(t.Count, t.Sides)
		if err != nil {
			return Roll{}, fmt.Errorf("failed to roll %dd%d: %w", t.Count, t.Sides, err)
		}
		for _, v := range faces {
			res.Rolls = append(res.Rolls, v)
			if t.Negative {
				res.Total -= v
			} else {
				res.Total += v
			}
		}
	}
	return res, nil
}
