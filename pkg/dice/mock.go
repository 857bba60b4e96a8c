package dice

import "sync"

// MockSource replays a fixed sequence of die faces, cycling when exhausted.
// Faces larger than the die being rolled wrap around (face 20 on a d6 rolls a 2).
type MockSource struct {
	mu    sync.Mutex
	faces []int
	next  int
}

var _ Source = (*MockSource)(nil)

// NewMockSource creates a source that yields the given faces in order.
func NewMockSource(faces ...int) *MockSource {
	if len(faces) == 0 {
		faces = []int{1}
	}
	return &MockSource{faces: faces}
}

// Dice returns the next count scripted faces, reduced into [1, sides].
func (m *MockSource) Dice(count, sides int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, count)
	for range count {
		face := m.faces[m.next%len(m.faces)]
		m.next++
		v := (face - 1) % sides
		if v < 0 {
			v += sides
		}
		out = append(out, v+1)
	}
	return out, nil
}

// Calls returns how many dice have been rolled.
func (m *MockSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next
}

// NewMockRoller returns a roller that replays faces.
func NewMockRoller(faces ...int) *RandomRoller {
	return NewRoller(NewMockSource(faces...))
}
