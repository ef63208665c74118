package utility

// Stack is a growable LIFO. The zero value is an empty stack.
type Stack[T any] struct {
	items []T
}

func (s *Stack[T]) Push(v T) {
	s.items = append(s.items, v)
}

// Pop removes and returns the top item, ok is false on an empty stack.
func (s *Stack[T]) Pop() (v T, ok bool) {
	n := len(s.items)
	if n == 0 {
		return v, false
	}
	v = s.items[n-1]
	var zero T
	s.items[n-1] = zero
	s.items = s.items[:n-1]
	return v, true
}

func (s *Stack[T]) Len() int {
	return len(s.items)
}

// Clear empties the stack and keeps its capacity.
func (s *Stack[T]) Clear() {
	clear(s.items)
	s.items = s.items[:0]
}
