package vm

import "fmt"

// stack is the operand stack of one invocation.
type stack struct {
	items []Value
	limit int // 0 = unlimited
}

func newStack(limit int) *stack {
	return &stack{items: make([]Value, 0, 16), limit: limit}
}

func (s *stack) push(v Value) error {
	if s.limit > 0 && len(s.items) >= s.limit {
		return fmt.Errorf("%w: limit %d", ErrStackOverflow, s.limit)
	}
	s.items = append(s.items, v)
	return nil
}

func (s *stack) pop() (Value, error) {
	n := len(s.items)
	if n == 0 {
		return Value{}, ErrStackUnderflow
	}
	v := s.items[n-1]
	s.items[n-1] = Value{}
	s.items = s.items[:n-1]
	return v, nil
}

func (s *stack) peek() (Value, error) {
	n := len(s.items)
	if n == 0 {
		return Value{}, ErrStackUnderflow
	}
	return s.items[n-1], nil
}

// remove takes out the entry n below the top.
func (s *stack) remove(n int) (Value, error) {
	i := len(s.items) - 1 - n
	if i < 0 {
		return Value{}, ErrStackUnderflow
	}
	v := s.items[i]
	copy(s.items[i:], s.items[i+1:])
	s.items[len(s.items)-1] = Value{}
	s.items = s.items[:len(s.items)-1]
	return v, nil
}

// replace overwrites the top of the stack.
func (s *stack) replace(v Value) error {
	n := len(s.items)
	if n == 0 {
		return ErrStackUnderflow
	}
	s.items[n-1] = v
	return nil
}

func (s *stack) len() int {
	return len(s.items)
}
