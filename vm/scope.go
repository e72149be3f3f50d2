package vm

import "fmt"

// ScopeSize is the number of slots addressable by a one-byte index.
const ScopeSize = 256

// scope holds the local slots of one invocation. Slots read before being
// written fault instead of yielding garbage.
type scope struct {
	slots   [ScopeSize]Value
	defined [ScopeSize]bool
	limit   int
}

func newScope() *scope {
	return &scope{limit: ScopeSize}
}

func (s *scope) get(slot byte) (Value, error) {
	if int(slot) >= s.limit {
		return Value{}, fmt.Errorf("%w: slot %d, limit %d", ErrScopeOutOfRange, slot, s.limit)
	}
	if !s.defined[slot] {
		return Value{}, fmt.Errorf("%w: slot %d", ErrUninitializedSlot, slot)
	}
	return s.slots[slot], nil
}

func (s *scope) set(slot byte, v Value) error {
	if int(slot) >= s.limit {
		return fmt.Errorf("%w: slot %d, limit %d", ErrScopeOutOfRange, slot, s.limit)
	}
	s.slots[slot] = v
	s.defined[slot] = true
	return nil
}

// alloc limits the scope to n slots; 0 means all of them. Slots beyond the
// new limit are cleared.
func (s *scope) alloc(n byte) {
	limit := int(n)
	if limit == 0 {
		limit = ScopeSize
	}
	for i := limit; i < s.limit; i++ {
		s.slots[i] = Value{}
		s.defined[i] = false
	}
	s.limit = limit
}

// extend raises the limit by n slots, capped at ScopeSize.
func (s *scope) extend(n byte) {
	s.limit += int(n)
	if s.limit > ScopeSize {
		s.limit = ScopeSize
	}
}
