package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/sbc/pkg/bytecode"
)

// Stream-level faults. These mean the instruction stream itself cannot be
// run and end the whole run, not just the current invocation.
var (
	ErrUnknownOpcode       = bytecode.ErrUnknownOpcode
	ErrUnimplementedOpcode = errors.New("unimplemented opcode")
	ErrMalformedStream     = errors.New("malformed stream")
)

// Invocation-level faults.
var (
	ErrStackUnderflow    = errors.New("stack underflow")
	ErrStackOverflow     = errors.New("stack overflow")
	ErrUnknownBuiltin    = errors.New("unknown builtin")
	ErrUninitializedSlot = errors.New("uninitialized scope slot")
	ErrScopeOutOfRange   = errors.New("scope slot out of range")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrNotCallable       = errors.New("not callable")
	ErrBadJump           = errors.New("jump target out of range")
	ErrRecursionDepth    = errors.New("recursion depth exceeded")
	ErrUnsupported       = errors.New("unsupported operation")
	ErrBuiltinFailed     = errors.New("builtin failed")
)

// Fault is the error returned when execution stops abnormally. It records
// where in which invocation the fault occurred; Err wraps one of the
// sentinel errors above.
type Fault struct {
	Op     bytecode.Opcode // opcode being executed
	Offset int             // offset of the opcode in its invocation's code
	Depth  int             // EXEC nesting depth, 0 for the outermost invocation
	Err    error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("vm fault at offset %d (%s, depth %d): %v", f.Offset, f.Op, f.Depth, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Fatal reports whether the fault concerns the well-formedness of the
// stream rather than the data flowing through it.
func (f *Fault) Fatal() bool {
	return errors.Is(f.Err, ErrUnknownOpcode) ||
		errors.Is(f.Err, ErrUnimplementedOpcode) ||
		errors.Is(f.Err, ErrMalformedStream)
}

// AsFault extracts a *Fault from err.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// decodeError classifies an error from the decoder.
func decodeError(err error) error {
	if errors.Is(err, bytecode.ErrUnknownOpcode) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrMalformedStream, err)
}
