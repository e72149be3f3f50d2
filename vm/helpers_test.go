package vm

import (
	"errors"
	"testing"

	"github.com/chazu/sbc/pkg/bytecode"
)

// assemble builds a stream with a bytecode.Builder.
func assemble(t *testing.T, fn func(b *bytecode.Builder)) []byte {
	t.Helper()
	b := bytecode.NewBuilder()
	fn(b)
	code, err := b.Build()
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return code
}

// callRecorder is a builtin that records its arguments and returns a fixed
// result.
type callRecorder struct {
	calls  [][]Value
	result Value
}

func (r *callRecorder) fn(args []Value) (Value, error) {
	kept := make([]Value, len(args))
	for i, a := range args {
		kept[i] = a.Detach()
	}
	r.calls = append(r.calls, kept)
	return r.result, nil
}

func argCount(args []Value) (Value, error) {
	return Uint(TagU8, uint64(len(args))), nil
}

func failing(args []Value) (Value, error) {
	return Value{}, errors.New("boom")
}

func testRegistry(t *testing.T, extra ...Builtin) *Registry {
	t.Helper()
	r, err := NewRegistry(append([]Builtin{
		{Name: "count", Fn: argCount},
		{Name: "fail", Fn: failing},
	}, extra...)...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func mustRun(t *testing.T, m *Machine, code []byte) *Result {
	t.Helper()
	res, err := m.Run(code)
	if err != nil {
		t.Fatalf("Run failed: %v\n%s", err, bytecode.Disassemble(code))
	}
	return res
}

// runFault runs code expecting a fault wrapping want.
func runFault(t *testing.T, m *Machine, code []byte, want error) *Fault {
	t.Helper()
	_, err := m.Run(code)
	if err == nil {
		t.Fatalf("Run succeeded, want %v\n%s", want, bytecode.Disassemble(code))
	}
	if !errors.Is(err, want) {
		t.Fatalf("Run error = %v, want %v", err, want)
	}
	f, ok := AsFault(err)
	if !ok {
		t.Fatalf("Run error %T is not a *Fault", err)
	}
	return f
}

func wantInt(t *testing.T, v Value, tag Tag, n int64) {
	t.Helper()
	if v.Tag() != tag {
		t.Fatalf("tag = %s, want %s (value %s)", v.Tag(), tag, v)
	}
	got, _ := v.Int64()
	if !tag.Signed() {
		u, _ := v.Uint64()
		got = int64(u)
	}
	if got != n {
		t.Errorf("value = %d, want %d", got, n)
	}
}
