// Package builtins provides the standard native functions reachable from
// bytecode through BLTIN and CALL.
//
// Builtins receive their arguments in stack order, most recently pushed
// first. Functions taking several arguments therefore walk the slice from the
// end to see them in the order the program pushed them.
package builtins

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/chazu/sbc/vm"
)

// ErrArity is returned when a builtin gets the wrong number of arguments.
var ErrArity = errors.New("wrong number of arguments")

// Standard returns a registry with the standard builtins writing to out.
func Standard(out io.Writer) *vm.Registry {
	return vm.MustRegistry(List(out)...)
}

// List returns the standard builtins writing to out, for callers that want
// to add their own before building a registry.
func List(out io.Writer) []vm.Builtin {
	w := &lockedWriter{w: out}
	return []vm.Builtin{
		{Name: "println", Fn: w.println},
		{Name: "print", Fn: w.print},
		{Name: "len", Fn: length},
		{Name: "concat", Fn: concat},
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// println writes its arguments separated by spaces and a newline. The
// result is the number of bytes written, as an i32 from a static cell.
func (w *lockedWriter) println(args []vm.Value) (vm.Value, error) {
	if len(args) == 0 {
		return vm.Value{}, fmt.Errorf("println: %w: want at least 1, got 0", ErrArity)
	}
	return w.write(joinArgs(args) + "\n")
}

// print is println without the newline.
func (w *lockedWriter) print(args []vm.Value) (vm.Value, error) {
	return w.write(joinArgs(args))
}

func (w *lockedWriter) write(s string) (vm.Value, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := io.WriteString(w.w, s)
	if err != nil {
		return vm.Value{}, err
	}
	return vm.Int(vm.TagI32, int64(n)).WithOwnership(vm.Static), nil
}

// length returns the length of a string argument as a u32.
func length(args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.Value{}, fmt.Errorf("len: %w: want 1, got %d", ErrArity, len(args))
	}
	v := args[0]
	if v.Tag() != vm.TagBytes {
		return vm.Value{}, fmt.Errorf("len: %w: %s", vm.ErrTypeMismatch, v.Tag())
	}
	return vm.Uint(vm.TagU32, uint64(len(v.Str()))), nil
}

// concat joins its string arguments in push order into a new owned string.
func concat(args []vm.Value) (vm.Value, error) {
	var sb strings.Builder
	for i := len(args) - 1; i >= 0; i-- {
		sb.WriteString(Format(args[i]))
	}
	return vm.String(sb.String()), nil
}

func joinArgs(args []vm.Value) string {
	parts := make([]string, 0, len(args))
	for i := len(args) - 1; i >= 0; i-- {
		parts = append(parts, Format(args[i]))
	}
	return strings.Join(parts, " ")
}

// Format renders a Value the way the output builtins print it: payloads as
// NUL-terminated strings, integers in decimal.
func Format(v vm.Value) string {
	switch v.Tag() {
	case vm.TagBytes:
		return v.Str()
	case vm.TagBool:
		b, _ := v.AsBool()
		return strconv.FormatBool(b)
	case vm.TagNull:
		return "null"
	}
	if v.Tag().IsInteger() && v.Tag().Width() <= 64 {
		n, _ := v.Uint64()
		if v.Tag().Signed() {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatUint(n, 10)
	}
	return v.String()
}
