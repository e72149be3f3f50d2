package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Builder assembles an instruction stream.
type Builder struct {
	code []byte
	open []int // offsets of unclosed block openers
	err  error
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{code: make([]byte, 0, 64)}
}

// Emit appends an opcode without operands and returns its offset.
func (b *Builder) Emit(op Opcode) int {
	offset := len(b.code)
	b.code = append(b.code, byte(op))
	if op.OpensBlock() {
		b.open = append(b.open, offset)
	}
	if op == OpEnd {
		if len(b.open) == 0 {
			b.fail(fmt.Errorf("END at offset %d closes no block", offset))
		} else {
			b.open = b.open[:len(b.open)-1]
		}
	}
	return offset
}

// EmitArg appends an opcode with a single-byte operand.
func (b *Builder) EmitArg(op Opcode, arg byte) int {
	if info, ok := Lookup(op); !ok || info.Operand != OperandByte {
		b.fail(fmt.Errorf("%s does not take a byte operand", op))
	}
	offset := len(b.code)
	b.code = append(b.code, byte(op), arg)
	return offset
}

// EmitConst appends an OpConst with the given payload.
func (b *Builder) EmitConst(payload []byte) int {
	if len(payload) > 0xFF {
		b.fail(fmt.Errorf("constant of %d bytes exceeds 255", len(payload)))
		payload = payload[:0xFF]
	}
	offset := len(b.code)
	b.code = append(b.code, byte(OpConst), byte(len(payload)))
	b.code = append(b.code, payload...)
	return offset
}

// EmitString appends an OpConst holding s as a NUL-terminated string.
func (b *Builder) EmitString(s string) int {
	return b.EmitConst(CString(s))
}

// EmitInt appends an OpConst holding v as a little-endian integer of width
// bytes (1, 2, 4 or 8).
func (b *Builder) EmitInt(v int64, width int) int {
	return b.EmitConst(EncodeInt(v, width))
}

// EmitBuiltin appends an OpBltin for name.
func (b *Builder) EmitBuiltin(name string) int {
	for i := 0; i < len(name); i++ {
		if name[i] == 0 {
			b.fail(fmt.Errorf("builtin name %q contains NUL", name))
			break
		}
	}
	offset := len(b.code)
	b.code = append(b.code, byte(OpBltin))
	b.code = append(b.code, name...)
	b.code = append(b.code, 0)
	return offset
}

// EmitCall appends OpBltin name followed by OpCall argc. Arguments must
// already be on the stack.
func (b *Builder) EmitCall(name string, argc int) int {
	offset := b.EmitBuiltin(name)
	if argc < 0 || argc > 0xFF {
		b.fail(fmt.Errorf("argument count %d out of range", argc))
	}
	b.EmitArg(OpCall, byte(argc))
	return offset
}

// BeginCode opens a code object block.
func (b *Builder) BeginCode() int {
	return b.Emit(OpCode)
}

// End closes the innermost open block.
func (b *Builder) End() int {
	return b.Emit(OpEnd)
}

// Append copies raw bytes into the stream.
func (b *Builder) Append(raw ...byte) {
	b.code = append(b.code, raw...)
}

// Len returns the current length of the stream.
func (b *Builder) Len() int {
	return len(b.code)
}

// Bytes returns the assembled stream.
func (b *Builder) Bytes() []byte {
	return b.code
}

// Build returns the assembled stream, or the first error recorded while
// emitting. Unclosed blocks are an error.
func (b *Builder) Build() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.open) > 0 {
		return nil, fmt.Errorf("%d unclosed block(s), innermost at offset %d", len(b.open), b.open[len(b.open)-1])
	}
	return b.code, nil
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// CString returns s followed by a NUL byte.
func CString(s string) []byte {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return buf
}

// EncodeInt encodes v little-endian in width bytes. Width must be 1, 2, 4
// or 8; any other width panics.
func EncodeInt(v int64, width int) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	switch width {
	case 1, 2, 4, 8:
		return buf[:width]
	default:
		panic(fmt.Sprintf("bytecode: unsupported integer width %d", width))
	}
}
