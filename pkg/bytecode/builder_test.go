package bytecode

import (
	"bytes"
	"testing"
)

func TestBuilderHelloWorld(t *testing.T) {
	b := NewBuilder()
	b.BeginCode()
	b.EmitString("hi")
	b.EmitCall("println", 1)
	b.End()
	b.Emit(OpExec)
	b.Emit(OpPop)

	code, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := []byte{
		byte(OpCode),
		byte(OpConst), 3, 'h', 'i', 0,
		byte(OpBltin), 'p', 'r', 'i', 'n', 't', 'l', 'n', 0,
		byte(OpCall), 1,
		byte(OpEnd),
		byte(OpExec),
		byte(OpPop),
	}
	if !bytes.Equal(code, want) {
		t.Errorf("code = % x\nwant   % x", code, want)
	}
}

func TestBuilderOffsets(t *testing.T) {
	b := NewBuilder()
	if off := b.Emit(OpNop); off != 0 {
		t.Errorf("first offset = %d", off)
	}
	if off := b.EmitInt(5, 4); off != 1 {
		t.Errorf("const offset = %d", off)
	}
	if b.Len() != 7 {
		t.Errorf("Len() = %d, want 7", b.Len())
	}
}

func TestBuilderUnclosedBlock(t *testing.T) {
	b := NewBuilder()
	b.BeginCode()
	b.Emit(OpNop)
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error for unclosed block")
	}
}

func TestBuilderStrayEnd(t *testing.T) {
	b := NewBuilder()
	b.End()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error for END without block")
	}
}

func TestBuilderBadOperand(t *testing.T) {
	b := NewBuilder()
	b.EmitArg(OpAdd, 1)
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error for ADD with operand")
	}
}

func TestBuilderConstTooLong(t *testing.T) {
	b := NewBuilder()
	b.EmitConst(make([]byte, 256))
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error for 256-byte constant")
	}
}

func TestBuilderBuiltinWithNul(t *testing.T) {
	b := NewBuilder()
	b.EmitBuiltin("a\x00b")
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error for NUL in builtin name")
	}
}

func TestEncodeInt(t *testing.T) {
	tests := []struct {
		v     int64
		width int
		want  []byte
	}{
		{1, 1, []byte{1}},
		{-1, 2, []byte{0xFF, 0xFF}},
		{0x01020304, 4, []byte{4, 3, 2, 1}},
		{256, 8, []byte{0, 1, 0, 0, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		if got := EncodeInt(tt.v, tt.width); !bytes.Equal(got, tt.want) {
			t.Errorf("EncodeInt(%d, %d) = % x, want % x", tt.v, tt.width, got, tt.want)
		}
	}
}

func TestEncodeIntBadWidth(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("EncodeInt with width 3 should panic")
		}
	}()
	EncodeInt(1, 3)
}

func TestCString(t *testing.T) {
	if got := CString("ok"); !bytes.Equal(got, []byte{'o', 'k', 0}) {
		t.Errorf("CString = % x", got)
	}
}
