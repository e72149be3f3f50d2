package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
	}
}

func TestOpcodeCount(t *testing.T) {
	if got := OpcodeCount(); got != 48 {
		t.Errorf("OpcodeCount() = %d, want 48", got)
	}
	if got := len(AllOpcodes()); got != OpcodeCount() {
		t.Errorf("len(AllOpcodes()) = %d, want %d", got, OpcodeCount())
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpNop, "NOP"},
		{OpEnd, "END"},
		{OpRet, "RET"},
		{OpBltin, "BLTIN"},
		{OpCode, "CODE"},
		{OpCtos, "CTOS"},
		{OpXor, "XOR"},
		{OpIsNot, "ISNOT"},
		{OpExec, "EXEC"},
		{OpConst, "CONST"},
		{OpCall, "CALL"},
	}

	for _, tt := range tests {
		got := tt.op.String()
		if got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	op := Opcode(0xEE)
	if got := op.String(); got != "UNKNOWN(0xee)" {
		t.Errorf("unknown opcode String() = %q", got)
	}
	if op.Known() {
		t.Error("0xEE should not be known")
	}
}

func TestOpcodeClasses(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		var want Class
		switch {
		case op >= 0x10 && op < 0x20:
			want = ClassUnary
		case op >= 0x20 && op < 0x30:
			want = ClassBinary
		case op >= 0x30 && op < 0x40:
			want = ClassComparison
		case op >= 0x40 && op < 0x50:
			want = ClassFlow
		case op >= HasArg:
			want = ClassWithArg
		default:
			want = ClassStandalone
		}
		if info.Class != want {
			t.Errorf("%s class = %s, want %s", op, info.Class, want)
		}
	}
}

func TestOperandShapes(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		switch {
		case op == OpBltin:
			if info.Operand != OperandNulTerminated {
				t.Errorf("BLTIN operand = %d", info.Operand)
			}
		case op == OpConst:
			if info.Operand != OperandLengthPrefix {
				t.Errorf("CONST operand = %d", info.Operand)
			}
		case op >= HasArg:
			if info.Operand != OperandByte {
				t.Errorf("%s operand = %d, want byte", op, info.Operand)
			}
		default:
			if info.Operand != OperandNone {
				t.Errorf("%s operand = %d, want none", op, info.Operand)
			}
		}
	}
}

func TestOpensBlock(t *testing.T) {
	openers := map[Opcode]bool{OpCode: true, OpIf: true, OpElse: true}
	for _, op := range AllOpcodes() {
		if op.OpensBlock() != openers[op] {
			t.Errorf("%s.OpensBlock() = %v", op, op.OpensBlock())
		}
	}
}
