package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by class for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Standalone (0x00-0x0F)
	// ========================================================================

	OpNop   Opcode = 0x00 // No operation
	OpEnd   Opcode = 0x01 // End of block
	OpPop   Opcode = 0x02 // Pop top of stack
	OpRet   Opcode = 0x03 // Return top of stack
	OpBltin Opcode = 0x04 // Push builtin: OpBltin <name...> 0x00
	OpCode  Opcode = 0x05 // Begin code object, closed by the matching OpEnd

	// ========================================================================
	// Unary (0x10-0x1F)
	// ========================================================================

	OpPos  Opcode = 0x10 // Absolute value
	OpNeg  Opcode = 0x11 // Negate
	OpNot  Opcode = 0x12 // Logical not
	OpInv  Opcode = 0x13 // Bitwise invert
	OpAtoi Opcode = 0x14 // Parse decimal string to integer
	OpItoa Opcode = 0x15 // Format integer as decimal string
	OpItof Opcode = 0x16 // Integer to float
	OpCeil Opcode = 0x17 // Round up
	OpFlr  Opcode = 0x18 // Round down
	OpRnd  Opcode = 0x19 // Round to nearest
	OpCtos Opcode = 0x1A // Character to string

	// ========================================================================
	// Binary (0x20-0x2F)
	// ========================================================================

	OpAdd  Opcode = 0x20
	OpSub  Opcode = 0x21
	OpMul  Opcode = 0x22
	OpDiv  Opcode = 0x23
	OpIdiv Opcode = 0x24
	OpMod  Opcode = 0x25
	OpPow  Opcode = 0x26
	OpShl  Opcode = 0x27
	OpShr  Opcode = 0x28
	OpAnd  Opcode = 0x29
	OpOr   Opcode = 0x2A
	OpXor  Opcode = 0x2B

	// ========================================================================
	// Comparison (0x30-0x3F)
	// ========================================================================

	OpEq    Opcode = 0x30
	OpNe    Opcode = 0x31
	OpLt    Opcode = 0x32
	OpGt    Opcode = 0x33
	OpLe    Opcode = 0x34
	OpGe    Opcode = 0x35
	OpIs    Opcode = 0x36
	OpIsNot Opcode = 0x37

	// ========================================================================
	// Flow control (0x40-0x4F)
	// ========================================================================

	OpIf   Opcode = 0x40 // Conditional block, closed by the matching OpEnd
	OpElse Opcode = 0x41 // Alternative block, closed by the matching OpEnd
	OpExec Opcode = 0x42 // Pop code object and run it

	// ========================================================================
	// With argument (0xA0-0xAF)
	// ========================================================================

	OpAlloc  Opcode = 0xA0 // Limit scope: OpAlloc <slots:u8>
	OpExtend Opcode = 0xA1 // Grow scope: OpExtend <slots:u8>
	OpConst  Opcode = 0xA2 // Push payload: OpConst <len:u8> <payload...>
	OpJumpF  Opcode = 0xA3 // Jump forward: OpJumpF <delta:u8>
	OpJumpB  Opcode = 0xA4 // Jump backward: OpJumpB <delta:u8>
	OpScpGet Opcode = 0xA5 // Push scope slot: OpScpGet <slot:u8>
	OpScpSet Opcode = 0xA6 // Pop into scope slot: OpScpSet <slot:u8>
	OpCall   Opcode = 0xA7 // Call builtin: OpCall <argc:u8>
)

// HasArg is the first opcode of the with-argument range. It is kept for
// readers of the wire format only; operand shapes come from the opcode table.
const HasArg Opcode = 0xA0

// Class groups opcodes by how they interact with the stack.
type Class uint8

const (
	ClassStandalone Class = iota
	ClassUnary
	ClassBinary
	ClassComparison
	ClassFlow
	ClassWithArg
)

func (c Class) String() string {
	switch c {
	case ClassStandalone:
		return "standalone"
	case ClassUnary:
		return "unary"
	case ClassBinary:
		return "binary"
	case ClassComparison:
		return "comparison"
	case ClassFlow:
		return "flow"
	case ClassWithArg:
		return "with-argument"
	default:
		return fmt.Sprintf("Class(%d)", c)
	}
}

// Operand describes the bytes that follow an opcode.
type Operand uint8

const (
	OperandNone          Operand = iota // no operand bytes
	OperandByte                         // exactly one byte
	OperandLengthPrefix                 // one length byte, then that many bytes
	OperandNulTerminated                // bytes up to and including a 0x00
)

// OpcodeInfo provides metadata about each opcode for decoding and debugging.
type OpcodeInfo struct {
	Name    string  // Human-readable name
	Class   Class   // Opcode class
	Operand Operand // Operand shape
	Opens   bool    // Opens a block closed by OpEnd
}

// opcodeInfoTable maps opcodes to their metadata. Opcodes missing from the
// table are unknown.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Standalone
	OpNop:   {"NOP", ClassStandalone, OperandNone, false},
	OpEnd:   {"END", ClassStandalone, OperandNone, false},
	OpPop:   {"POP", ClassStandalone, OperandNone, false},
	OpRet:   {"RET", ClassStandalone, OperandNone, false},
	OpBltin: {"BLTIN", ClassStandalone, OperandNulTerminated, false},
	OpCode:  {"CODE", ClassStandalone, OperandNone, true},

	// Unary
	OpPos:  {"POS", ClassUnary, OperandNone, false},
	OpNeg:  {"NEG", ClassUnary, OperandNone, false},
	OpNot:  {"NOT", ClassUnary, OperandNone, false},
	OpInv:  {"INV", ClassUnary, OperandNone, false},
	OpAtoi: {"ATOI", ClassUnary, OperandNone, false},
	OpItoa: {"ITOA", ClassUnary, OperandNone, false},
	OpItof: {"ITOF", ClassUnary, OperandNone, false},
	OpCeil: {"CEIL", ClassUnary, OperandNone, false},
	OpFlr:  {"FLR", ClassUnary, OperandNone, false},
	OpRnd:  {"RND", ClassUnary, OperandNone, false},
	OpCtos: {"CTOS", ClassUnary, OperandNone, false},

	// Binary
	OpAdd:  {"ADD", ClassBinary, OperandNone, false},
	OpSub:  {"SUB", ClassBinary, OperandNone, false},
	OpMul:  {"MUL", ClassBinary, OperandNone, false},
	OpDiv:  {"DIV", ClassBinary, OperandNone, false},
	OpIdiv: {"IDIV", ClassBinary, OperandNone, false},
	OpMod:  {"MOD", ClassBinary, OperandNone, false},
	OpPow:  {"POW", ClassBinary, OperandNone, false},
	OpShl:  {"SHL", ClassBinary, OperandNone, false},
	OpShr:  {"SHR", ClassBinary, OperandNone, false},
	OpAnd:  {"AND", ClassBinary, OperandNone, false},
	OpOr:   {"OR", ClassBinary, OperandNone, false},
	OpXor:  {"XOR", ClassBinary, OperandNone, false},

	// Comparison
	OpEq:    {"EQ", ClassComparison, OperandNone, false},
	OpNe:    {"NE", ClassComparison, OperandNone, false},
	OpLt:    {"LT", ClassComparison, OperandNone, false},
	OpGt:    {"GT", ClassComparison, OperandNone, false},
	OpLe:    {"LE", ClassComparison, OperandNone, false},
	OpGe:    {"GE", ClassComparison, OperandNone, false},
	OpIs:    {"IS", ClassComparison, OperandNone, false},
	OpIsNot: {"ISNOT", ClassComparison, OperandNone, false},

	// Flow control
	OpIf:   {"IF", ClassFlow, OperandNone, true},
	OpElse: {"ELSE", ClassFlow, OperandNone, true},
	OpExec: {"EXEC", ClassFlow, OperandNone, false},

	// With argument
	OpAlloc:  {"ALLOC", ClassWithArg, OperandByte, false},
	OpExtend: {"EXTEND", ClassWithArg, OperandByte, false},
	OpConst:  {"CONST", ClassWithArg, OperandLengthPrefix, false},
	OpJumpF:  {"JUMPF", ClassWithArg, OperandByte, false},
	OpJumpB:  {"JUMPB", ClassWithArg, OperandByte, false},
	OpScpGet: {"SCPGET", ClassWithArg, OperandByte, false},
	OpScpSet: {"SCPSET", ClassWithArg, OperandByte, false},
	OpCall:   {"CALL", ClassWithArg, OperandByte, false},
}

// Lookup returns metadata for an opcode and whether it is defined.
func Lookup(op Opcode) (OpcodeInfo, bool) {
	info, ok := opcodeInfoTable[op]
	return info, ok
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo with name "UNKNOWN(0xNN)" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Known reports whether the opcode is in the table.
func (op Opcode) Known() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// OpensBlock reports whether the opcode increments block nesting depth.
func (op Opcode) OpensBlock() bool {
	return GetOpcodeInfo(op).Opens
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
