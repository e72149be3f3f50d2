package bytecode

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOpcode is returned when a byte is not in the opcode table.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrTruncated is returned when an operand runs past the end of the code.
	ErrTruncated = errors.New("truncated instruction")

	// ErrUnterminated is returned when a block has no matching OpEnd.
	ErrUnterminated = errors.New("unterminated block")
)

// Instruction is a decoded instruction. Payload aliases the code it was
// decoded from.
type Instruction struct {
	Op      Opcode
	Offset  int    // offset of the opcode byte
	Len     int    // opcode plus operand bytes
	Arg     byte   // single-byte operand, or the CONST length
	Payload []byte // CONST payload or BLTIN name (without the NUL)
}

// Next returns the offset just past the instruction.
func (in Instruction) Next() int {
	return in.Offset + in.Len
}

// Decode decodes the instruction at offset pc.
func Decode(code []byte, pc int) (Instruction, error) {
	if pc < 0 || pc >= len(code) {
		return Instruction{}, fmt.Errorf("%w: offset %d outside code of length %d", ErrTruncated, pc, len(code))
	}

	op := Opcode(code[pc])
	info, ok := opcodeInfoTable[op]
	if !ok {
		return Instruction{Op: op, Offset: pc, Len: 1}, fmt.Errorf("%w: 0x%02x at offset %d", ErrUnknownOpcode, byte(op), pc)
	}

	in := Instruction{Op: op, Offset: pc, Len: 1}
	switch info.Operand {
	case OperandNone:

	case OperandByte:
		if pc+1 >= len(code) {
			return in, fmt.Errorf("%w: %s at offset %d missing operand", ErrTruncated, info.Name, pc)
		}
		in.Arg = code[pc+1]
		in.Len = 2

	case OperandLengthPrefix:
		if pc+1 >= len(code) {
			return in, fmt.Errorf("%w: %s at offset %d missing length", ErrTruncated, info.Name, pc)
		}
		n := int(code[pc+1])
		start := pc + 2
		if start+n > len(code) {
			return in, fmt.Errorf("%w: %s at offset %d needs %d payload bytes, %d available",
				ErrTruncated, info.Name, pc, n, len(code)-start)
		}
		in.Arg = code[pc+1]
		in.Payload = code[start : start+n]
		in.Len = 2 + n

	case OperandNulTerminated:
		end := pc + 1
		for end < len(code) && code[end] != 0 {
			end++
		}
		if end >= len(code) {
			return in, fmt.Errorf("%w: %s at offset %d has no NUL terminator", ErrTruncated, info.Name, pc)
		}
		in.Payload = code[pc+1 : end]
		in.Len = end - pc + 1
	}

	return in, nil
}

// BlockEnd scans the block opened just before offset start and returns the
// offset of its matching OpEnd. Operands are skipped by shape so that payload
// bytes are never mistaken for opcodes.
func BlockEnd(code []byte, start int) (int, error) {
	depth := 1
	pc := start
	for pc < len(code) {
		in, err := Decode(code, pc)
		if err != nil {
			return 0, err
		}
		switch {
		case in.Op == OpEnd:
			depth--
			if depth == 0 {
				return pc, nil
			}
		case in.Op.OpensBlock():
			depth++
		}
		pc = in.Next()
	}
	return 0, fmt.Errorf("%w: block starting at offset %d", ErrUnterminated, start)
}
