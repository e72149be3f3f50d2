package bytecode

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of an instruction stream.
func Disassemble(code []byte) string {
	return DisassembleWithName(code, "")
}

// DisassembleWithName returns a human-readable listing with a name header.
func DisassembleWithName(code []byte, name string) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; Slang Bytecode, %d bytes\n", len(code)))

	for _, line := range DisassembleToLines(code) {
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return sb.String()
}

// DisassembleToLines returns the disassembly as a slice of lines, one per
// instruction, indented by block depth. Unknown bytes are listed and skipped;
// a truncated tail ends the listing.
func DisassembleToLines(code []byte) []string {
	var lines []string
	depth := 0
	offset := 0
	for offset < len(code) {
		in, err := Decode(code, offset)
		if err != nil {
			if errors.Is(err, ErrUnknownOpcode) {
				lines = append(lines, fmt.Sprintf("%04X  %sUNKNOWN: %02x", offset, indent(depth), code[offset]))
				offset++
				continue
			}
			lines = append(lines, fmt.Sprintf("%04X  %s<truncated %s>", offset, indent(depth), Opcode(code[offset])))
			break
		}

		if in.Op == OpEnd && depth > 0 {
			depth--
		}
		lines = append(lines, fmt.Sprintf("%04X  %s%s", offset, indent(depth), FormatInstruction(in)))
		if in.Op.OpensBlock() {
			depth++
		}
		offset = in.Next()
	}
	return lines
}

// DisassembleInstruction returns a human-readable representation of the
// instruction at offset.
func DisassembleInstruction(code []byte, offset int) string {
	in, err := Decode(code, offset)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return FormatInstruction(in)
}

// FormatInstruction formats a decoded instruction.
func FormatInstruction(in Instruction) string {
	info := GetOpcodeInfo(in.Op)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("0x%02x %s", byte(in.Op), info.Name))

	switch info.Operand {
	case OperandByte:
		sb.WriteString(fmt.Sprintf("(%d|0x%02x)", in.Arg, in.Arg))
		if in.Op == OpJumpF || in.Op == OpJumpB {
			target := in.Next() + int(in.Arg)
			if in.Op == OpJumpB {
				target = in.Next() - int(in.Arg)
			}
			sb.WriteString(fmt.Sprintf(" -> %04X", target))
		}
	case OperandLengthPrefix:
		sb.WriteString(fmt.Sprintf("(%d|0x%02x): 0x%s | %s", in.Arg, in.Arg, hex.EncodeToString(in.Payload), printable(in.Payload)))
	case OperandNulTerminated:
		sb.WriteString(": ")
		sb.WriteString(string(in.Payload))
	}

	if info.Opens {
		sb.WriteString(":")
	}
	return sb.String()
}

// InstructionCount returns the number of decodable instructions in code.
func InstructionCount(code []byte) int {
	count := 0
	offset := 0
	for offset < len(code) {
		in, err := Decode(code, offset)
		if err != nil && !errors.Is(err, ErrUnknownOpcode) {
			break
		}
		offset += in.Len
		count++
	}
	return count
}

func printable(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c >= 32 && c < 127 {
			sb.WriteByte(c)
		} else {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

func indent(depth int) string {
	return strings.Repeat("\t", depth)
}
