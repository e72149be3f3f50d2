// Package bytecode defines the Slang bytecode instruction set: the opcode
// table, a decoder, an assembler and a disassembler.
//
// An instruction stream is a flat byte sequence with no header. Every
// instruction starts with a one-byte opcode. Opcodes at or above HasArg take
// an operand, whose shape depends on the opcode:
//
//   - a single byte (ALLOC, EXTEND, JUMPF, JUMPB, SCPGET, SCPSET, CALL)
//   - a length byte followed by that many payload bytes (CONST)
//
// BLTIN is the exception below HasArg: it is followed by a NUL-terminated
// builtin name.
//
// # Blocks
//
// CODE, IF and ELSE open a block that is closed by the matching END. Blocks
// nest. Scanning for the matching END skips operands by their shape, so
// payload bytes that happen to equal 0x01 never close a block early.
//
//	CODE
//	    CONST 0x06: "hello"
//	    BLTIN: println
//	    CALL 1
//	END
//	EXEC
//
// Use Builder to assemble streams and Disassemble to list them.
package bytecode
