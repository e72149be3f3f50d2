package vm

import "github.com/chazu/sbc/pkg/bytecode"

// CodeObject is an extracted, immutable instruction buffer. A Value holding
// a CodeObject owns it; invocations through OpExec only borrow the buffer.
type CodeObject struct {
	code []byte
}

// NewCodeObject copies code into a new code object.
func NewCodeObject(code []byte) *CodeObject {
	buf := make([]byte, len(code))
	copy(buf, code)
	return &CodeObject{code: buf}
}

// Len returns the buffer length in bytes.
func (c *CodeObject) Len() int {
	return len(c.code)
}

// Bytes returns the buffer. It must not be modified.
func (c *CodeObject) Bytes() []byte {
	return c.code
}

// ExtractCode copies the body of the block opened just before offset start,
// up to but excluding its matching END, into a fresh buffer. It returns the
// code object and the offset just past the END. Nested CODE, IF and ELSE
// blocks are copied whole; operands are skipped by shape.
func ExtractCode(code []byte, start int) (*CodeObject, int, error) {
	end, err := bytecode.BlockEnd(code, start)
	if err != nil {
		return nil, 0, err
	}
	return NewCodeObject(code[start:end]), end + 1, nil
}
