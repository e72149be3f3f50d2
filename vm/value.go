package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
)

// Tag identifies what a Value holds.
type Tag uint8

const (
	TagNull Tag = iota
	TagBool
	TagI8
	TagU8
	TagI16
	TagU16
	TagI32
	TagU32
	TagI64
	TagU64
	TagI128
	TagU128
	TagBytes   // variable-length payload (CONST data, strings)
	TagBuiltin // native function handle
	TagCode    // code object reference
)

var tagNames = [...]string{
	TagNull:    "null",
	TagBool:    "bool",
	TagI8:      "i8",
	TagU8:      "u8",
	TagI16:     "i16",
	TagU16:     "u16",
	TagI32:     "i32",
	TagU32:     "u32",
	TagI64:     "i64",
	TagU64:     "u64",
	TagI128:    "i128",
	TagU128:    "u128",
	TagBytes:   "bytes",
	TagBuiltin: "builtin",
	TagCode:    "code",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(%d)", t)
}

// IsInteger reports whether the tag is one of the integer tags.
func (t Tag) IsInteger() bool {
	return t >= TagI8 && t <= TagU128
}

// Signed reports whether an integer tag is signed.
func (t Tag) Signed() bool {
	switch t {
	case TagI8, TagI16, TagI32, TagI64, TagI128:
		return true
	}
	return false
}

// Width returns the bit width of an integer tag, or 0.
func (t Tag) Width() int {
	switch t {
	case TagI8, TagU8:
		return 8
	case TagI16, TagU16:
		return 16
	case TagI32, TagU32:
		return 32
	case TagI64, TagU64:
		return 64
	case TagI128, TagU128:
		return 128
	}
	return 0
}

// IntTag returns the integer tag for a width in bits and signedness.
func IntTag(width int, signed bool) (Tag, bool) {
	var t Tag
	switch width {
	case 8:
		t = TagU8
	case 16:
		t = TagU16
	case 32:
		t = TagU32
	case 64:
		t = TagU64
	case 128:
		t = TagU128
	default:
		return TagNull, false
	}
	if signed {
		t--
	}
	return t, true
}

// Ownership records who is responsible for a Value's payload.
type Ownership uint8

const (
	// Owned payloads were created for this Value.
	Owned Ownership = iota
	// Borrowed payloads alias the instruction stream and must not be modified.
	Borrowed
	// Static payloads belong to a process-lifetime cell (e.g. a builtin's
	// result cell) and must not be modified or released by the receiver.
	Static
)

func (o Ownership) String() string {
	switch o {
	case Owned:
		return "owned"
	case Borrowed:
		return "borrowed"
	case Static:
		return "static"
	default:
		return fmt.Sprintf("Ownership(%d)", o)
	}
}

// Value is the unit of data on the operand stack and in scope slots.
//
// Fixed-width scalars are stored inline in lo (and hi for 128-bit tags),
// normalized to their width: signed values sign-extended, unsigned values
// zero-extended. Variable-length payloads are held by reference.
type Value struct {
	tag  Tag
	own  Ownership
	lo   uint64
	hi   uint64
	data []byte
	fn   *Builtin
	code *CodeObject
}

// Null is the value produced by an invocation that runs off the end of its code.
var Null = Value{}

// Bool returns a boolean Value.
func Bool(b bool) Value {
	v := Value{tag: TagBool}
	if b {
		v.lo = 1
	}
	return v
}

// Int returns an integer Value of the given tag, truncating n to the tag's width.
func Int(tag Tag, n int64) Value {
	return Uint(tag, uint64(n))
}

// Uint returns an integer Value of the given tag from raw bits, truncated to
// the tag's width. For 128-bit tags the high half is the sign or zero
// extension of n.
func Uint(tag Tag, n uint64) Value {
	if !tag.IsInteger() {
		panic(fmt.Sprintf("vm: Uint with non-integer tag %s", tag))
	}
	v := Value{tag: tag, lo: normalize(tag, n)}
	if tag.Width() == 128 && tag.Signed() && int64(n) < 0 {
		v.hi = ^uint64(0)
	}
	return v
}

// Wide returns a 128-bit Value from its halves.
func Wide(tag Tag, lo, hi uint64) Value {
	if tag != TagI128 && tag != TagU128 {
		panic(fmt.Sprintf("vm: Wide with tag %s", tag))
	}
	return Value{tag: tag, lo: lo, hi: hi}
}

// Bytes returns a Value referencing b with the given ownership. The slice is
// not copied.
func Bytes(b []byte, own Ownership) Value {
	return Value{tag: TagBytes, own: own, data: b}
}

// String returns an owned Value holding s as a NUL-terminated string.
func String(s string) Value {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return Value{tag: TagBytes, data: buf}
}

// BuiltinValue wraps a builtin handle.
func BuiltinValue(b *Builtin) Value {
	return Value{tag: TagBuiltin, own: Static, fn: b}
}

// CodeValue wraps a code object reference.
func CodeValue(c *CodeObject) Value {
	return Value{tag: TagCode, code: c}
}

// WithOwnership returns a copy of v carrying ownership o.
func (v Value) WithOwnership(o Ownership) Value {
	v.own = o
	return v
}

// Tag returns the value's tag.
func (v Value) Tag() Tag { return v.tag }

// Ownership returns who owns the value's payload.
func (v Value) Ownership() Ownership { return v.own }

// IsNull reports whether v is the null marker.
func (v Value) IsNull() bool { return v.tag == TagNull }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	if v.tag != TagBool {
		return false, false
	}
	return v.lo != 0, true
}

// Int64 returns the payload of an integer Value up to 64 bits wide,
// interpreted per its signedness.
func (v Value) Int64() (int64, bool) {
	if !v.tag.IsInteger() || v.tag.Width() > 64 {
		return 0, false
	}
	return int64(v.lo), true
}

// Uint64 returns the raw low 64 bits of an integer Value.
func (v Value) Uint64() (uint64, bool) {
	if !v.tag.IsInteger() {
		return 0, false
	}
	return v.lo, true
}

// Halves returns the low and high 64 bits of an integer Value.
func (v Value) Halves() (lo, hi uint64) {
	return v.lo, v.hi
}

// Payload returns the variable-length payload. The caller must not modify
// it unless the Value is Owned.
func (v Value) Payload() []byte {
	return v.data
}

// Str interprets the payload as a NUL-terminated string. A payload without
// a NUL is used whole.
func (v Value) Str() string {
	if i := bytes.IndexByte(v.data, 0); i >= 0 {
		return string(v.data[:i])
	}
	return string(v.data)
}

// Builtin returns the wrapped builtin handle.
func (v Value) Builtin() *Builtin {
	return v.fn
}

// Code returns the wrapped code object.
func (v Value) Code() *CodeObject {
	return v.code
}

// Detach returns a Value whose payload is owned by the result. Borrowed and
// static payloads are copied.
func (v Value) Detach() Value {
	if v.own == Owned || v.data == nil {
		v.own = Owned
		return v
	}
	buf := make([]byte, len(v.data))
	copy(buf, v.data)
	v.data = buf
	v.own = Owned
	return v
}

// Truthy reports the value's truth for conditional execution.
func (v Value) Truthy() bool {
	switch v.tag {
	case TagNull:
		return false
	case TagBytes:
		for _, b := range v.data {
			if b != 0 {
				return true
			}
		}
		return false
	case TagBuiltin, TagCode:
		return true
	default:
		return v.lo != 0 || v.hi != 0
	}
}

// Identical reports whether a and b are the same value: equal tags and the
// same scalar, or the same referenced payload.
func Identical(a, b Value) bool {
	if a.tag != b.tag {
		return false
	}
	switch a.tag {
	case TagNull:
		return true
	case TagBytes:
		if len(a.data) != len(b.data) {
			return false
		}
		return len(a.data) == 0 || &a.data[0] == &b.data[0]
	case TagBuiltin:
		return a.fn == b.fn
	case TagCode:
		return a.code == b.code
	default:
		return a.lo == b.lo && a.hi == b.hi
	}
}

// String formats the value for diagnostics.
func (v Value) String() string {
	switch v.tag {
	case TagNull:
		return "null"
	case TagBool:
		return strconv.FormatBool(v.lo != 0)
	case TagI128, TagU128:
		return fmt.Sprintf("%s(0x%016x%016x)", v.tag, v.hi, v.lo)
	case TagBytes:
		return fmt.Sprintf("bytes[%d](%q)", len(v.data), v.Str())
	case TagBuiltin:
		if v.fn == nil {
			return "builtin(nil)"
		}
		return fmt.Sprintf("builtin(%s)", v.fn.Name)
	case TagCode:
		if v.code == nil {
			return "code(nil)"
		}
		return fmt.Sprintf("code[%d]", v.code.Len())
	}
	if v.tag.Signed() {
		return fmt.Sprintf("%s(%d)", v.tag, int64(v.lo))
	}
	return fmt.Sprintf("%s(%d)", v.tag, v.lo)
}

// normalize truncates n to the tag's width, sign-extending signed tags.
func normalize(tag Tag, n uint64) uint64 {
	switch tag {
	case TagI8:
		return uint64(int64(int8(n)))
	case TagU8:
		return uint64(uint8(n))
	case TagI16:
		return uint64(int64(int16(n)))
	case TagU16:
		return uint64(uint16(n))
	case TagI32:
		return uint64(int64(int32(n)))
	case TagU32:
		return uint64(uint32(n))
	default:
		return n
	}
}

// asInteger returns v as an integer Value. Raw payloads of 1, 2, 4, 8 or 16
// bytes are read as little-endian signed integers of that width.
func asInteger(v Value) (Value, error) {
	if v.tag.IsInteger() {
		return v, nil
	}
	if v.tag != TagBytes {
		return Value{}, fmt.Errorf("%w: %s is not an integer", ErrTypeMismatch, v.tag)
	}
	d := v.data
	switch len(d) {
	case 1:
		return Int(TagI8, int64(int8(d[0]))), nil
	case 2:
		return Int(TagI16, int64(int16(binary.LittleEndian.Uint16(d)))), nil
	case 4:
		return Int(TagI32, int64(int32(binary.LittleEndian.Uint32(d)))), nil
	case 8:
		return Int(TagI64, int64(binary.LittleEndian.Uint64(d))), nil
	case 16:
		return Wide(TagI128, binary.LittleEndian.Uint64(d[:8]), binary.LittleEndian.Uint64(d[8:])), nil
	}
	return Value{}, fmt.Errorf("%w: %d-byte payload is not an integer", ErrTypeMismatch, len(d))
}
