package vm

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/chazu/sbc/pkg/bytecode"
)

// unaryOp applies a unary opcode to v.
func unaryOp(op bytecode.Opcode, v Value) (Value, error) {
	switch op {
	case bytecode.OpNot:
		return Bool(!v.Truthy()), nil

	case bytecode.OpAtoi:
		if v.tag != TagBytes {
			return Value{}, fmt.Errorf("%w: ATOI of %s", ErrTypeMismatch, v.tag)
		}
		n, err := strconv.ParseInt(v.Str(), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", ErrTypeMismatch, err)
		}
		return Int(TagI64, n), nil

	case bytecode.OpInv:
		if b, ok := v.AsBool(); ok {
			return Bool(!b), nil
		}
	}

	x, err := asInteger(v)
	if err != nil {
		return Value{}, err
	}

	switch op {
	case bytecode.OpCeil, bytecode.OpFlr, bytecode.OpRnd:
		// integers are already integral
		return x, nil
	case bytecode.OpItoa:
		if x.tag.Width() == 128 {
			return Value{}, fmt.Errorf("%w: ITOA of %s", ErrUnsupported, x.tag)
		}
		if x.tag.Signed() {
			return String(strconv.FormatInt(int64(x.lo), 10)), nil
		}
		return String(strconv.FormatUint(x.lo, 10)), nil
	case bytecode.OpCtos:
		return String(string([]byte{byte(x.lo)})), nil
	}

	if x.tag.Width() == 128 {
		return Value{}, fmt.Errorf("%w: %s on %s", ErrUnsupported, op, x.tag)
	}

	switch op {
	case bytecode.OpPos:
		if x.tag.Signed() && int64(x.lo) < 0 {
			return Uint(x.tag, -x.lo), nil
		}
		return x, nil
	case bytecode.OpNeg:
		return Uint(x.tag, -x.lo), nil
	case bytecode.OpInv:
		return Uint(x.tag, ^x.lo), nil
	}
	return Value{}, fmt.Errorf("%w: %s", ErrUnimplementedOpcode, op)
}

// binaryOp computes a op b. The result takes a's width and signedness; b is
// converted to it first.
func binaryOp(op bytecode.Opcode, a, b Value) (Value, error) {
	switch op {
	case bytecode.OpAnd, bytecode.OpOr, bytecode.OpXor:
		ab, aok := a.AsBool()
		bb, bok := b.AsBool()
		if aok && bok {
			switch op {
			case bytecode.OpAnd:
				return Bool(ab && bb), nil
			case bytecode.OpOr:
				return Bool(ab || bb), nil
			default:
				return Bool(ab != bb), nil
			}
		}
	}

	x, err := asInteger(a)
	if err != nil {
		return Value{}, err
	}
	y, err := asInteger(b)
	if err != nil {
		return Value{}, err
	}
	if x.tag.Width() == 128 || y.tag.Width() == 128 {
		return Value{}, fmt.Errorf("%w: %s on %s, %s", ErrUnsupported, op, x.tag, y.tag)
	}

	tag := x.tag
	yl := normalize(tag, y.lo)
	signed := tag.Signed()

	var r uint64
	switch op {
	case bytecode.OpAdd:
		r = x.lo + yl
	case bytecode.OpSub:
		r = x.lo - yl
	case bytecode.OpMul:
		r = x.lo * yl
	case bytecode.OpDiv, bytecode.OpIdiv, bytecode.OpMod:
		if yl == 0 {
			return Value{}, ErrDivisionByZero
		}
		if signed {
			r = uint64(signedDivide(op, int64(x.lo), int64(yl)))
		} else {
			switch op {
			case bytecode.OpMod:
				r = x.lo % yl
			default:
				r = x.lo / yl
			}
		}
	case bytecode.OpPow:
		if signed && int64(yl) < 0 {
			return Value{}, fmt.Errorf("%w: negative exponent", ErrUnsupported)
		}
		r = power(x.lo, yl)
	case bytecode.OpShl, bytecode.OpShr:
		if signed && int64(yl) < 0 {
			return Value{}, fmt.Errorf("%w: negative shift count", ErrTypeMismatch)
		}
		switch {
		case op == bytecode.OpShl:
			r = x.lo << yl
		case signed:
			r = uint64(int64(x.lo) >> yl)
		default:
			r = x.lo >> yl
		}
	case bytecode.OpAnd:
		r = x.lo & yl
	case bytecode.OpOr:
		r = x.lo | yl
	case bytecode.OpXor:
		r = x.lo ^ yl
	default:
		return Value{}, fmt.Errorf("%w: %s", ErrUnimplementedOpcode, op)
	}
	return Uint(tag, r), nil
}

// signedDivide implements DIV (truncating), IDIV (flooring) and MOD
// (remainder with the sign of the divisor).
func signedDivide(op bytecode.Opcode, x, y int64) int64 {
	q := x / y
	m := x % y
	floor := m != 0 && (m < 0) != (y < 0)
	switch op {
	case bytecode.OpDiv:
		return q
	case bytecode.OpIdiv:
		if floor {
			q--
		}
		return q
	default:
		if floor {
			m += y
		}
		return m
	}
}

func power(base, exp uint64) uint64 {
	r := uint64(1)
	for exp > 0 {
		if exp&1 == 1 {
			r *= base
		}
		base *= base
		exp >>= 1
	}
	return r
}

// compareOp evaluates a comparison opcode on a and b.
func compareOp(op bytecode.Opcode, a, b Value) (Value, error) {
	switch op {
	case bytecode.OpIs:
		return Bool(Identical(a, b)), nil
	case bytecode.OpIsNot:
		return Bool(!Identical(a, b)), nil
	}

	c, err := compareValues(a, b, op == bytecode.OpEq || op == bytecode.OpNe)
	if err != nil {
		return Value{}, err
	}

	switch op {
	case bytecode.OpEq:
		return Bool(c == 0), nil
	case bytecode.OpNe:
		return Bool(c != 0), nil
	case bytecode.OpLt:
		return Bool(c < 0), nil
	case bytecode.OpGt:
		return Bool(c > 0), nil
	case bytecode.OpLe:
		return Bool(c <= 0), nil
	case bytecode.OpGe:
		return Bool(c >= 0), nil
	}
	return Value{}, fmt.Errorf("%w: %s", ErrUnimplementedOpcode, op)
}

// compareValues orders a and b. Two raw payloads compare bytewise. Booleans
// only support equality, and are unequal to anything else. Otherwise both
// sides must be integers, compared by mathematical value regardless of width
// and signedness.
func compareValues(a, b Value, equality bool) (int, error) {
	if a.tag == TagBytes && b.tag == TagBytes {
		return bytes.Compare(a.data, b.data), nil
	}

	ab, aok := a.AsBool()
	bb, bok := b.AsBool()
	if aok || bok {
		if !equality {
			return 0, fmt.Errorf("%w: cannot order %s and %s", ErrTypeMismatch, a.tag, b.tag)
		}
		// a boolean never equals a non-boolean
		if aok && bok && ab == bb {
			return 0, nil
		}
		return 1, nil
	}

	x, err := asInteger(a)
	if err != nil {
		return 0, err
	}
	y, err := asInteger(b)
	if err != nil {
		return 0, err
	}
	if x.tag.Width() == 128 || y.tag.Width() == 128 {
		if !equality {
			return 0, fmt.Errorf("%w: ordering %s and %s", ErrUnsupported, x.tag, y.tag)
		}
		if x.lo == y.lo && x.hi == y.hi {
			return 0, nil
		}
		return 1, nil
	}
	return compareInts(x, y), nil
}

func compareInts(x, y Value) int {
	xs, ys := x.tag.Signed(), y.tag.Signed()
	switch {
	case xs && ys:
		return cmp64(int64(x.lo) < int64(y.lo), int64(x.lo) > int64(y.lo))
	case !xs && !ys:
		return cmp64(x.lo < y.lo, x.lo > y.lo)
	case xs:
		if int64(x.lo) < 0 {
			return -1
		}
		return cmp64(x.lo < y.lo, x.lo > y.lo)
	default:
		if int64(y.lo) < 0 {
			return 1
		}
		return cmp64(x.lo < y.lo, x.lo > y.lo)
	}
}

func cmp64(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}
