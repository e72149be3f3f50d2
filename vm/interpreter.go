package vm

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/sbc/pkg/bytecode"
)

// run is the state shared by all invocations of one Machine.Run.
type run struct {
	m     *Machine
	steps int
}

// frame is a single invocation: its own cursor, operand stack and scope.
type frame struct {
	run   *run
	code  []byte
	pc    int
	depth int
	stack *stack
	scope *scope

	// runtime block bookkeeping for IF/ELSE
	blocks []block // entered blocks, innermost last
	sawIf  bool    // an IF has executed in this invocation
	lastIf bool    // whether the most recent IF was taken
}

// block is an entered IF or ELSE body spanning [start, end], end being the
// offset of its END.
type block struct {
	start, end int
	isIf       bool
}

// invoke executes code in a fresh frame. Faults from nested invocations are
// returned unchanged so they keep their own location.
func (r *run) invoke(code []byte, depth int) (*Result, error) {
	f := &frame{
		run:   r,
		code:  code,
		depth: depth,
		stack: newStack(r.m.stackLimit),
		scope: newScope(),
	}
	return f.loop()
}

func (f *frame) loop() (*Result, error) {
	m := f.run.m
	tracing := m.trace && m.log.AllowLevel(commonlog.Debug)

	for f.pc < len(f.code) {
		in, err := bytecode.Decode(f.code, f.pc)
		if err != nil {
			return nil, f.fault(in.Op, f.pc, decodeError(err))
		}
		f.pc = in.Next()
		f.run.steps++

		if in.Op == bytecode.OpRet {
			v, err := f.stack.peek()
			if err != nil {
				return nil, f.fault(in.Op, in.Offset, err)
			}
			if tracing {
				f.trace(in)
			}
			return &Result{Value: v, State: StateReturned, StackDepth: f.stack.len()}, nil
		}

		if err := f.step(in); err != nil {
			if _, nested := AsFault(err); nested {
				return nil, err
			}
			return nil, f.fault(in.Op, in.Offset, err)
		}

		if tracing {
			f.trace(in)
		}
	}

	return &Result{Value: Null, State: StateExhausted, StackDepth: f.stack.len()}, nil
}

// step executes one decoded instruction. The cursor already points past it.
func (f *frame) step(in bytecode.Instruction) error {
	info := bytecode.GetOpcodeInfo(in.Op)

	switch info.Class {
	case bytecode.ClassUnary:
		if in.Op == bytecode.OpItof {
			return fmt.Errorf("%w: %s", ErrUnimplementedOpcode, in.Op)
		}
		v, err := f.stack.peek()
		if err != nil {
			return err
		}
		r, err := unaryOp(in.Op, v)
		if err != nil {
			return err
		}
		return f.stack.replace(r)

	case bytecode.ClassBinary, bytecode.ClassComparison:
		b, err := f.stack.pop()
		if err != nil {
			return err
		}
		a, err := f.stack.peek()
		if err != nil {
			return err
		}
		var r Value
		if info.Class == bytecode.ClassBinary {
			r, err = binaryOp(in.Op, a, b)
		} else {
			r, err = compareOp(in.Op, a, b)
		}
		if err != nil {
			return err
		}
		return f.stack.replace(r)
	}

	switch in.Op {
	// ============ Standalone ============
	case bytecode.OpNop:

	case bytecode.OpEnd:
		if len(f.blocks) > 0 {
			f.leaveBlock()
		}

	case bytecode.OpPop:
		_, err := f.stack.pop()
		return err

	case bytecode.OpBltin:
		name := string(in.Payload)
		b, ok := f.run.m.registry.Lookup(name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownBuiltin, name)
		}
		return f.stack.push(BuiltinValue(b))

	case bytecode.OpCode:
		obj, next, err := ExtractCode(f.code, f.pc)
		if err != nil {
			return decodeError(err)
		}
		f.pc = next
		if err := f.stack.push(Uint(TagU32, uint64(obj.Len()))); err != nil {
			return err
		}
		return f.stack.push(CodeValue(obj))

	// ============ Flow control ============
	case bytecode.OpIf:
		if !f.run.m.conditionals {
			return fmt.Errorf("%w: %s", ErrUnimplementedOpcode, in.Op)
		}
		cond, err := f.stack.pop()
		if err != nil {
			return err
		}
		return f.enterBlock(cond.Truthy(), true)

	case bytecode.OpElse:
		if !f.run.m.conditionals {
			return fmt.Errorf("%w: %s", ErrUnimplementedOpcode, in.Op)
		}
		if !f.sawIf {
			return fmt.Errorf("%w: ELSE without a preceding IF", ErrMalformedStream)
		}
		taken := !f.lastIf
		f.lastIf = true
		return f.enterBlock(taken, false)

	case bytecode.OpExec:
		return f.exec()

	// ============ With argument ============
	case bytecode.OpAlloc:
		f.scope.alloc(in.Arg)

	case bytecode.OpExtend:
		f.scope.extend(in.Arg)

	case bytecode.OpConst:
		return f.stack.push(Bytes(in.Payload, Borrowed))

	case bytecode.OpJumpF:
		return f.jump(f.pc + int(in.Arg))

	case bytecode.OpJumpB:
		return f.jump(f.pc - int(in.Arg))

	case bytecode.OpScpGet:
		v, err := f.scope.get(in.Arg)
		if err != nil {
			return err
		}
		return f.stack.push(v)

	case bytecode.OpScpSet:
		v, err := f.stack.pop()
		if err != nil {
			return err
		}
		return f.scope.set(in.Arg, v)

	case bytecode.OpCall:
		return f.call(int(in.Arg))

	default:
		return fmt.Errorf("%w: %s", ErrUnimplementedOpcode, in.Op)
	}
	return nil
}

// enterBlock continues into the block that starts at the cursor, or skips
// past its matching END.
func (f *frame) enterBlock(taken, isIf bool) error {
	if isIf {
		f.sawIf = true
		f.lastIf = taken
	}
	end, err := bytecode.BlockEnd(f.code, f.pc)
	if err != nil {
		return decodeError(err)
	}
	if taken {
		f.blocks = append(f.blocks, block{start: f.pc, end: end, isIf: isIf})
		return nil
	}
	f.pc = end + 1
	return nil
}

// leaveBlock closes the innermost entered block. Closing a taken IF marks
// it as the most recent IF so that a following ELSE is skipped.
func (f *frame) leaveBlock() {
	n := len(f.blocks)
	if f.blocks[n-1].isIf {
		f.lastIf = true
	}
	f.blocks = f.blocks[:n-1]
}

// jump moves the cursor to target, leaving every entered block whose body
// does not contain it.
func (f *frame) jump(target int) error {
	if target < 0 || target > len(f.code) {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrBadJump, target, len(f.code))
	}
	for n := len(f.blocks); n > 0; n = len(f.blocks) {
		b := f.blocks[n-1]
		if target >= b.start && target <= b.end {
			break
		}
		f.leaveBlock()
	}
	f.pc = target
	return nil
}

// exec pops a code object reference and its length, runs the code in a
// nested invocation and pushes the value it yields.
func (f *frame) exec() error {
	ref, err := f.stack.pop()
	if err != nil {
		return err
	}
	if ref.tag != TagCode || ref.code == nil {
		return fmt.Errorf("%w: EXEC of %s", ErrNotCallable, ref.tag)
	}
	lv, err := f.stack.pop()
	if err != nil {
		return err
	}
	lenV, err := asInteger(lv)
	if err != nil {
		return err
	}
	n, ok := lenV.Int64()
	if !ok || (lenV.tag.Signed() && n < 0) || uint64(n) > uint64(ref.code.Len()) {
		return fmt.Errorf("%w: code length %s for a %d-byte code object", ErrTypeMismatch, lenV, ref.code.Len())
	}

	if f.depth+1 > f.run.m.maxDepth {
		return fmt.Errorf("%w: %d", ErrRecursionDepth, f.run.m.maxDepth)
	}

	res, err := f.run.invoke(ref.code.code[:n], f.depth+1)
	if err != nil {
		return err
	}
	return f.stack.push(res.Value)
}

// call pops a builtin handle and argc arguments, in stack order, and pushes
// the builtin's result. The handle is normally on top of the arguments; when
// the top is not a builtin the handle is taken from just below them, so
// BLTIN may be emitted before or after the arguments. A builtin handle on
// top is always the one called: with BLTIN emitted first, a last argument
// that is itself a builtin handle is called in its place.
func (f *frame) call(argc int) error {
	handle, err := f.stack.peek()
	if err != nil {
		return err
	}
	var fv Value
	if handle.tag == TagBuiltin {
		fv, _ = f.stack.pop()
	} else {
		if fv, err = f.stack.remove(argc); err != nil {
			return err
		}
	}
	if fv.tag != TagBuiltin || fv.fn == nil {
		return fmt.Errorf("%w: CALL of %s", ErrNotCallable, fv.tag)
	}

	args := make([]Value, argc)
	for i := range args {
		if args[i], err = f.stack.pop(); err != nil {
			return err
		}
	}

	res, err := fv.fn.Fn(args)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBuiltinFailed, fv.fn.Name, err)
	}
	return f.stack.push(res)
}

func (f *frame) fault(op bytecode.Opcode, offset int, err error) *Fault {
	return &Fault{Op: op, Offset: offset, Depth: f.depth, Err: err}
}

// trace logs the instruction just executed and the resulting top of stack.
func (f *frame) trace(in bytecode.Instruction) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s [%04X %s", f.run.m.shortID(), in.Offset, bytecode.FormatInstruction(in)))
	if f.depth > 0 {
		sb.WriteString(fmt.Sprintf(" depth=%d", f.depth))
	}
	sb.WriteString(fmt.Sprintf(" sp=%d", f.stack.len()))
	if top, err := f.stack.peek(); err == nil {
		sb.WriteString(fmt.Sprintf(", TOS = %s", top))
	}
	sb.WriteString("]")
	f.run.m.log.Debug(sb.String())
}
