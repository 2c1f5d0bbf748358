package bytecode

import (
	"bufio"
	"io"
	"strconv"
)

// State is one of the VM's three observable run states.
type State int

const (
	Running State = iota
	HaltedOK
	HaltedError
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case HaltedOK:
		return "halted-ok"
	case HaltedError:
		return "halted-error"
	default:
		return "unknown"
	}
}

// defaultMaxVars bounds varres so a runaway program fails with an
// AllocationFailure instead of exhausting host memory. Zero disables the
// ceiling.
const defaultMaxVars = 1 << 24

// VM holds the full mutable state of one program execution: the operand
// stack, the local variable array, the program counter, and the bound
// input/output streams. A VM executes exactly one program for its entire
// lifetime; there is no resumption after it halts.
type VM struct {
	program []byte
	pc      int

	stack []uint64
	vars  []uint64

	in  *bufio.Reader
	out io.Writer

	state State
	err   *RuntimeError

	// MaxVars bounds the local variable array; varres beyond this ceiling
	// fails with AllocationFailure. Zero means unbounded.
	MaxVars int

	// Trace, when set, causes Step to invoke Tracer for every instruction
	// it executes, before mutating state. It is independent of any
	// operational logging a driver layers on top.
	Trace  bool
	Tracer func(pc int, instr Instruction)
}

// New constructs a VM for program, reading from in and writing to out.
// program is not copied; the caller must not mutate it while the VM runs.
func New(program []byte, in io.Reader, out io.Writer) *VM {
	return &VM{
		program: program,
		in:      bufio.NewReader(in),
		out:     out,
		state:   Running,
		MaxVars: defaultMaxVars,
	}
}

// State returns the VM's current observable state.
func (vm *VM) State() State { return vm.state }

// Err returns the runtime error that halted the VM, or nil if it has not
// halted or halted cleanly.
func (vm *VM) Err() *RuntimeError { return vm.err }

// PC returns the current program counter.
func (vm *VM) PC() int { return vm.pc }

// Stack returns a copy of the current operand stack, bottom first. Exposed
// for inspection only; callers cannot mutate VM state through it.
func (vm *VM) Stack() []uint64 {
	out := make([]uint64, len(vm.stack))
	copy(out, vm.stack)
	return out
}

// Vars returns a copy of the current local variable array.
func (vm *VM) Vars() []uint64 {
	out := make([]uint64, len(vm.vars))
	copy(out, vm.vars)
	return out
}

// Snapshot captures the VM's current state for offline inspection. It is not
// a resumption mechanism: the core's state machine has no notion of
// resuming a halted run, and Snapshot does not change that.
type Snapshot struct {
	PC        int       `cbor:"pc"`
	Stack     []uint64  `cbor:"stack"`
	Vars      []uint64  `cbor:"vars"`
	State     State     `cbor:"state"`
	ErrorKind ErrorKind `cbor:"error_kind,omitempty"`
	ErrorPC   int       `cbor:"error_pc,omitempty"`
	HasError  bool      `cbor:"has_error"`
}

// Snapshot returns a point-in-time capture of the VM's state.
func (vm *VM) Snapshot() Snapshot {
	s := Snapshot{
		PC:    vm.pc,
		Stack: vm.Stack(),
		Vars:  vm.Vars(),
		State: vm.state,
	}
	if vm.err != nil {
		s.HasError = true
		s.ErrorKind = vm.err.Kind
		s.ErrorPC = vm.err.PC
	}
	return s
}

// Run executes instructions until the VM halts, either cleanly or with a
// runtime error, and returns that error (nil on a clean halt).
func (vm *VM) Run() error {
	for vm.state == Running {
		if err := vm.Step(); err != nil {
			return err
		}
	}
	if vm.err != nil {
		return vm.err
	}
	return nil
}

// Step executes exactly one instruction (or recognizes a halt condition)
// and returns the runtime error that halted the VM, if any. Calling Step
// after the VM has already halted is a no-op that returns the VM's stored
// error, if any.
func (vm *VM) Step() error {
	if vm.state != Running {
		if vm.err != nil {
			return vm.err
		}
		return nil
	}

	if vm.pc >= len(vm.program) {
		vm.state = HaltedOK
		return nil
	}

	instr, next, decErr := Decode(vm.program, vm.pc)
	if decErr != nil {
		return vm.fail(TruncatedLiteral, vm.pc, decErr)
	}

	if vm.Trace && vm.Tracer != nil {
		vm.Tracer(vm.pc, instr)
	}

	pc := vm.pc
	newPC := next // default advance; overwritten by jump/jcond

	switch instr.Opcode {
	case OpVarSt:
		n, err := vm.popIndex(pc)
		if err != nil {
			return err
		}
		x, err := vm.pop(pc)
		if err != nil {
			return err
		}
		if n >= uint64(len(vm.vars)) {
			return vm.fail(VarIndexOutOfRange, pc, nil)
		}
		vm.vars[n] = x

	case OpVarLd:
		n, err := vm.popIndex(pc)
		if err != nil {
			return err
		}
		if n >= uint64(len(vm.vars)) {
			return vm.fail(VarIndexOutOfRange, pc, nil)
		}
		vm.push(vm.vars[n])

	case OpVarRes:
		n, err := vm.popIndex(pc)
		if err != nil {
			return err
		}
		if vm.MaxVars > 0 && n > uint64(vm.MaxVars)-uint64(len(vm.vars)) {
			return vm.fail(AllocationFailure, pc, nil)
		}
		vm.vars = append(vm.vars, make([]uint64, n)...)

	case OpVarDisc:
		n, err := vm.popIndex(pc)
		if err != nil {
			return err
		}
		if n >= uint64(len(vm.vars)) {
			vm.vars = vm.vars[:0]
		} else {
			vm.vars = vm.vars[:uint64(len(vm.vars))-n]
		}

	case OpNumVars:
		vm.push(uint64(len(vm.vars)))

	case OpPush8, OpPush8S, OpPush16, OpPush16S, OpPush32, OpPush32S, OpPush64:
		vm.push(instr.Literal)

	case OpDup0, OpDup1, OpDup2, OpDup3:
		depth := int(instr.Opcode - OpDup0)
		if len(vm.stack) <= depth {
			return vm.fail(StackUnderflow, pc, nil)
		}
		vm.push(vm.stack[len(vm.stack)-1-depth])

	case OpPop:
		if _, err := vm.pop(pc); err != nil {
			return err
		}

	case OpSwap:
		n := len(vm.stack)
		if n < 2 {
			return vm.fail(StackUnderflow, pc, nil)
		}
		vm.stack[n-1], vm.stack[n-2] = vm.stack[n-2], vm.stack[n-1]

	case OpAdd:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		vm.push(a + b)

	case OpSub:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		vm.push(a - b)

	case OpMul:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		vm.push(a * b)

	case OpMod:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		if b == 0 {
			return vm.fail(DivisionByZero, pc, nil)
		}
		vm.push(a % b)

	case OpDiv:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		if b == 0 {
			return vm.fail(DivisionByZero, pc, nil)
		}
		vm.push(a / b)

	case OpDivS:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		sb := int64(b)
		if sb == 0 {
			return vm.fail(DivisionByZero, pc, nil)
		}
		sa := int64(a)
		if sa == minInt64 && sb == -1 {
			vm.push(uint64(sa))
		} else {
			vm.push(uint64(sa / sb))
		}

	case OpGt:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		vm.pushBool(a > b)

	case OpGtS:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		vm.pushBool(int64(a) > int64(b))

	case OpLt:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		vm.pushBool(a < b)

	case OpLtS:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		vm.pushBool(int64(a) < int64(b))

	case OpGe:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		vm.pushBool(a >= b)

	case OpGeS:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		vm.pushBool(int64(a) >= int64(b))

	case OpLe:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		vm.pushBool(a <= b)

	case OpLeS:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		vm.pushBool(int64(a) <= int64(b))

	case OpEq:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		vm.pushBool(a == b)

	case OpAnd:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		vm.push(a & b)

	case OpOr:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		vm.push(a | b)

	case OpXor:
		a, b, err := vm.pop2(pc)
		if err != nil {
			return err
		}
		vm.push(a ^ b)

	case OpNot:
		a, err := vm.pop(pc)
		if err != nil {
			return err
		}
		vm.pushBool(a == 0)

	case OpInv:
		a, err := vm.pop(pc)
		if err != nil {
			return err
		}
		vm.push(^a)

	case OpJump:
		n, err := vm.pop(pc)
		if err != nil {
			return err
		}
		target, ok := jumpTarget(pc, n, len(vm.program))
		if !ok {
			return vm.fail(JumpOutOfBounds, pc, nil)
		}
		newPC = target

	case OpJCond:
		n, err := vm.pop(pc)
		if err != nil {
			return err
		}
		c, err := vm.pop(pc)
		if err != nil {
			return err
		}
		if c != 0 {
			target, ok := jumpTarget(pc, n, len(vm.program))
			if !ok {
				return vm.fail(JumpOutOfBounds, pc, nil)
			}
			newPC = target
		}

	case OpRead:
		v, err := vm.readToken(pc, false)
		if err != nil {
			return err
		}
		vm.push(v)

	case OpReadS:
		v, err := vm.readToken(pc, true)
		if err != nil {
			return err
		}
		vm.push(v)

	case OpPrint:
		v, err := vm.pop(pc)
		if err != nil {
			return err
		}
		if werr := vm.writeLine(strconv.FormatUint(v, 10)); werr != nil {
			return vm.fail(OutputWriteFailure, pc, werr)
		}

	case OpPrintS:
		v, err := vm.pop(pc)
		if err != nil {
			return err
		}
		if werr := vm.writeLine(strconv.FormatInt(int64(v), 10)); werr != nil {
			return vm.fail(OutputWriteFailure, pc, werr)
		}

	case OpHalt:
		vm.state = HaltedOK
		return nil

	default:
		// Reserved opcode: no-op, PC already advanced to next (pc+1).
	}

	vm.pc = newPC
	if vm.pc >= len(vm.program) {
		vm.state = HaltedOK
	}
	return nil
}

const minInt64 = -1 << 63

// jumpTarget computes (pc+1)+offset and validates it against [0, length].
// Landing exactly on length is a valid clean-halt target, reported via ok.
func jumpTarget(pc int, offset uint64, length int) (int, bool) {
	base := int64(pc) + 1 + int64(offset)
	if base < 0 || base > int64(length) {
		return 0, false
	}
	return int(base), true
}

func (vm *VM) fail(kind ErrorKind, pc int, cause error) error {
	vm.state = HaltedError
	vm.err = newError(kind, pc, cause)
	return vm.err
}

func (vm *VM) push(v uint64) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pushBool(b bool) {
	if b {
		vm.push(1)
	} else {
		vm.push(0)
	}
}

func (vm *VM) pop(pc int) (uint64, error) {
	n := len(vm.stack)
	if n == 0 {
		return 0, vm.fail(StackUnderflow, pc, nil)
	}
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v, nil
}

// pop2 pops B (top) then A, matching the spec's "pop two values A then B"
// convention, and returns them as (A, B).
func (vm *VM) pop2(pc int) (a, b uint64, err error) {
	b, err = vm.pop(pc)
	if err != nil {
		return 0, 0, err
	}
	a, err = vm.pop(pc)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (vm *VM) popIndex(pc int) (uint64, error) {
	return vm.pop(pc)
}

func (vm *VM) writeLine(s string) error {
	if _, err := io.WriteString(vm.out, s); err != nil {
		return err
	}
	_, err := vm.out.Write([]byte{'\n'})
	return err
}

const asciiWhitespace = " \t\r\n\v\f"

func isASCIIWhitespace(b byte) bool {
	for i := 0; i < len(asciiWhitespace); i++ {
		if asciiWhitespace[i] == b {
			return true
		}
	}
	return false
}

// readToken implements the read/reads protocol: skip leading whitespace,
// accumulate a token up to (but not consuming) the next whitespace byte or
// end-of-stream, then parse it as decimal. signed selects reads' looser
// grammar (optional leading '-') and int64 range.
func (vm *VM) readToken(pc int, signed bool) (uint64, error) {
	for {
		b, err := vm.in.ReadByte()
		if err != nil {
			if err == io.EOF {
				return 0, vm.fail(InputReadFailure, pc, err)
			}
			return 0, vm.fail(InputReadFailure, pc, err)
		}
		if !isASCIIWhitespace(b) {
			if uerr := vm.in.UnreadByte(); uerr != nil {
				return 0, vm.fail(InputReadFailure, pc, uerr)
			}
			break
		}
	}

	var token []byte
	for {
		b, err := vm.in.ReadByte()
		if err != nil {
			if err == io.EOF {
				break
			}
			return 0, vm.fail(InputReadFailure, pc, err)
		}
		if isASCIIWhitespace(b) {
			if uerr := vm.in.UnreadByte(); uerr != nil {
				return 0, vm.fail(InputReadFailure, pc, uerr)
			}
			break
		}
		token = append(token, b)
	}

	if len(token) == 0 {
		return 0, vm.fail(InputReadFailure, pc, errEmptyToken)
	}

	if !signed {
		if token[0] == '-' || token[0] == '+' {
			return 0, vm.fail(InputReadFailure, pc, errBadToken)
		}
		v, err := strconv.ParseUint(string(token), 10, 64)
		if err != nil {
			return 0, vm.fail(InputReadFailure, pc, err)
		}
		return v, nil
	}

	if token[0] == '+' {
		return 0, vm.fail(InputReadFailure, pc, errBadToken)
	}
	v, err := strconv.ParseInt(string(token), 10, 64)
	if err != nil {
		return 0, vm.fail(InputReadFailure, pc, err)
	}
	return uint64(v), nil
}
