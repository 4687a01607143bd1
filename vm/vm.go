// Package vm implements the stack-based bytecode evaluator: a fixed-size
// evaluation stack, a call-frame stack for function call/return, and a
// mark-sweep garbage collector over heap-allocated strings and arrays.
package vm

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"slate/builtin"
	"slate/compiler"
	"slate/value"
)

// VM is a runtime environment for one compiled program. It fetches and
// dispatches one opcode at a time from the current function's instruction
// stream, exactly like the teacher's single-function prototype, but over
// a full call-frame stack instead of one flat script.
type VM struct {
	eval  Stack
	calls callStack

	currentFunc int
	pc          int

	functions []compiler.Function
	constants []value.Value
	heap      heap

	rng *rand.Rand
	out io.Writer
}

// New builds a VM. Out defaults to os.Stdout; override it (e.g. in tests)
// with SetOutput. The RNG backing the `random` builtin is seeded from
// wall-clock time, the VM's only source of nondeterminism.
func New() *VM {
	return &VM{
		out: os.Stdout,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetOutput redirects print's destination.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// Run executes bytecode to completion. It returns nil once the root call
// frame's RETURN is reached; any other fault aborts execution and returns
// a *RuntimeError.
func (vm *VM) Run(bc compiler.Bytecode) error {
	vm.functions = bc.Functions
	vm.constants = bc.Constants
	vm.currentFunc = 0
	vm.pc = 0
	vm.calls = callStack{}
	if err := vm.calls.push(CallFrame{Root: true}); err != nil {
		return err
	}

	for {
		done, err := vm.step()
		if err != nil {
			return err
		}
		if done {
			vm.heap.collect(vm.eval.Live())
			return nil
		}
	}
}

func (vm *VM) instructions() ([]byte, error) {
	if vm.currentFunc < 0 || vm.currentFunc >= len(vm.functions) {
		return nil, runtimeError(InvalidCallFrame, "current function index %d out of range", vm.currentFunc)
	}
	return vm.functions[vm.currentFunc].Instructions, nil
}

// step fetches and dispatches exactly one instruction. It returns done =
// true once the root call frame has been popped by RETURN.
func (vm *VM) step() (bool, error) {
	ins, err := vm.instructions()
	if err != nil {
		return false, err
	}
	if vm.pc >= len(ins) {
		return false, runtimeError(MalformedInstruction, "pc %d past end of function %d", vm.pc, vm.currentFunc)
	}
	op := compiler.Opcode(ins[vm.pc])
	width := compiler.OperandWidth(op)
	var operand byte
	if width == 1 {
		if vm.pc+1 >= len(ins) {
			return false, runtimeError(MalformedInstruction, "truncated operand for %s at pc %d", op, vm.pc)
		}
		operand = ins[vm.pc+1]
	}
	next := vm.pc + 1 + width

	switch op {
	case compiler.OpConstant:
		c, err := vm.constant(int(operand))
		if err != nil {
			return false, err
		}
		if err := vm.eval.Push(c); err != nil {
			return false, err
		}
		vm.pc = next

	case compiler.OpVarSet:
		v, err := vm.eval.Pop()
		if err != nil {
			return false, err
		}
		frame, err := vm.calls.current()
		if err != nil {
			return false, err
		}
		vm.eval.Set(frame.StackOffset+int(operand), v)
		vm.pc = next

	case compiler.OpVarGet:
		frame, err := vm.calls.current()
		if err != nil {
			return false, err
		}
		if err := vm.eval.Push(vm.eval.At(frame.StackOffset + int(operand))); err != nil {
			return false, err
		}
		vm.pc = next

	case compiler.OpStackAlloc:
		for i := 0; i < int(operand); i++ {
			if err := vm.eval.Push(value.Int(0)); err != nil {
				return false, err
			}
		}
		vm.pc = next

	case compiler.OpAdd, compiler.OpSub, compiler.OpMul, compiler.OpDiv, compiler.OpMod:
		if err := vm.arith(op); err != nil {
			return false, err
		}
		vm.pc = next

	case compiler.OpEqual:
		rhs, lhs, err := vm.popTwo()
		if err != nil {
			return false, err
		}
		if err := vm.eval.Push(value.Bool(value.Equal(lhs, rhs))); err != nil {
			return false, err
		}
		vm.pc = next

	case compiler.OpLess, compiler.OpLessEq, compiler.OpGreater, compiler.OpGreaterEq:
		if err := vm.compare(op); err != nil {
			return false, err
		}
		vm.pc = next

	case compiler.OpAnd, compiler.OpOr:
		rhs, lhs, err := vm.popTwo()
		if err != nil {
			return false, err
		}
		var result bool
		if op == compiler.OpAnd {
			result = lhs.Bool && rhs.Bool
		} else {
			result = lhs.Bool || rhs.Bool
		}
		if err := vm.eval.Push(value.Bool(result)); err != nil {
			return false, err
		}
		vm.pc = next

	case compiler.OpNegate:
		v, err := vm.eval.Pop()
		if err != nil {
			return false, err
		}
		if err := vm.eval.Push(value.Bool(!v.Bool)); err != nil {
			return false, err
		}
		vm.pc = next

	case compiler.OpBranchNeq:
		cond, err := vm.eval.Pop()
		if err != nil {
			return false, err
		}
		if !cond.Bool {
			vm.pc = next + int(operand)
		} else {
			vm.pc = next
		}

	case compiler.OpJump:
		vm.pc = next + int(operand)

	case compiler.OpJumpBack:
		vm.pc = next - int(operand)

	case compiler.OpCall:
		if err := vm.call(int(operand), next); err != nil {
			return false, err
		}

	case compiler.OpCallBuiltin:
		if err := vm.callBuiltin(int(operand)); err != nil {
			return false, err
		}
		vm.pc = next

	case compiler.OpReturn:
		done, err := vm.doReturn(operand == 1)
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}

	case compiler.OpArrayInit:
		if err := vm.arrayInit(int(operand)); err != nil {
			return false, err
		}
		vm.pc = next

	case compiler.OpArrayGet:
		if err := vm.arrayGet(); err != nil {
			return false, err
		}
		vm.pc = next

	case compiler.OpArraySet:
		if err := vm.arraySet(); err != nil {
			return false, err
		}
		vm.pc = next

	case compiler.OpPop:
		if _, err := vm.eval.Pop(); err != nil {
			return false, err
		}
		vm.pc = next

	default:
		return false, runtimeError(MalformedInstruction, "unknown opcode %v at pc %d", op, vm.pc)
	}

	return false, nil
}

func (vm *VM) constant(index int) (value.Value, error) {
	if index < 0 || index >= len(vm.constants) {
		return value.Value{}, runtimeError(InvalidConstant, "constant index %d out of range", index)
	}
	return vm.constants[index], nil
}

// popTwo pops rhs then lhs, matching the compiler's left-then-right push
// order (right ends up on top) and the ISA table's "pop rhs, lhs" rule.
func (vm *VM) popTwo() (rhs, lhs value.Value, err error) {
	rhs, err = vm.eval.Pop()
	if err != nil {
		return
	}
	lhs, err = vm.eval.Pop()
	return
}

func (vm *VM) arith(op compiler.Opcode) error {
	rhs, lhs, err := vm.popTwo()
	if err != nil {
		return err
	}
	var result int64
	switch op {
	case compiler.OpAdd:
		result = lhs.Int + rhs.Int
	case compiler.OpSub:
		result = lhs.Int - rhs.Int
	case compiler.OpMul:
		result = lhs.Int * rhs.Int
	case compiler.OpDiv:
		if rhs.Int == 0 {
			return runtimeError(DivisionByZero, "division by zero")
		}
		result = lhs.Int / rhs.Int
	case compiler.OpMod:
		if rhs.Int == 0 {
			return runtimeError(DivisionByZero, "modulo by zero")
		}
		result = lhs.Int % rhs.Int
	}
	return vm.eval.Push(value.Int(result))
}

func (vm *VM) compare(op compiler.Opcode) error {
	rhs, lhs, err := vm.popTwo()
	if err != nil {
		return err
	}
	var result bool
	switch op {
	case compiler.OpLess:
		result = lhs.Int < rhs.Int
	case compiler.OpLessEq:
		result = lhs.Int <= rhs.Int
	case compiler.OpGreater:
		result = lhs.Int > rhs.Int
	case compiler.OpGreaterEq:
		result = lhs.Int >= rhs.Int
	}
	return vm.eval.Push(value.Bool(result))
}

// call implements CALL n: pop the callee, carve out its stack region, and
// redirect execution to its entry point. returnPC is the instruction
// right after this CALL, already advanced by the caller.
func (vm *VM) call(argc int, returnPC int) error {
	callee, err := vm.eval.Pop()
	if err != nil {
		return err
	}
	if callee.Kind != value.KindFunc {
		return runtimeError(InvalidCallFrame, "attempted to call a non-function value")
	}
	frame := CallFrame{
		ReturnFunc:  vm.currentFunc,
		ReturnPC:    returnPC,
		StackOffset: vm.eval.Len() - argc,
	}
	if err := vm.calls.push(frame); err != nil {
		return err
	}
	vm.currentFunc = callee.Func
	vm.pc = 0
	return nil
}

// doReturn implements RETURN hasValue. It reports done = true once the
// popped frame was the root frame, ending the program.
func (vm *VM) doReturn(hasValue bool) (bool, error) {
	var retVal value.Value
	var err error
	if hasValue {
		retVal, err = vm.eval.Pop()
		if err != nil {
			return false, err
		}
	}
	frame, err := vm.calls.pop()
	if err != nil {
		return false, err
	}
	if frame.Root {
		return true, nil
	}
	vm.eval.Truncate(frame.StackOffset)
	if hasValue {
		if err := vm.eval.Push(retVal); err != nil {
			return false, err
		}
	}
	vm.currentFunc = frame.ReturnFunc
	vm.pc = frame.ReturnPC
	return false, nil
}

func (vm *VM) arrayInit(n int) error {
	items := make([]value.Value, n)
	for i := 0; i < n; i++ {
		v, err := vm.eval.Pop()
		if err != nil {
			return err
		}
		items[i] = v
	}
	obj := vm.heap.alloc(&value.Object{Kind: value.ObjArray, Arr: items})
	return vm.eval.Push(value.Object_(obj))
}

func (vm *VM) arrayGet() error {
	arr, err := vm.eval.Pop()
	if err != nil {
		return err
	}
	idx, err := vm.eval.Pop()
	if err != nil {
		return err
	}
	if arr.Kind != value.KindObject || arr.Obj == nil || arr.Obj.Kind != value.ObjArray {
		return runtimeError(InvalidCallFrame, "indexed a non-array value")
	}
	if idx.Int < 0 || idx.Int >= int64(len(arr.Obj.Arr)) {
		return runtimeError(IndexOutOfRange, "array index %d out of range (length %d)", idx.Int, len(arr.Obj.Arr))
	}
	return vm.eval.Push(arr.Obj.Arr[idx.Int])
}

func (vm *VM) arraySet() error {
	arr, err := vm.eval.Pop()
	if err != nil {
		return err
	}
	idx, err := vm.eval.Pop()
	if err != nil {
		return err
	}
	val, err := vm.eval.Pop()
	if err != nil {
		return err
	}
	if arr.Kind != value.KindObject || arr.Obj == nil || arr.Obj.Kind != value.ObjArray {
		return runtimeError(InvalidCallFrame, "assigned into a non-array value")
	}
	if idx.Int < 0 || idx.Int >= int64(len(arr.Obj.Arr)) {
		return runtimeError(IndexOutOfRange, "array index %d out of range (length %d)", idx.Int, len(arr.Obj.Arr))
	}
	arr.Obj.Arr[idx.Int] = val
	return nil
}

func (vm *VM) callBuiltin(idx int) error {
	switch idx {
	case builtin.Print:
		v, err := vm.eval.Pop()
		if err != nil {
			return err
		}
		fmt.Fprintln(vm.out, v.String())
		return nil

	case builtin.ToString:
		v, err := vm.eval.Pop()
		if err != nil {
			return err
		}
		obj := vm.heap.alloc(&value.Object{Kind: value.ObjString, Str: v.String()})
		return vm.eval.Push(value.Object_(obj))

	case builtin.Length:
		v, err := vm.eval.Pop()
		if err != nil {
			return err
		}
		var n int
		switch {
		case v.Kind == value.KindObject && v.Obj.Kind == value.ObjArray:
			n = len(v.Obj.Arr)
		case v.Kind == value.KindObject && v.Obj.Kind == value.ObjString:
			n = len(v.Obj.Str)
		default:
			return runtimeError(InvalidCallFrame, "length called on a non-array, non-string value")
		}
		return vm.eval.Push(value.Int(int64(n)))

	case builtin.Clone:
		v, err := vm.eval.Pop()
		if err != nil {
			return err
		}
		return vm.eval.Push(vm.clone(v))

	case builtin.Append:
		elem, err := vm.eval.Pop()
		if err != nil {
			return err
		}
		arr, err := vm.eval.Pop()
		if err != nil {
			return err
		}
		if arr.Kind != value.KindObject || arr.Obj == nil || arr.Obj.Kind != value.ObjArray {
			return runtimeError(InvalidCallFrame, "append called on a non-array value")
		}
		arr.Obj.Arr = append(arr.Obj.Arr, elem)
		return nil

	case builtin.Random:
		hi, lo, err := vm.popTwo()
		if err != nil {
			return err
		}
		if hi.Int < lo.Int {
			return runtimeError(InvalidCallFrame, "random called with hi < lo")
		}
		// Inclusive on both ends: the Open Question the spec leaves
		// undecided ("random bound inclusivity"), resolved the way most
		// scripting-language random(min,max) builtins read.
		span := hi.Int - lo.Int + 1
		n := lo.Int + vm.rng.Int63n(span)
		return vm.eval.Push(value.Int(n))

	default:
		return runtimeError(MalformedInstruction, "unknown builtin index %d", idx)
	}
}

// clone copies an array's backing slice into a fresh heap Object; scalars
// and strings are immutable, so cloning them is just returning the same
// Value — there is nothing for a caller to observe as shared.
func (vm *VM) clone(v value.Value) value.Value {
	if v.Kind == value.KindObject && v.Obj != nil && v.Obj.Kind == value.ObjArray {
		cp := make([]value.Value, len(v.Obj.Arr))
		copy(cp, v.Obj.Arr)
		obj := vm.heap.alloc(&value.Object{Kind: value.ObjArray, Arr: cp})
		return value.Object_(obj)
	}
	return v
}
