package vm

const callStackCap = 255

// CallFrame tracks one active call: where to resume the caller
// (ReturnFunc, ReturnPC) and which region of the evaluation stack this
// call owns (StackOffset is the first slot holding its arguments/locals).
type CallFrame struct {
	ReturnFunc  int
	ReturnPC    int
	StackOffset int
	Root        bool
}

type callStack struct {
	frames [callStackCap]CallFrame
	top    int
}

func (c *callStack) push(f CallFrame) error {
	if c.top >= callStackCap {
		return runtimeError(StackOverflow, "call stack exceeded %d frames", callStackCap)
	}
	c.frames[c.top] = f
	c.top++
	return nil
}

func (c *callStack) pop() (CallFrame, error) {
	if c.top == 0 {
		return CallFrame{}, runtimeError(StackUnderflow, "return with an empty call stack")
	}
	c.top--
	return c.frames[c.top], nil
}

func (c *callStack) current() (CallFrame, error) {
	if c.top == 0 {
		return CallFrame{}, runtimeError(InvalidCallFrame, "no active call frame")
	}
	return c.frames[c.top-1], nil
}
