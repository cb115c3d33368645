// Package vm implements a stack-based byte-code machine with a linear
// 64 KiB address space, an operand stack of signed 64-bit values, a call
// stack, host interrupts and a memory-mapped pixel display.
//
// The machine is driven externally: each call to Step executes exactly one
// instruction and either succeeds or returns a *Fault. After a fault the
// machine is dead and every further Step returns the same fault.
package vm

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrProgramTooLarge = errors.New("program too large for memory")
	ErrDisplaySize     = errors.New("framebuffer does not match display size")
)

// MaxDisplayPixels bounds Width*Height of any display.
const MaxDisplayPixels = 1 << 24

// DisplayInfo describes the framebuffer geometry in pixels.
type DisplayInfo struct {
	Width  int
	Height int
}

// Pixels returns Width*Height.
func (d DisplayInfo) Pixels() int {
	return d.Width * d.Height
}

// Validate rejects negative dimensions and sizes above MaxDisplayPixels.
func (d DisplayInfo) Validate() error {
	if d.Width < 0 || d.Height < 0 {
		return fmt.Errorf("%w: negative dimensions %dx%d", ErrDisplaySize, d.Width, d.Height)
	}
	if d.Width > MaxDisplayPixels || d.Height > MaxDisplayPixels ||
		(d.Width > 0 && d.Height > MaxDisplayPixels/d.Width) {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDisplaySize, d.Width, d.Height, MaxDisplayPixels)
	}
	return nil
}

// StackFrame records the address of the Call instruction that created it.
// Ret restores that address and the normal one-byte advance lands on the
// instruction following the Call.
type StackFrame struct {
	ReturnAddr uint64
}

type VM struct {
	Memory      [MemorySize]byte
	Framebuffer []uint32
	Stack       []int64
	CallStack   []StackFrame
	Display     DisplayInfo

	// Paused is set by Halt or Stop. A paused machine ignores Step.
	Paused bool

	// Fault is the terminal fault, if any.
	Fault *Fault

	// Steps counts successfully executed instructions.
	Steps uint64

	pc          uint64
	programSize int
}

// New loads code at address 0. A nil framebuffer is allocated from display;
// otherwise its length must equal display.Pixels().
func New(code []byte, framebuffer []uint32, display DisplayInfo) (*VM, error) {
	if len(code) > MemorySize {
		return nil, fmt.Errorf("%w: %d bytes > %d bytes", ErrProgramTooLarge, len(code), MemorySize)
	}
	if err := display.Validate(); err != nil {
		return nil, err
	}
	if framebuffer == nil {
		framebuffer = make([]uint32, display.Pixels())
	} else if len(framebuffer) != display.Pixels() {
		return nil, fmt.Errorf("%w: %d cells for %dx%d", ErrDisplaySize, len(framebuffer), display.Width, display.Height)
	}
	v := &VM{
		Framebuffer: framebuffer,
		Display:     display,
		programSize: len(code),
	}
	copy(v.Memory[:], code)
	return v, nil
}

// PC returns the address of the next instruction.
func (v *VM) PC() uint64 {
	return v.pc
}

// ProgramSize is the length of the image passed to New.
func (v *VM) ProgramSize() int {
	return v.programSize
}

// Stop pauses the machine. The driver observes Paused between steps.
func (v *VM) Stop() {
	v.Paused = true
}

// Halted reports whether the machine stopped without a fault.
func (v *VM) Halted() bool {
	return v.Paused && v.Fault == nil
}

// Step executes one instruction.
func (v *VM) Step() error {
	if v.Fault != nil {
		return v.Fault
	}
	if v.Paused {
		return nil
	}
	if err := v.execute(); err != nil {
		var f *Fault
		if !errors.As(err, &f) {
			f = newFault(FaultInvalidInstruction, v.pc, "%v", err)
		}
		v.Fault = f
		return f
	}
	v.Steps++
	return nil
}

// Run steps until the machine pauses or faults.
func (v *VM) Run() error {
	for !v.Paused {
		if err := v.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RunSteps executes at most n instructions and returns how many ran.
func (v *VM) RunSteps(n int) (int, error) {
	for i := 0; i < n; i++ {
		if v.Paused {
			return i, nil
		}
		if err := v.Step(); err != nil {
			return i, err
		}
	}
	return n, nil
}

func (v *VM) execute() error {
	if v.pc >= MemorySize {
		return newFault(FaultPCOutOfBounds, v.pc, "PC out of bounds")
	}
	op, ok := DecodeOpcode(v.Memory[v.pc])
	if !ok {
		return newFault(FaultInvalidInstruction, v.pc, "invalid instruction 0x%02x", v.Memory[v.pc])
	}

	advance := true
	switch op {
	case OpNop:

	case OpHalt:
		v.Stop()
		return nil

	case OpPush:
		imm, err := v.readImmediate64()
		if err != nil {
			return err
		}
		v.Stack = append(v.Stack, imm)
		v.pc += 8

	case OpPop:
		if err := v.need(FaultStackUnderflow, "value"); err != nil {
			return err
		}
		v.drop(1)

	case OpAdd, OpMul, OpSub, OpDiv:
		if err := v.arith(op); err != nil {
			return err
		}

	case OpJump:
		if err := v.need(FaultStackUnderflow, "jump destination"); err != nil {
			return err
		}
		dest := v.peek(0)
		v.drop(1)
		v.pc = clampAddr(dest)
		advance = false

	case OpLoadU8:
		if err := v.need(FaultStackUnderflow, "address"); err != nil {
			return err
		}
		b, err := v.ReadByte(v.peek(0))
		if err != nil {
			return err
		}
		v.Stack[len(v.Stack)-1] = int64(b)

	case OpStoreU8:
		if err := v.need(FaultStackUnderflow, "address", "value"); err != nil {
			return err
		}
		if err := v.WriteByte(v.peek(0), byte(v.peek(1))); err != nil {
			return err
		}
		v.drop(2)

	case OpSwap:
		if err := v.need(FaultStackUnderflow, "top value", "second value"); err != nil {
			return err
		}
		n := len(v.Stack)
		v.Stack[n-1], v.Stack[n-2] = v.Stack[n-2], v.Stack[n-1]

	case OpDupe:
		if err := v.need(FaultStackUnderflow, "value"); err != nil {
			return err
		}
		v.Stack = append(v.Stack, v.peek(0))

	case OpDupeAt:
		depth, err := v.readImmediate64()
		if err != nil {
			return err
		}
		n := int64(len(v.Stack))
		if depth <= 0 || depth > n {
			return newFault(FaultStackIndex, v.pc, "dupp depth %d out of range for stack of %d", depth, n)
		}
		v.Stack = append(v.Stack, v.Stack[n-depth])
		v.pc += 8

	case OpInterrupt:
		code, err := v.readImmediate8()
		if err != nil {
			return err
		}
		if err := v.interrupt(code); err != nil {
			return err
		}
		v.pc++

	case OpCall:
		if err := v.need(FaultStackUnderflow, "call destination"); err != nil {
			return err
		}
		dest := v.peek(0)
		v.drop(1)
		v.CallStack = append(v.CallStack, StackFrame{ReturnAddr: v.pc})
		v.pc = clampAddr(dest)
		advance = false

	case OpRet:
		if len(v.CallStack) == 0 {
			return newFault(FaultReturnUnderflow, v.pc, "cannot return when call stack is empty")
		}
		frame := v.CallStack[len(v.CallStack)-1]
		v.CallStack = v.CallStack[:len(v.CallStack)-1]
		v.pc = frame.ReturnAddr
	}

	if advance {
		v.pc++
	}
	return nil
}

// arith pops the right operand (top) then the left operand and pushes
// left <op> right.
func (v *VM) arith(op Opcode) error {
	if err := v.need(FaultStackUnderflow, "right operand", "left operand"); err != nil {
		return err
	}
	right, left := v.peek(0), v.peek(1)
	var res int64
	switch op {
	case OpAdd:
		res = left + right
	case OpMul:
		res = left * right
	case OpSub:
		res = left - right
	case OpDiv:
		if right == 0 {
			return newFault(FaultDivisionByZero, v.pc, "division by zero")
		}
		if left == math.MinInt64 && right == -1 {
			return newFault(FaultIntegerOverflow, v.pc, "integer overflow in division")
		}
		res = left / right
	}
	v.drop(2)
	v.Stack = append(v.Stack, res)
	return nil
}

// need checks that the stack holds one value per name; names are listed
// top of stack first and the first missing one is reported.
func (v *VM) need(kind FaultKind, names ...string) error {
	if len(v.Stack) >= len(names) {
		return nil
	}
	return newFault(kind, v.pc, "%s: %s not on stack", kind, names[len(v.Stack)])
}

func (v *VM) peek(depth int) int64 {
	return v.Stack[len(v.Stack)-1-depth]
}

func (v *VM) drop(n int) {
	v.Stack = v.Stack[:len(v.Stack)-n]
}

func clampAddr(dest int64) uint64 {
	if dest < 0 {
		return 0
	}
	return uint64(dest)
}
