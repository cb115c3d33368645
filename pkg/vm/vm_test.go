package vm

import (
	"errors"
	"reflect"
	"testing"
)

var testDisplay = DisplayInfo{Width: 64, Height: 64}

func push(n int64) Instruction { return Instruction{Op: OpPush, Imm: n} }
func op(o Opcode) Instruction  { return Instruction{Op: o} }
func dupp(n int64) Instruction { return Instruction{Op: OpDupeAt, Imm: n} }
func intr(n byte) Instruction  { return Instruction{Op: OpInterrupt, Imm: int64(n)} }

// program concatenates the encodings of the given instructions.
func program(ins ...Instruction) []byte {
	var out []byte
	for _, in := range ins {
		out = append(out, in.Encode()...)
	}
	return out
}

func newTestVM(t *testing.T, code []byte) *VM {
	t.Helper()
	v, err := New(code, nil, testDisplay)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

// runVM runs to completion, failing the test if the machine does not stop
// within a generous step budget.
func runVM(t *testing.T, v *VM) error {
	t.Helper()
	n, err := v.RunSteps(100000)
	if err == nil && !v.Paused {
		t.Fatalf("machine still running after %d steps", n)
	}
	return err
}

func expectStack(t *testing.T, v *VM, want ...int64) {
	t.Helper()
	if len(want) == 0 && len(v.Stack) == 0 {
		return
	}
	if !reflect.DeepEqual(v.Stack, want) {
		t.Errorf("stack: expected %v, got %v", want, v.Stack)
	}
}

func expectFault(t *testing.T, err error, kind FaultKind, addr uint64) *Fault {
	t.Helper()
	f, ok := AsFault(err)
	if !ok {
		t.Fatalf("expected %v fault, got %v", kind, err)
	}
	if f.Kind != kind {
		t.Errorf("fault kind: expected %v, got %v (%v)", kind, f.Kind, f)
	}
	if f.Addr != addr {
		t.Errorf("fault address: expected 0x%04X, got 0x%04X", addr, f.Addr)
	}
	return f
}

func TestAddHalt(t *testing.T) {
	v := newTestVM(t, program(push(5), push(3), op(OpAdd), op(OpHalt)))
	if err := runVM(t, v); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	expectStack(t, v, 8)
	if !v.Paused {
		t.Error("Paused: expected true")
	}
	if !v.Halted() {
		t.Error("Halted(): expected true")
	}
	if v.PC() != 19 {
		t.Errorf("PC: expected 0x0013 (the Halt), got 0x%04X", v.PC())
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		a, b int64
		op   Opcode
		want int64
	}{
		{"Sub", 10, 3, OpSub, 7},
		{"Sub_Negative", 3, 10, OpSub, -7},
		{"Mul", 6, -7, OpMul, -42},
		{"Div", 20, 4, OpDiv, 5},
		{"Div_Truncates", -7, 2, OpDiv, -3},
		{"Add_Wraps", 0x7FFF_FFFF_FFFF_FFFF, 1, OpAdd, -0x8000_0000_0000_0000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := newTestVM(t, program(push(tc.a), push(tc.b), op(tc.op), op(OpHalt)))
			if err := runVM(t, v); err != nil {
				t.Fatalf("unexpected fault: %v", err)
			}
			expectStack(t, v, tc.want)
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	v := newTestVM(t, program(push(4), push(0), op(OpDiv), op(OpHalt)))
	err := runVM(t, v)
	expectFault(t, err, FaultDivisionByZero, 18)
	if !errors.Is(err, FaultDivisionByZero) {
		t.Error("errors.Is(err, FaultDivisionByZero): expected true")
	}
	if v.Halted() {
		t.Error("Halted(): expected false after a fault")
	}
	expectStack(t, v, 4, 0)

	// The machine stays dead.
	if again := v.Step(); again != err {
		t.Errorf("Step after fault: expected the same fault, got %v", again)
	}
	if v.PC() != 18 {
		t.Errorf("PC moved after fault: 0x%04X", v.PC())
	}
}

func TestDivisionOverflow(t *testing.T) {
	v := newTestVM(t, program(push(-0x8000_0000_0000_0000), push(-1), op(OpDiv), op(OpHalt)))
	expectFault(t, runVM(t, v), FaultIntegerOverflow, 18)
}

func TestPopEmptyStack(t *testing.T) {
	v := newTestVM(t, program(op(OpPop), op(OpHalt)))
	err := v.Step()
	f := expectFault(t, err, FaultStackUnderflow, 0)
	if got, want := f.Error(), "stack underflow: value not on stack at 0x0000"; got != want {
		t.Errorf("Error(): expected %q, got %q", want, got)
	}
}

func TestUnderflowLeavesStackIntact(t *testing.T) {
	v := newTestVM(t, program(push(1), op(OpAdd)))
	expectFault(t, runVM(t, v), FaultStackUnderflow, 9)
	expectStack(t, v, 1)
}

func TestStoreToDisplayWindow(t *testing.T) {
	v := newTestVM(t, program(push(0x8000), push(0xff), op(OpSwap), op(OpStoreU8), op(OpHalt)))
	if err := runVM(t, v); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if v.Framebuffer[0] != 0xFFFFFFFF {
		t.Errorf("Framebuffer[0]: expected 0xFFFFFFFF, got 0x%08X", v.Framebuffer[0])
	}
	if v.Memory[0x8000] != 0 {
		t.Errorf("Memory[0x8000]: display stores must not reach memory, got 0x%02X", v.Memory[0x8000])
	}
	expectStack(t, v)
}

func TestStoreBroadcastsLowByte(t *testing.T) {
	// value 0x1234 keeps only 0x34; cell 5 of the window
	v := newTestVM(t, program(push(0x1234), push(0x8005), op(OpStoreU8), op(OpHalt)))
	if err := runVM(t, v); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if v.Framebuffer[5] != 0x34343434 {
		t.Errorf("Framebuffer[5]: expected 0x34343434, got 0x%08X", v.Framebuffer[5])
	}
}

func TestStoreBeyondSmallFramebuffer(t *testing.T) {
	v, err := New(program(push(1), push(0x8010), op(OpStoreU8)), nil, DisplayInfo{Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	expectFault(t, runVM(t, v), FaultAddressOutOfBounds, 18)
}

func TestLoadStoreMemory(t *testing.T) {
	v := newTestVM(t, program(
		push(0x1AB), push(0x4000), op(OpStoreU8), // mem[0x4000] = 0xAB
		push(0x4000), op(OpLoadU8),
		push(0x8000), op(OpLoadU8), // window reads plain memory
		op(OpHalt),
	))
	if err := runVM(t, v); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	expectStack(t, v, 0xAB, 0)
}

func TestMemoryBounds(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"Load_Negative", program(push(-1), op(OpLoadU8))},
		{"Load_PastEnd", program(push(MemorySize), op(OpLoadU8))},
		{"Store_PastEnd", program(push(0), push(MemorySize), op(OpStoreU8))},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := newTestVM(t, tc.code)
			before := len(tc.code) / 9
			err := runVM(t, v)
			expectFault(t, err, FaultAddressOutOfBounds, uint64(len(tc.code)-1))
			if len(v.Stack) != before {
				t.Errorf("stack depth: expected %d, got %d", before, len(v.Stack))
			}
		})
	}
}

func TestStackOps(t *testing.T) {
	v := newTestVM(t, program(
		push(1), push(2), op(OpSwap), // [2 1]
		op(OpDupe),                   // [2 1 1]
		dupp(3),                      // [2 1 1 2]
		push(9), op(OpPop),           // unchanged
		op(OpHalt),
	))
	if err := runVM(t, v); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	expectStack(t, v, 2, 1, 1, 2)
}

func TestDupeAtOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		depth int64
	}{
		{"TooDeep", 2},
		{"Zero", 0},
		{"Negative", -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := newTestVM(t, program(push(1), dupp(tc.depth), op(OpHalt)))
			expectFault(t, runVM(t, v), FaultStackIndex, 9)
			expectStack(t, v, 1)
		})
	}
}

func TestJump(t *testing.T) {
	// 0:  push 20
	// 9:  jmp
	// 10: push 99 (skipped)
	// 19: hlt     (skipped)
	// 20: push 7
	// 29: hlt
	v := newTestVM(t, program(push(20), op(OpJump), push(99), op(OpHalt), push(7), op(OpHalt)))
	if err := v.Step(); err != nil {
		t.Fatal(err)
	}
	if err := v.Step(); err != nil {
		t.Fatal(err)
	}
	if v.PC() != 20 {
		t.Errorf("PC after jmp: expected 0x0014, got 0x%04X", v.PC())
	}
	if err := runVM(t, v); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	expectStack(t, v, 7)
}

func TestJumpNegativeClampsToZero(t *testing.T) {
	v := newTestVM(t, program(push(-5), op(OpJump)))
	v.Step()
	if err := v.Step(); err != nil {
		t.Fatal(err)
	}
	if v.PC() != 0 {
		t.Errorf("PC: expected 0, got 0x%04X", v.PC())
	}
}

func TestCallReturn(t *testing.T) {
	// 0:  push 11
	// 9:  call
	// 10: hlt
	// 11: push 42   (subroutine)
	// 20: ret
	v := newTestVM(t, program(push(11), op(OpCall), op(OpHalt), push(42), op(OpRet)))

	v.Step()
	v.Step()
	if v.PC() != 11 {
		t.Errorf("PC after call: expected 0x000B, got 0x%04X", v.PC())
	}
	if len(v.CallStack) != 1 || v.CallStack[0].ReturnAddr != 9 {
		t.Errorf("call stack: expected [{9}], got %v", v.CallStack)
	}
	v.Step()
	if err := v.Step(); err != nil {
		t.Fatal(err)
	}
	if v.PC() != 10 {
		t.Errorf("PC after ret: expected 0x000A (instruction after call), got 0x%04X", v.PC())
	}
	if err := runVM(t, v); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	expectStack(t, v, 42)
	if len(v.CallStack) != 0 {
		t.Errorf("call stack: expected empty, got %v", v.CallStack)
	}
}

func TestNestedCalls(t *testing.T) {
	// 0:  push 11 ; call f
	// 10: hlt
	// f  (11): push 1 ; push 40 ; call g ; push 3 ; ret
	// g  (40): push 2 ; ret
	v := newTestVM(t, program(
		push(11), op(OpCall), op(OpHalt),
		push(1), push(40), op(OpCall), push(3), op(OpRet),
		push(2), op(OpRet),
	))
	if err := runVM(t, v); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	expectStack(t, v, 1, 2, 3)
	if v.PC() != 10 {
		t.Errorf("PC: expected 0x000A, got 0x%04X", v.PC())
	}
}

func TestReturnEmptyCallStack(t *testing.T) {
	v := newTestVM(t, program(op(OpNop), op(OpRet)))
	expectFault(t, runVM(t, v), FaultReturnUnderflow, 1)
}

func TestPCOutOfBounds(t *testing.T) {
	v := newTestVM(t, program(push(MemorySize), op(OpJump)))
	err := runVM(t, v)
	f := expectFault(t, err, FaultPCOutOfBounds, MemorySize)
	if f.Message != "PC out of bounds" {
		t.Errorf("message: expected %q, got %q", "PC out of bounds", f.Message)
	}
}

func TestRunOffEndOfMemory(t *testing.T) {
	// Zeroed headroom decodes as Nop, so the machine slides to the end.
	v := newTestVM(t, nil)
	n, err := v.RunSteps(MemorySize + 1)
	expectFault(t, err, FaultPCOutOfBounds, MemorySize)
	if n != MemorySize {
		t.Errorf("steps before fault: expected %d, got %d", MemorySize, n)
	}
}

func TestOperandPastEndOfMemory(t *testing.T) {
	v := newTestVM(t, program(push(MemorySize-4), op(OpJump)))
	v.Memory[MemorySize-4] = byte(OpPush)
	expectFault(t, runVM(t, v), FaultOperandOutOfBounds, MemorySize-4)
}

func TestInvalidInstruction(t *testing.T) {
	v := newTestVM(t, []byte{byte(OpNop), 0xFF})
	f := expectFault(t, runVM(t, v), FaultInvalidInstruction, 1)
	if f.Kind.Class() != "control" {
		t.Errorf("class: expected control, got %s", f.Kind.Class())
	}
}

func TestStepWhilePaused(t *testing.T) {
	v := newTestVM(t, program(op(OpHalt), push(1)))
	v.Step()
	if err := v.Step(); err != nil {
		t.Fatal(err)
	}
	if v.PC() != 0 || len(v.Stack) != 0 {
		t.Errorf("paused machine advanced: PC=0x%04X stack=%v", v.PC(), v.Stack)
	}
}

func TestStop(t *testing.T) {
	v := newTestVM(t, nil)
	v.Step()
	v.Stop()
	if err := v.Run(); err != nil {
		t.Fatal(err)
	}
	if v.PC() != 1 || v.Steps != 1 {
		t.Errorf("expected one step before stop, got PC=0x%04X steps=%d", v.PC(), v.Steps)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(make([]byte, MemorySize+1), nil, testDisplay); !errors.Is(err, ErrProgramTooLarge) {
		t.Errorf("oversized program: expected ErrProgramTooLarge, got %v", err)
	}
	if _, err := New(nil, make([]uint32, 10), testDisplay); !errors.Is(err, ErrDisplaySize) {
		t.Errorf("short framebuffer: expected ErrDisplaySize, got %v", err)
	}
	for _, d := range []DisplayInfo{
		{Width: -1, Height: 4},
		{Width: 1 << 32, Height: 1 << 32},
		{Width: 1 << 31, Height: 1 << 31},
		{Width: MaxDisplayPixels + 1, Height: 1},
		{Width: 4097, Height: 4096},
	} {
		if _, err := New(program(op(OpHalt)), nil, d); !errors.Is(err, ErrDisplaySize) {
			t.Errorf("display %dx%d: expected ErrDisplaySize, got %v", d.Width, d.Height, err)
		}
	}
	fb := make([]uint32, testDisplay.Pixels())
	v, err := New([]byte{1, 2, 3}, fb, testDisplay)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if &v.Framebuffer[0] != &fb[0] {
		t.Error("framebuffer: expected the caller's buffer to be used")
	}
	if v.ProgramSize() != 3 || v.Memory[2] != 3 || v.Memory[3] != 0 {
		t.Errorf("program image not loaded at 0: size=%d mem=% x", v.ProgramSize(), v.Memory[:4])
	}
}
