package vm

import (
	"errors"
	"fmt"
)

// FaultKind describes the reason execution stopped. It satisfies error so
// that callers can match with errors.Is(err, vm.FaultStackUnderflow).
type FaultKind int

const (
	// control
	FaultPCOutOfBounds FaultKind = iota
	FaultInvalidInstruction
	// stack
	FaultStackUnderflow
	FaultStackIndex
	// memory
	FaultAddressOutOfBounds
	FaultOperandOutOfBounds
	// arithmetic
	FaultDivisionByZero
	FaultIntegerOverflow
	// I/O
	FaultUnknownInterrupt
	FaultInterruptArgument
	FaultPixelOutOfBounds
	// call discipline
	FaultReturnUnderflow
)

var faultNames = []string{
	"PC out of bounds",
	"invalid instruction",
	"stack underflow",
	"stack index out of range",
	"address out of bounds",
	"operand out of bounds",
	"division by zero",
	"integer overflow",
	"unknown interrupt",
	"interrupt argument missing",
	"pixel out of bounds",
	"return with empty call stack",
}

func (k FaultKind) Error() string {
	if k < 0 || int(k) >= len(faultNames) {
		return fmt.Sprintf("fault %d", int(k))
	}
	return faultNames[k]
}

func (k FaultKind) String() string {
	return k.Error()
}

// Class groups kinds into the control / stack / memory / arithmetic / io /
// call families.
func (k FaultKind) Class() string {
	switch k {
	case FaultPCOutOfBounds, FaultInvalidInstruction:
		return "control"
	case FaultStackUnderflow, FaultStackIndex:
		return "stack"
	case FaultAddressOutOfBounds, FaultOperandOutOfBounds:
		return "memory"
	case FaultDivisionByZero, FaultIntegerOverflow:
		return "arithmetic"
	case FaultUnknownInterrupt, FaultInterruptArgument, FaultPixelOutOfBounds:
		return "io"
	case FaultReturnUnderflow:
		return "call"
	}
	return "unknown"
}

// Fault is the immutable record of an unrecoverable execution error: what
// went wrong and the address of the instruction that raised it.
type Fault struct {
	Kind    FaultKind
	Message string
	Addr    uint64
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s at 0x%04x", f.Message, f.Addr)
}

// Is reports whether target is the fault's kind.
func (f *Fault) Is(target error) bool {
	k, ok := target.(FaultKind)
	return ok && k == f.Kind
}

func newFault(kind FaultKind, addr uint64, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...), Addr: addr}
}

// AsFault extracts the *Fault from err, if any.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
