package vm

import (
	"encoding/binary"
	"strings"
)

// Opcode is a single-byte operation code. Valid opcodes are contiguous from
// OpNop to OpRet; every other byte value is an invalid instruction.
type Opcode byte

const (
	OpNop       Opcode = 0x00
	OpHalt      Opcode = 0x01
	OpPush      Opcode = 0x02
	OpPop       Opcode = 0x03
	OpAdd       Opcode = 0x04
	OpMul       Opcode = 0x05
	OpSub       Opcode = 0x06
	OpDiv       Opcode = 0x07
	OpJump      Opcode = 0x08
	OpLoadU8    Opcode = 0x09
	OpStoreU8   Opcode = 0x0A
	OpSwap      Opcode = 0x0B
	OpDupe      Opcode = 0x0C
	OpDupeAt    Opcode = 0x0D
	OpInterrupt Opcode = 0x0E
	OpCall      Opcode = 0x0F
	OpRet       Opcode = 0x10
)

const opCount = int(OpRet) + 1

var opNames = [opCount]string{
	"Nop", "Halt", "Push", "Pop", "Add", "Mul", "Sub", "Div", "Jump",
	"LoadU8", "StoreU8", "Swap", "Dupe", "DupeAt", "Interrupt", "Call", "Ret",
}

// opMnemonics holds the assembler spelling of each opcode.
var opMnemonics = [opCount]string{
	"nop", "hlt", "push", "pop", "add", "mul", "sub", "div", "jmp",
	"loadu8", "storeu8", "swap", "dup", "dupp", "int", "call", "ret",
}

var mnemonicOps = func() map[string]Opcode {
	m := make(map[string]Opcode, opCount)
	for i, name := range opMnemonics {
		m[name] = Opcode(i)
	}
	return m
}()

// DecodeOpcode maps a raw byte to an opcode. The second result is false for
// bytes outside the instruction set.
func DecodeOpcode(b byte) (Opcode, bool) {
	if int(b) >= opCount {
		return 0, false
	}
	return Opcode(b), true
}

// LookupMnemonic resolves an assembler mnemonic (case-insensitive).
func LookupMnemonic(name string) (Opcode, bool) {
	op, ok := mnemonicOps[strings.ToLower(name)]
	return op, ok
}

func (op Opcode) Valid() bool {
	return int(op) < opCount
}

func (op Opcode) String() string {
	if !op.Valid() {
		return "Invalid"
	}
	return opNames[op]
}

// Mnemonic returns the assembler spelling, e.g. "dupp" for OpDupeAt.
func (op Opcode) Mnemonic() string {
	if !op.Valid() {
		return ""
	}
	return opMnemonics[op]
}

// ImmediateSize is the width in bytes of the little-endian operand that
// follows the opcode byte.
func (op Opcode) ImmediateSize() int {
	switch op {
	case OpPush, OpDupeAt:
		return 8
	case OpInterrupt:
		return 1
	}
	return 0
}

// Length is the encoded size of the instruction: 1, 9 or 2 bytes.
func (op Opcode) Length() int {
	return 1 + op.ImmediateSize()
}

// Instruction is a decoded opcode together with its immediate. Imm is zero
// for zero-operand instructions and holds the unsigned byte for OpInterrupt.
type Instruction struct {
	Op  Opcode
	Imm int64
}

// DecodeInstruction decodes the instruction at addr in code.
func DecodeInstruction(code []byte, addr int) (Instruction, error) {
	if addr < 0 || addr >= len(code) {
		return Instruction{}, newFault(FaultPCOutOfBounds, uint64(addr), "PC out of bounds")
	}
	op, ok := DecodeOpcode(code[addr])
	if !ok {
		return Instruction{}, newFault(FaultInvalidInstruction, uint64(addr), "invalid instruction 0x%02x", code[addr])
	}
	if addr+op.Length() > len(code) {
		return Instruction{}, newFault(FaultOperandOutOfBounds, uint64(addr), "%s operand out of bounds", op)
	}
	in := Instruction{Op: op}
	switch op.ImmediateSize() {
	case 8:
		in.Imm = int64(binary.LittleEndian.Uint64(code[addr+1 : addr+9]))
	case 1:
		in.Imm = int64(code[addr+1])
	}
	return in, nil
}

// Encode returns the binary encoding of the instruction.
func (in Instruction) Encode() []byte {
	out := make([]byte, in.Op.Length())
	out[0] = byte(in.Op)
	switch in.Op.ImmediateSize() {
	case 8:
		binary.LittleEndian.PutUint64(out[1:], uint64(in.Imm))
	case 1:
		out[1] = byte(in.Imm)
	}
	return out
}

func (in Instruction) String() string {
	switch in.Op.ImmediateSize() {
	case 8:
		return in.Op.Mnemonic() + " " + formatImm(in.Imm)
	case 1:
		return in.Op.Mnemonic() + " " + formatImm(in.Imm&0xFF)
	}
	return in.Op.Mnemonic()
}
