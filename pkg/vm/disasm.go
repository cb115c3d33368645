package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/term"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiBlue  = "\x1b[34m"
)

// DisasmOptions controls the annotated memory listing.
type DisasmOptions struct {
	// Color wraps addresses and comments in ANSI escapes.
	Color bool
}

// OptionsFor enables colour when w is an interactive terminal.
func OptionsFor(w io.Writer) DisasmOptions {
	f, ok := w.(*os.File)
	return DisasmOptions{Color: ok && term.IsTerminal(int(f.Fd()))}
}

var opComments = map[Opcode]string{
	OpPush: "Push constant onto stack",
	OpAdd:  "Add two numbers popped off the stack",
	OpMul:  "Multiply two numbers popped off the stack",
	OpSub:  "Subtract two numbers popped off the stack",
	OpDiv:  "Divide two numbers popped off the stack",
	OpHalt: "Halt execution",
}

// Comment returns the listing comment for op.
func (op Opcode) Comment() string {
	if c, ok := opComments[op]; ok {
		return c
	}
	return "No comment"
}

// Disassemble writes one line per byte of memory in [from, to). The line at
// the current PC is marked. Bytes that decode as an opcode show the mnemonic
// and a comment; anything else is shown as raw hex since it may be an
// operand or data. Out of range bounds are clamped, never faulted.
func (v *VM) Disassemble(w io.Writer, from, to int, opts DisasmOptions) error {
	return DisassembleMemory(w, v.Memory[:], from, to, int64(v.pc), opts)
}

// DisassembleMemory is Disassemble over an arbitrary byte slice. pc may be
// -1 for no marker.
func DisassembleMemory(w io.Writer, mem []byte, from, to int, pc int64, opts DisasmOptions) error {
	from = max(from, 0)
	to = min(to, len(mem))

	bw := bufio.NewWriter(w)
	for i := from; i < to; i++ {
		addr := fmt.Sprintf("0x%04x", i)
		marker := "     "
		if int64(i) == pc {
			marker = "  →  "
			addr = paint(opts, ansiRed, addr)
		} else {
			addr = paint(opts, ansiBlue, addr)
		}
		b := mem[i]
		if op, ok := DecodeOpcode(b); ok {
			fmt.Fprintf(bw, "%s%s%s %s\n", addr, marker, op, paint(opts, ansiGreen, "# "+op.Comment()))
		} else {
			fmt.Fprintf(bw, "%s%s%02x\n", addr, marker, b)
		}
	}
	return bw.Flush()
}

func paint(opts DisasmOptions, code, s string) string {
	if !opts.Color {
		return s
	}
	return code + s + ansiReset
}

// WriteAssembly decodes code instruction by instruction and writes it as
// assembler source. Bytes that do not form a complete instruction are
// emitted as .BYTE directives, so the output reassembles to the same image.
func WriteAssembly(w io.Writer, code []byte) error {
	bw := bufio.NewWriter(w)
	for addr := 0; addr < len(code); {
		in, err := DecodeInstruction(code, addr)
		if err != nil {
			fmt.Fprintf(bw, "    .byte 0x%02x ; 0x%04x\n", code[addr], addr)
			addr++
			continue
		}
		fmt.Fprintf(bw, "    %-24s ; 0x%04x\n", in, addr)
		addr += in.Op.Length()
	}
	return bw.Flush()
}

// DumpState writes a short summary of the machine registers and stacks.
func (v *VM) DumpState(w io.Writer) error {
	_, err := fmt.Fprintf(w, "VM\n  pc: 0x%04x\n  stack: %v\n  call depth: %d\n  paused: %t\n  steps: %d\n",
		v.pc, v.Stack, len(v.CallStack), v.Paused, v.Steps)
	if err != nil {
		return err
	}
	if v.Fault != nil {
		_, err = fmt.Fprintf(w, "  fault: %v (%s)\n", v.Fault, v.Fault.Kind.Class())
	}
	return err
}

func formatImm(n int64) string {
	return strconv.FormatInt(n, 10)
}
