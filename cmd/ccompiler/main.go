package main

import (
	"fmt"
	"os"

	"govm/pkg/asm"
	"govm/pkg/compiler"
	"govm/pkg/vm"
)

const testSource = `int main() {
	return answer() - 2 * 4;
}

int answer() {
	return 50;
}
`

func main() {
	src := testSource
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
	}

	fmt.Printf("Source:\n%s\n", src)

	// Lex
	tokens, err := compiler.Lex(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lex error:", err)
		os.Exit(1)
	}

	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()

	// Parse
	prog, err := compiler.Parse(tokens, src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse error:", err)
		os.Exit(1)
	}

	fmt.Println("AST")
	for _, fn := range prog.Functions {
		fmt.Println(" ", fn)
	}
	fmt.Println()

	// Code generation
	syms := compiler.NewSymbolTable()
	assembly, err := compiler.Generate(prog, syms)
	if err != nil {
		fmt.Fprintln(os.Stderr, "codegen error:", err)
		os.Exit(1)
	}

	fmt.Println("Generated Assembly")
	fmt.Print(assembly)

	fmt.Println("Symbols")
	for _, name := range syms.Names() {
		sym, _ := syms.Lookup(name)
		fmt.Printf("  %-16s %-20s line %d\n", name, sym.Label, sym.Line)
	}
	fmt.Println()

	// Assemble
	code, sourceMap, err := asm.Assemble(assembly)
	if err != nil {
		fmt.Fprintln(os.Stderr, "assembly error:", err)
		os.Exit(1)
	}

	fmt.Printf("Machine Code (%d bytes)\n", len(code))
	for addr := 0; addr < len(code); {
		in, err := vm.DecodeInstruction(code, addr)
		if err != nil {
			fmt.Printf("  0x%04x  %02x\n", addr, code[addr])
			addr++
			continue
		}
		fmt.Printf("  0x%04x  % -27x %-20s ; line %d\n", addr, code[addr:addr+in.Op.Length()], in, sourceMap[uint16(addr)])
		addr += in.Op.Length()
	}
}
