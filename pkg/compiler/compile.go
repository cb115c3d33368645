package compiler

import (
	"fmt"

	"govm/pkg/asm"
)

// Compile runs the full pipeline and returns the generated assembly along
// with the assembled program image. The assembly is returned even when the
// assembler rejects it so that callers can show it.
func Compile(src string) (*string, []byte, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, nil, fmt.Errorf("lex error: %w", err)
	}

	prog, err := Parse(tokens, src)
	if err != nil {
		return nil, nil, fmt.Errorf("parse error: %w", err)
	}

	syms := NewSymbolTable()
	assembly, err := Generate(prog, syms)
	if err != nil {
		return nil, nil, fmt.Errorf("codegen error: %w", err)
	}

	machineCode, _, err := asm.Assemble(assembly)
	if err != nil {
		return &assembly, nil, fmt.Errorf("assembly error: %w", err)
	}

	return &assembly, machineCode, nil
}
