package compiler

import (
	"fmt"
	"sort"
)

type Symbol struct {
	Name  string
	Label string // assembler label of the function entry
	Line  int    // declaration line
}

// SymbolTable maps function names to their assembler labels. Labels carry a
// sequence number because the assembler folds label case and C does not.
type SymbolTable struct {
	funcs map[string]Symbol
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{funcs: make(map[string]Symbol)}
}

// Declare registers a function and assigns it a unique label.
func (s *SymbolTable) Declare(name string, line int) (Symbol, error) {
	if prev, exists := s.funcs[name]; exists {
		return Symbol{}, fmt.Errorf("line %d: function %q redeclared (first declared on line %d)", line, name, prev.Line)
	}
	sym := Symbol{
		Name:  name,
		Label: fmt.Sprintf("F%d_%s", len(s.funcs), name),
		Line:  line,
	}
	s.funcs[name] = sym
	return sym, nil
}

func (s *SymbolTable) Lookup(name string) (Symbol, bool) {
	sym, ok := s.funcs[name]
	return sym, ok
}

// Names returns the declared function names in sorted order.
func (s *SymbolTable) Names() []string {
	names := make([]string, 0, len(s.funcs))
	for n := range s.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
