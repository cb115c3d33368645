package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"govm/pkg/vm"
)

type Assembler struct {
	labels map[string]uint16
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]uint16),
	}
}

// Assemble translates assembly source into a program image plus a map from
// byte address to the source line that produced it.
func Assemble(code string) ([]byte, map[uint16]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]byte, map[uint16]int, error) {
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, nil, err
	}

	return a.pass2(lines)
}

// pass1 sizes every line and records label addresses.
func (a *Assembler) pass1(lines []string) error {
	var address uint32

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			if address > 0xFFFF {
				return fmt.Errorf("label '%s' on line %d points past addressable memory", lbl, lineNo)
			}
			key := normalizeLabel(lbl)
			if _, exists := a.labels[key]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[key] = uint16(address)
		}

		if p.mnemonic == "" {
			continue
		}

		var length uint32
		switch p.mnemonic {
		case ".STRING":
			length = uint32(len(p.operands[0]) + 1)
		case ".BYTE":
			if len(p.operands) == 0 {
				return fmt.Errorf(".BYTE expects at least one operand on line %d", lineNo)
			}
			length = uint32(len(p.operands))
		case ".ORG":
			target, err := parseOrigin(p.operands, lineNo)
			if err != nil {
				return err
			}
			if target < address {
				return fmt.Errorf("cannot move origin backward on line %d", lineNo)
			}
			address = target
			continue
		default:
			op, ok := vm.LookupMnemonic(p.mnemonic)
			if !ok {
				return fmt.Errorf("unknown instruction on line %d: %s", lineNo, p.mnemonic)
			}
			length = uint32(op.Length())
		}

		if address+length > vm.MemorySize {
			return fmt.Errorf("program too large near line %d", lineNo)
		}
		address += length
	}

	return nil
}

func (a *Assembler) pass2(lines []string) ([]byte, map[uint16]int, error) {
	program := make([]byte, 0)
	sourceMap := make(map[uint16]int)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}

		if p.mnemonic == "" {
			continue
		}

		ops := p.operands

		switch p.mnemonic {
		case ".ORG":
			target, err := parseOrigin(ops, lineNo)
			if err != nil {
				return nil, nil, err
			}
			if padding := int(target) - len(program); padding > 0 {
				program = append(program, make([]byte, padding)...)
			}
			continue

		case ".STRING":
			sourceMap[uint16(len(program))] = lineNo
			program = append(program, ops[0]...)
			program = append(program, 0x00)
			continue

		case ".BYTE":
			sourceMap[uint16(len(program))] = lineNo
			for _, tok := range ops {
				b, err := parseByte(tok, lineNo)
				if err != nil {
					return nil, nil, err
				}
				program = append(program, b)
			}
			continue
		}

		op, ok := vm.LookupMnemonic(p.mnemonic)
		if !ok {
			return nil, nil, fmt.Errorf("unknown instruction on line %d: %s", lineNo, p.mnemonic)
		}

		in := vm.Instruction{Op: op}
		switch op.ImmediateSize() {
		case 0:
			if len(ops) != 0 {
				return nil, nil, fmt.Errorf("%s expects 0 operands on line %d", p.mnemonic, lineNo)
			}
		case 8:
			if len(ops) != 1 {
				return nil, nil, fmt.Errorf("%s expects 1 operand on line %d", p.mnemonic, lineNo)
			}
			in.Imm, err = a.parseImmediate(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
		case 1:
			if len(ops) != 1 {
				return nil, nil, fmt.Errorf("%s expects 1 operand on line %d", p.mnemonic, lineNo)
			}
			b, err := parseByte(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			in.Imm = int64(b)
		}

		sourceMap[uint16(len(program))] = lineNo
		program = append(program, in.Encode()...)
	}

	return program, sourceMap, nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	if idx := stringDirective(raw); idx != -1 {
		// Labels before the directive, quoted content taken from the raw line.
		pre := raw[:idx]
		if colonIdx := strings.Index(pre, ":"); colonIdx != -1 {
			label := strings.TrimSpace(pre[:colonIdx])
			if label != "" {
				if !isIdentifier(label) {
					return p, fmt.Errorf("invalid label '%s' on line %d", label, lineNo)
				}
				p.labels = append(p.labels, label)
			}
		}

		opening := strings.Index(raw, "\"")
		closing := strings.LastIndex(raw, "\"")
		if opening != -1 && closing != -1 && opening != closing {
			p.mnemonic = ".STRING"
			content := raw[opening+1 : closing]
			if unquoted, err := strconv.Unquote(`"` + content + `"`); err == nil {
				p.operands = []string{unquoted}
			} else {
				p.operands = []string{content}
			}
			return p, nil
		}
		return p, fmt.Errorf("invalid string literal on line %d", lineNo)
	}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t") {
			break
		}

		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(fields) == 0 {
		return p, nil
	}

	p.mnemonic = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		p.operands = fields[1:]
	}

	return p, nil
}

// stringDirective returns the offset of a .STRING directive that precedes
// any comment or quoted text on the line, or -1.
func stringDirective(raw string) int {
	head := raw
	if q := strings.IndexByte(head, '"'); q != -1 {
		head = head[:q]
	}
	head = stripComments(head)
	idx := strings.Index(strings.ToUpper(head), ".STRING")
	if idx == -1 {
		return -1
	}
	if end := idx + len(".STRING"); end < len(head) && !unicode.IsSpace(rune(head[end])) {
		return -1
	}
	return idx
}

func stripComments(line string) string {
	semicolon := strings.Index(line, ";")
	doubleSlash := strings.Index(line, "//")

	cut := -1
	if semicolon >= 0 {
		cut = semicolon
	}
	if doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

func parseOrigin(ops []string, lineNo int) (uint32, error) {
	if len(ops) != 1 {
		return 0, fmt.Errorf(".ORG expects exactly one operand on line %d", lineNo)
	}
	target, err := strconv.ParseUint(ops[0], 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid .ORG value on line %d: %s", lineNo, ops[0])
	}
	if target > 0xFFFF {
		return 0, fmt.Errorf(".ORG out of range on line %d: %s", lineNo, ops[0])
	}
	return uint32(target), nil
}

// parseImmediate accepts a signed 64-bit literal in any base strconv
// understands, an unsigned 64-bit bit pattern, or a label.
func (a *Assembler) parseImmediate(token string, lineNo int) (int64, error) {
	if value, err := strconv.ParseInt(token, 0, 64); err == nil {
		return value, nil
	}
	if value, err := strconv.ParseUint(token, 0, 64); err == nil {
		return int64(value), nil
	}

	if addr, ok := a.labels[normalizeLabel(token)]; ok {
		return int64(addr), nil
	}

	if isIdentifier(token) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}

	return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
}

func parseByte(token string, lineNo int) (byte, error) {
	value, err := strconv.ParseUint(token, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte '%s' on line %d", token, lineNo)
	}
	return byte(value), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

func normalizeLabel(label string) string {
	return strings.ToUpper(label)
}
