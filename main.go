//go:build !js

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"govm/pkg/asm"
	"govm/pkg/utils"
	"govm/pkg/vm"
)

const (
	displayWidth  = 64
	displayHeight = 64
)

func main() {
	inPath := flag.String("in", "", "input source file path (.c is compiled, anything else is assembled)")
	outPath := flag.String("out", "", "output binary file path (default: input with .bin extension)")
	runProgram := flag.Bool("run", false, "run the generated binary file on the virtual machine")
	runBinPath := flag.String("run-bin", "", "run an existing binary file on the virtual machine")
	disasmPath := flag.String("disasm", "", "print an annotated disassembly of a binary file")
	flag.Parse()

	if *runProgram && *runBinPath != "" {
		fmt.Fprintln(os.Stderr, "use either -run or -run-bin, not both")
		os.Exit(2)
	}

	if *disasmPath != "" {
		if err := disassembleBinary(os.Stdout, *disasmPath); err != nil {
			fmt.Fprintf(os.Stderr, "disassembly failed for %q: %v\n", *disasmPath, err)
			os.Exit(1)
		}
	}

	assembledOutput := ""
	if *inPath != "" {
		code, err := buildSource(*inPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		output := *outPath
		if output == "" {
			output = defaultOutputPath(*inPath)
		}

		if err := writeBinary(output, code); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write binary file %q: %v\n", output, err)
			os.Exit(1)
		}

		fmt.Printf("assembled %d bytes -> %s\n", len(code), output)
		assembledOutput = output
	}

	if *inPath == "" && *runBinPath == "" && !*runProgram && *disasmPath == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in to assemble, -run to run assembled output, -run-bin <file> to run an existing binary or -disasm <file> to list one")
		flag.Usage()
		os.Exit(2)
	}

	runTarget := ""
	switch {
	case *runBinPath != "":
		runTarget = *runBinPath
	case *runProgram:
		if assembledOutput == "" {
			fmt.Fprintln(os.Stderr, "-run requires -in, or use -run-bin <file>")
			os.Exit(2)
		}
		runTarget = assembledOutput
	default:
		return
	}

	if err := runBinary(os.Stdout, runTarget); err != nil {
		fmt.Fprintf(os.Stderr, "run failed for %q: %v\n", runTarget, err)
		os.Exit(1)
	}
}

// buildSource compiles or assembles the source at path into a program image.
// Files without a .c extension are treated as assembly.
func buildSource(path string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".c") {
		code, _, err := utils.LoadProgram(path)
		return code, err
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file %q: %w", path, err)
	}
	code, _, err := asm.Assemble(string(source))
	if err != nil {
		return nil, fmt.Errorf("assembly failed: %w", err)
	}
	return code, nil
}

func defaultOutputPath(inPath string) string {
	ext := filepath.Ext(inPath)
	if ext == "" {
		return inPath + ".bin"
	}
	return strings.TrimSuffix(inPath, ext) + ".bin"
}

func writeBinary(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func readBinary(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func newMachine(code []byte) (*vm.VM, error) {
	return vm.New(code, nil, vm.DisplayInfo{Width: displayWidth, Height: displayHeight})
}

// runBinary runs the image at path to completion and prints the final state.
// A fault is printed with the state and returned.
func runBinary(w io.Writer, path string) error {
	loadedBytes, err := readBinary(path)
	if err != nil {
		return err
	}

	machine, err := newMachine(loadedBytes)
	if err != nil {
		return err
	}

	runErr := machine.Run()
	fmt.Fprintf(w, "run complete (%s): PC=0x%04X steps=%d stack=%v\n", path, machine.PC(), machine.Steps, machine.Stack)
	if err := machine.DumpState(w); err != nil {
		return err
	}
	return runErr
}

func disassembleBinary(w io.Writer, path string) error {
	code, err := readBinary(path)
	if err != nil {
		return err
	}
	machine, err := newMachine(code)
	if err != nil {
		return err
	}
	return machine.Disassemble(w, 0, machine.ProgramSize(), vm.OptionsFor(w))
}
