package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"govm/pkg/runner"
	"govm/pkg/utils"
	"govm/pkg/vm"
)

const (
	displayWidth  = 64
	displayHeight = 64
)

type options struct {
	showAsm    bool
	disasm     bool
	screenshot string
	hibernate  string
	restore    string
}

func main() {
	var opts options
	flag.BoolVar(&opts.showAsm, "show-asm", false, "print the generated assembly for C sources")
	flag.BoolVar(&opts.disasm, "disasm", false, "print a disassembly of the program after the run")
	flag.StringVar(&opts.screenshot, "screenshot", "", "write the final display to this PNG file")
	flag.StringVar(&opts.hibernate, "hibernate", "", "save the final machine state to this file")
	flag.StringVar(&opts.restore, "restore", "", "inspect or resume a hibernated machine instead of loading a program")
	flag.Parse()

	var machine *vm.VM
	var err error
	switch {
	case opts.restore != "":
		machine, err = vm.RestoreFromFile(opts.restore)
		if err != nil {
			log.Fatalf("Failed to restore %q: %v", opts.restore, err)
		}
	case flag.NArg() == 1:
		machine, err = load(flag.Arg(0), opts.showAsm)
		if err != nil {
			log.Fatal(err)
		}
	default:
		fmt.Fprintln(os.Stderr, "usage: console [flags] <program.c|program.asm|program.bin>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runErr := run(ctx, machine, opts)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		if _, ok := vm.AsFault(runErr); !ok {
			log.Fatal(runErr)
		}
		os.Exit(1)
	}
}

func load(path string, showAsm bool) (*vm.VM, error) {
	code, assembly, err := utils.LoadProgram(path)
	if err != nil {
		return nil, err
	}
	if showAsm && assembly != "" {
		fmt.Print("Generated Assembly:\n", assembly, "\n")
	}
	return vm.New(code, nil, vm.DisplayInfo{Width: displayWidth, Height: displayHeight})
}

// run drives the machine to completion and reports the outcome. The fault,
// if any, is returned after the requested artefacts have been written.
func run(ctx context.Context, machine *vm.VM, opts options) error {
	r := runner.New(machine, runner.Options{Logger: log.Default()})
	go func() {
		for range r.Frames() {
		}
	}()
	runErr := r.Run(ctx)

	if err := machine.DumpState(os.Stdout); err != nil {
		return err
	}
	if opts.disasm {
		if err := machine.Disassemble(os.Stdout, 0, machine.ProgramSize(), vm.OptionsFor(os.Stdout)); err != nil {
			return err
		}
	}
	if opts.screenshot != "" {
		if err := machine.SaveScreenshot(opts.screenshot); err != nil {
			return fmt.Errorf("screenshot: %w", err)
		}
	}
	if opts.hibernate != "" {
		if err := machine.HibernateToFile(opts.hibernate); err != nil {
			return fmt.Errorf("hibernate: %w", err)
		}
	}
	return runErr
}
