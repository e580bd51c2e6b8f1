// Command wain loads a WebAssembly binary module, instantiates it
// against the spectest host module, and, with --run-all-exports, runs
// its exported functions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wasmkit/wain/interp"
)

type flags struct {
	valueStackSize int
	callStackSize  int
	trace          bool
	runAllExports  bool
	specMode       bool
	disassemble    bool
	verbose        bool
}

func main() {
	var f flags

	cmd := &cobra.Command{
		Use:           "wain <module.wasm>",
		Short:         "run a WebAssembly module in the wain interpreter",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], &f)
		},
	}
	cmd.Flags().IntVar(&f.valueStackSize, "value-stack-size", 16384, "max size in elements of the value stack")
	cmd.Flags().IntVar(&f.callStackSize, "call-stack-size", 1024, "max depth of the call stack")
	cmd.Flags().BoolVar(&f.trace, "trace", false, "trace execution")
	cmd.Flags().BoolVar(&f.runAllExports, "run-all-exports", false, "run all the exported functions, in order")
	cmd.Flags().BoolVar(&f.specMode, "spec", false, "report output in the conformance harness format")
	cmd.Flags().BoolVar(&f.disassemble, "disassemble", false, "print the compiled instruction stream and exit")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log load and link events")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(path string, f *flags) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	opts := interp.DefaultOptions()
	opts.ValueStackSize = f.valueStackSize
	opts.CallStackSize = f.callStackSize
	opts.Trace = f.trace
	opts.TraceStream = os.Stdout
	opts.RunAllExports = f.runAllExports
	opts.SpecMode = f.specMode
	if f.verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
		opts.Logger = logger
	}

	env := interp.NewEnvironment()
	interp.RegisterSpectest(env, os.Stdout)

	m, err := interp.ReadBinary(env, data, opts)
	if err != nil {
		return fmt.Errorf("error reading binary %s: %w", path, err)
	}

	if f.disassemble {
		interp.DisassembleModule(os.Stdout, env, m)
		return nil
	}
	if f.runAllExports {
		interp.RunAllExports(env, m, opts, os.Stdout)
	}
	return nil
}
