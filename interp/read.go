package interp

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/wasmkit/wain/binary"
	"github.com/wasmkit/wain/wasm"
)

// Options configure loading and execution. Stack sizes are fixed at
// thread construction; they are configuration, not contract.
type Options struct {
	// Name binds the loaded module for later FindModule lookups.
	Name string

	ValueStackSize int
	CallStackSize  int

	// Trace writes one line per executed instruction to TraceStream.
	Trace       bool
	TraceStream io.Writer

	// Logger receives structured load and link events. Nil keeps the
	// Environment's current logger.
	Logger *zap.Logger

	// RunAllExports is a front-end setting: ReadBinary does not read it,
	// and the caller invokes the RunAllExports function itself.
	// SpecMode formats that function's output for the conformance harness.
	RunAllExports bool
	SpecMode      bool
}

// DefaultOptions returns the documented defaults: 16 Ki value slots,
// 1 Ki frames, no tracing.
func DefaultOptions() *Options {
	return &Options{
		ValueStackSize: 16384,
		CallStackSize:  1024,
	}
}

// ReadBinary decodes, validates and instantiates a binary module in
// env, then runs its start function. Every failure rolls the
// Environment back to the mark taken before the load, so a failed
// instantiation leaves no trace.
func ReadBinary(env *Environment, data []byte, opts *Options) (*Module, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Logger != nil {
		env.SetLogger(opts.Logger)
	}
	mark := env.Mark()
	b := newBuilder(env, opts.Name)
	if err := binary.Read(data, b); err != nil {
		env.ResetToMark(mark)
		return nil, err
	}
	m := b.module
	if m.Defined.StartFunc >= 0 {
		thread := NewThread(env, opts)
		if res, _ := thread.RunFunction(uint32(m.Defined.StartFunc)); res.IsTrap() {
			env.ResetToMark(mark)
			return nil, fmt.Errorf("start function trapped: %s", res)
		}
	}
	env.logger.Debug("module loaded", zap.String("name", m.Name), zap.Int("size", len(data)))
	return m, nil
}

// RunAllExports invokes every exported function of m with zero-value
// arguments, writing one line per call to w. SpecMode prints only
// traps, the way the conformance harness expects.
func RunAllExports(env *Environment, m *Module, opts *Options, w io.Writer) {
	thread := NewThread(env, opts)
	specMode := opts != nil && opts.SpecMode
	for _, exp := range m.Exports {
		if exp.Kind != wasm.ExternalKindFunc {
			continue
		}
		f := env.Func(exp.Index)
		args := make([]wasm.Value, len(f.Sig.Params))
		for i, p := range f.Sig.Params {
			args[i] = wasm.Value{Type: p}
		}
		result, values := thread.RunFunction(exp.Index, args...)
		switch {
		case result.IsTrap():
			fmt.Fprintf(w, "%s() => error: %s\n", exp.Name, result)
		case specMode:
			// Quiet on success.
		default:
			strs := make([]string, len(values))
			for i, v := range values {
				strs[i] = v.String()
			}
			fmt.Fprintf(w, "%s() => %s\n", exp.Name, strings.Join(strs, ", "))
		}
	}
}
