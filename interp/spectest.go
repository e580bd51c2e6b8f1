package interp

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/wasmkit/wain/wasm"
)

// SpectestDelegate is the reference host-import delegate used by the
// conformance suite: a print function that echoes its arguments, a
// table with limits (10, 20), a memory of 1 page (max 2), and constant
// globals keyed by declared type. print output is diagnostic only.
type SpectestDelegate struct {
	Out    io.Writer
	logger *zap.Logger
}

// RegisterSpectest appends the spectest host module to env, writing
// print output to out (io.Discard when nil).
func RegisterSpectest(env *Environment, out io.Writer) *HostModule {
	if out == nil {
		out = io.Discard
	}
	host := env.AppendHostModule("spectest")
	host.Delegate = &SpectestDelegate{Out: out, logger: env.logger}
	return host
}

func (d *SpectestDelegate) ImportFunc(desc *ImportDesc, f *Func) error {
	out := d.Out
	name := desc.FieldName
	f.Host = &HostFunc{
		ModuleName: desc.ModuleName,
		FieldName:  name,
		Callback: func(args, results []wasm.Value) Result {
			fmt.Fprintf(out, "called host %s.%s(", desc.ModuleName, name)
			for i, a := range args {
				if i > 0 {
					fmt.Fprint(out, ", ")
				}
				fmt.Fprint(out, a.String())
			}
			fmt.Fprintln(out, ") =>")
			for i := range results {
				results[i] = wasm.Value{Type: desc.Sig.Results[i]}
			}
			return ResultOk
		},
	}
	return nil
}

func (d *SpectestDelegate) ImportTable(desc *ImportDesc, t *Table) error {
	*t = *newTable(wasm.Limits{Initial: 10, Max: 20, HasMax: true})
	d.logger.Debug("spectest table imported", zap.String("field", desc.FieldName))
	return nil
}

func (d *SpectestDelegate) ImportMemory(desc *ImportDesc, m *Memory) error {
	*m = *newMemory(wasm.Limits{Initial: 1, Max: 2, HasMax: true})
	d.logger.Debug("spectest memory imported", zap.String("field", desc.FieldName))
	return nil
}

func (d *SpectestDelegate) ImportGlobal(desc *ImportDesc, g *Global) error {
	switch desc.Type {
	case wasm.ValueTypeI32:
		g.Value = wasm.I32Value(666)
	case wasm.ValueTypeI64:
		g.Value = wasm.I64Value(666)
	case wasm.ValueTypeF32:
		g.Value = wasm.F32Value(666)
	case wasm.ValueTypeF64:
		g.Value = wasm.F64Value(666)
	default:
		return fmt.Errorf("unknown global type 0x%x", desc.Type)
	}
	return nil
}
