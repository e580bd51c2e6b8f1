package interp

import (
	"fmt"

	"github.com/wasmkit/wain/wasm"
)

// ImportDesc describes one import being resolved against a host
// module: the names, the kind, and the kind-specific type information.
type ImportDesc struct {
	ModuleName string
	FieldName  string
	Kind       wasm.ExternalKind

	// Sig is set for function imports.
	Sig *wasm.FunctionSig
	// Limits is set for table and memory imports.
	Limits wasm.Limits
	// Type and Mutable are set for global imports.
	Type    wasm.ValueType
	Mutable bool
}

// HostImportDelegate lets a host module satisfy imports lazily. Each
// operation receives the import descriptor and the freshly allocated
// entity to populate; returning an error fails the link with a
// printable message.
type HostImportDelegate interface {
	ImportFunc(desc *ImportDesc, f *Func) error
	ImportTable(desc *ImportDesc, t *Table) error
	ImportMemory(desc *ImportDesc, m *Memory) error
	ImportGlobal(desc *ImportDesc, g *Global) error
}

// HostModule owns exports backed by host entities. Imports resolve
// against explicit exports first and fall back to the delegate, which
// may build the entity on demand.
type HostModule struct {
	env         *Environment
	module      *Module
	moduleIndex uint32
	name        string

	// Delegate, when set, satisfies imports that no export matches.
	// It must outlive every module that imports from it.
	Delegate HostImportDelegate
}

// Name returns the name the module was appended under.
func (h *HostModule) Name() string { return h.name }

// Module returns the Environment-owned module record.
func (h *HostModule) Module() *Module { return h.module }

// AppendFuncExport installs a host function export.
func (h *HostModule) AppendFuncExport(name string, sig wasm.FunctionSig, callback HostFuncCallback) uint32 {
	index := h.env.appendFunc(&Func{
		Sig:  sig,
		Host: &HostFunc{ModuleName: h.name, FieldName: name, Callback: callback},
	})
	h.module.addExport(Export{Name: name, Kind: wasm.ExternalKindFunc, Index: index})
	return index
}

// AppendTableExport installs a table export with the given limits.
func (h *HostModule) AppendTableExport(name string, limits wasm.Limits) (uint32, *Table) {
	table := newTable(limits)
	index := h.env.appendTable(table)
	h.module.addExport(Export{Name: name, Kind: wasm.ExternalKindTable, Index: index})
	return index, table
}

// AppendMemoryExport installs a memory export with the given limits.
func (h *HostModule) AppendMemoryExport(name string, limits wasm.Limits) (uint32, *Memory) {
	mem := newMemory(limits)
	index := h.env.appendMemory(mem)
	h.module.addExport(Export{Name: name, Kind: wasm.ExternalKindMemory, Index: index})
	return index, mem
}

// AppendGlobalExport installs an immutable global export.
func (h *HostModule) AppendGlobalExport(name string, value wasm.Value) uint32 {
	index := h.env.appendGlobal(&Global{Value: value})
	h.module.addExport(Export{Name: name, Kind: wasm.ExternalKindGlobal, Index: index})
	return index
}

func (h *HostModule) importFunc(field string, sig *wasm.FunctionSig) (uint32, error) {
	if exp, ok := h.module.resolveExport(field, wasm.ExternalKindFunc); ok {
		if !h.env.Func(exp.Index).Sig.Equals(sig) {
			return 0, fmt.Errorf("import signature mismatch")
		}
		return exp.Index, nil
	}
	if h.Delegate == nil {
		return 0, fmt.Errorf("unknown module field \"%s\"", field)
	}
	f := &Func{Sig: *sig}
	desc := &ImportDesc{ModuleName: h.name, FieldName: field, Kind: wasm.ExternalKindFunc, Sig: sig}
	if err := h.Delegate.ImportFunc(desc, f); err != nil {
		return 0, err
	}
	if f.Host == nil {
		return 0, fmt.Errorf("unknown module field \"%s\"", field)
	}
	return h.env.appendFunc(f), nil
}

func (h *HostModule) importTable(field string, limits wasm.Limits) (uint32, error) {
	if exp, ok := h.module.resolveExport(field, wasm.ExternalKindTable); ok {
		return exp.Index, nil
	}
	if h.Delegate == nil {
		return 0, fmt.Errorf("unknown module field \"%s\"", field)
	}
	table := &Table{}
	desc := &ImportDesc{ModuleName: h.name, FieldName: field, Kind: wasm.ExternalKindTable, Limits: limits}
	if err := h.Delegate.ImportTable(desc, table); err != nil {
		return 0, err
	}
	return h.env.appendTable(table), nil
}

func (h *HostModule) importMemory(field string, limits wasm.Limits) (uint32, error) {
	if exp, ok := h.module.resolveExport(field, wasm.ExternalKindMemory); ok {
		return exp.Index, nil
	}
	if h.Delegate == nil {
		return 0, fmt.Errorf("unknown module field \"%s\"", field)
	}
	mem := &Memory{}
	desc := &ImportDesc{ModuleName: h.name, FieldName: field, Kind: wasm.ExternalKindMemory, Limits: limits}
	if err := h.Delegate.ImportMemory(desc, mem); err != nil {
		return 0, err
	}
	return h.env.appendMemory(mem), nil
}

func (h *HostModule) importGlobal(field string, valType wasm.ValueType) (uint32, error) {
	if exp, ok := h.module.resolveExport(field, wasm.ExternalKindGlobal); ok {
		return exp.Index, nil
	}
	if h.Delegate == nil {
		return 0, fmt.Errorf("unknown module field \"%s\"", field)
	}
	g := &Global{}
	desc := &ImportDesc{ModuleName: h.name, FieldName: field, Kind: wasm.ExternalKindGlobal, Type: valType}
	if err := h.Delegate.ImportGlobal(desc, g); err != nil {
		return 0, err
	}
	return h.env.appendGlobal(g), nil
}
