package interp

import (
	"github.com/wasmkit/wain/wasm"
)

// invalidIndex is the sentinel for an uninitialized table slot.
const invalidIndex = ^uint32(0)

// Export names one entity of a module. Index is absolute into the
// owning Environment's vector for the kind.
type Export struct {
	Name  string
	Kind  wasm.ExternalKind
	Index uint32
}

// Module is either a defined module decoded from a binary or a host
// module built through AppendHostModule. Exactly one of Defined and
// Host is set; all dispatch is explicit on the tag.
type Module struct {
	Name    string
	Exports []Export

	Defined *DefinedModule
	Host    *HostModule

	exportMap map[string]int
}

// GetExport looks up an export by name.
func (m *Module) GetExport(name string) (*Export, bool) {
	i, ok := m.exportMap[name]
	if !ok {
		return nil, false
	}
	return &m.Exports[i], true
}

func (m *Module) addExport(e Export) bool {
	if _, dup := m.exportMap[e.Name]; dup {
		return false
	}
	if m.exportMap == nil {
		m.exportMap = map[string]int{}
	}
	m.exportMap[e.Name] = len(m.Exports)
	m.Exports = append(m.Exports, e)
	return true
}

// DefinedModule owns absolute indices into the Environment vectors,
// never pointers, so a failed load can be rolled back by truncation.
type DefinedModule struct {
	// Sigs are the module's declared function types, referenced by
	// call_indirect immediates.
	Sigs []*wasm.FunctionSig

	// Entity indices in module-local order (imports first).
	FuncIndexes   []uint32
	TableIndexes  []uint32
	MemoryIndexes []uint32
	GlobalIndexes []uint32

	// StartFunc is an absolute function index, or -1 when the module
	// declares no start function.
	StartFunc int
}

// Func is a callable: a defined function with a compiled body or a
// host callback. Exactly one of Defined and Host is set.
type Func struct {
	Sig wasm.FunctionSig

	Defined *DefinedFunc
	Host    *HostFunc
}

// DefinedFunc is a function compiled from a code-section body.
type DefinedFunc struct {
	// ModuleIndex is the absolute index of the owning module.
	ModuleIndex uint32
	// Locals are the declared local types, params excluded, expanded.
	Locals []wasm.ValueType
	// Code is the compiled instruction stream.
	Code []instr
}

// HostFuncCallback receives the marshalled arguments and writes its
// results into the supplied buffer. Any returned trap surfaces to the
// Wasm caller as TrapHostTrapped.
type HostFuncCallback func(args, results []wasm.Value) Result

// HostFunc is a function provided by a host module.
type HostFunc struct {
	ModuleName string
	FieldName  string
	Callback   HostFuncCallback
}

// Table is a vector of absolute function indices; invalidIndex marks
// an empty slot.
type Table struct {
	Limits  wasm.Limits
	Entries []uint32
}

func newTable(limits wasm.Limits) *Table {
	entries := make([]uint32, limits.Initial)
	for i := range entries {
		entries[i] = invalidIndex
	}
	return &Table{Limits: limits, Entries: entries}
}

// Memory is a contiguous byte buffer sized in 64 KiB pages.
type Memory struct {
	Limits wasm.Limits
	Data   []byte
}

func newMemory(limits wasm.Limits) *Memory {
	return &Memory{Limits: limits, Data: make([]byte, uint64(limits.Initial)*wasm.PageSize)}
}

// Pages returns the current page count.
func (m *Memory) Pages() uint32 {
	return uint32(uint64(len(m.Data)) / wasm.PageSize)
}

// Grow appends delta zeroed pages and returns the old page count, or
// -1 (as uint32) when the limit would be exceeded. Existing contents
// are never moved semantically; unaffected pages keep their bytes.
func (m *Memory) Grow(delta uint32) uint32 {
	old := m.Pages()
	max := uint32(wasm.MaxPages)
	if m.Limits.HasMax && m.Limits.Max < max {
		max = m.Limits.Max
	}
	newPages := uint64(old) + uint64(delta)
	if newPages > uint64(max) {
		return invalidIndex
	}
	m.Data = append(m.Data, make([]byte, uint64(delta)*wasm.PageSize)...)
	return old
}

// Global is a typed value with a mutability flag.
type Global struct {
	Value   wasm.Value
	Mutable bool
}
