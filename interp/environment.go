package interp

import (
	"go.uber.org/zap"

	"github.com/wasmkit/wain/wasm"
)

// Environment is the per-interpreter registry of modules, functions,
// tables, memories and globals, plus the name bindings used to link
// imports. Its vectors are append-only between marks; ResetToMark
// truncates them, undoing a failed instantiation.
type Environment struct {
	funcs    []*Func
	tables   []*Table
	memories []*Memory
	globals  []*Global
	modules  []*Module

	// moduleBindings names modules for driver lookups; registered
	// bindings are the names visible to import resolution.
	moduleBindings     map[string]uint32
	registeredBindings map[string]uint32

	logger *zap.Logger
}

// NewEnvironment returns an empty Environment with a nop logger.
func NewEnvironment() *Environment {
	return &Environment{
		moduleBindings:     map[string]uint32{},
		registeredBindings: map[string]uint32{},
		logger:             zap.NewNop(),
	}
}

// SetLogger replaces the Environment's logger. A nil logger restores
// the nop default.
func (e *Environment) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	e.logger = l
}

func (e *Environment) Func(i uint32) *Func     { return e.funcs[i] }
func (e *Environment) Table(i uint32) *Table   { return e.tables[i] }
func (e *Environment) Memory(i uint32) *Memory { return e.memories[i] }
func (e *Environment) Global(i uint32) *Global { return e.globals[i] }
func (e *Environment) Module(i uint32) *Module { return e.modules[i] }
func (e *Environment) FuncCount() uint32       { return uint32(len(e.funcs)) }
func (e *Environment) ModuleCount() uint32     { return uint32(len(e.modules)) }

func (e *Environment) appendFunc(f *Func) uint32 {
	e.funcs = append(e.funcs, f)
	return uint32(len(e.funcs) - 1)
}

func (e *Environment) appendTable(t *Table) uint32 {
	e.tables = append(e.tables, t)
	return uint32(len(e.tables) - 1)
}

func (e *Environment) appendMemory(m *Memory) uint32 {
	e.memories = append(e.memories, m)
	return uint32(len(e.memories) - 1)
}

func (e *Environment) appendGlobal(g *Global) uint32 {
	e.globals = append(e.globals, g)
	return uint32(len(e.globals) - 1)
}

func (e *Environment) appendModule(m *Module) uint32 {
	e.modules = append(e.modules, m)
	index := uint32(len(e.modules) - 1)
	if m.Name != "" {
		e.moduleBindings[m.Name] = index
	}
	return index
}

// AppendHostModule creates a host module, binds its name for import
// resolution and returns it so the caller can install a delegate and
// exports.
func (e *Environment) AppendHostModule(name string) *HostModule {
	host := &HostModule{env: e, name: name}
	m := &Module{Name: name, Host: host}
	host.moduleIndex = e.appendModule(m)
	host.module = m
	e.registeredBindings[name] = host.moduleIndex
	e.logger.Debug("host module appended", zap.String("name", name))
	return host
}

// RegisterModule makes the module visible to import resolution under
// alias.
func (e *Environment) RegisterModule(alias string, moduleIndex uint32) {
	e.registeredBindings[alias] = moduleIndex
	e.logger.Debug("module registered", zap.String("as", alias), zap.Uint32("module", moduleIndex))
}

// FindModule resolves a driver-visible module name: registered
// aliases win over binary names.
func (e *Environment) FindModule(name string) (*Module, bool) {
	if i, ok := e.registeredBindings[name]; ok {
		return e.modules[i], true
	}
	if i, ok := e.moduleBindings[name]; ok {
		return e.modules[i], true
	}
	return nil, false
}

// findRegisteredModule resolves an import's module name.
func (e *Environment) findRegisteredModule(name string) (*Module, bool) {
	i, ok := e.registeredBindings[name]
	if !ok {
		return nil, false
	}
	return e.modules[i], true
}

// LastModule returns the most recently instantiated module, or nil.
func (e *Environment) LastModule() *Module {
	if len(e.modules) == 0 {
		return nil
	}
	return e.modules[len(e.modules)-1]
}

// Mark snapshots the sizes of every Environment vector. The binding
// maps are not snapshotted: ResetToMark deletes bindings that point at
// modules past the mark, and a binding that a rolled-back load
// replaced is removed rather than restored.
type Mark struct {
	funcs    int
	tables   int
	memories int
	globals  int
	modules  int
}

// Mark takes a rollback point for the next load.
func (e *Environment) Mark() Mark {
	return Mark{
		funcs:    len(e.funcs),
		tables:   len(e.tables),
		memories: len(e.memories),
		globals:  len(e.globals),
		modules:  len(e.modules),
	}
}

// ResetToMark truncates every vector to the mark and drops bindings
// that point at removed modules. Only failed loads are rolled back;
// instances from successful loads are never removed.
func (e *Environment) ResetToMark(m Mark) {
	e.funcs = e.funcs[:m.funcs]
	e.tables = e.tables[:m.tables]
	e.memories = e.memories[:m.memories]
	e.globals = e.globals[:m.globals]
	e.modules = e.modules[:m.modules]
	for name, i := range e.moduleBindings {
		if int(i) >= m.modules {
			delete(e.moduleBindings, name)
		}
	}
	for name, i := range e.registeredBindings {
		if int(i) >= m.modules {
			delete(e.registeredBindings, name)
		}
	}
	e.logger.Debug("environment rolled back",
		zap.Int("modules", m.modules), zap.Int("funcs", m.funcs))
}

// resolveExport finds the export of module matching (field, kind). It
// matches name and kind only; callers check signatures and limits.
// Host modules consult it first and fall back to their delegate.
func (m *Module) resolveExport(field string, kind wasm.ExternalKind) (*Export, bool) {
	exp, ok := m.GetExport(field)
	if !ok || exp.Kind != kind {
		return nil, false
	}
	return exp, true
}
