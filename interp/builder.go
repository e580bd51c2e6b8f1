package interp

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wasmkit/wain/binary"
	"github.com/wasmkit/wain/wasm"
)

// builder consumes the binary reader's callbacks and simultaneously
// enforces validation and constructs the executable image in the
// Environment. All entities it appends are reclaimed by the caller's
// ResetToMark when any callback fails.
type builder struct {
	env     *Environment
	module  *Module
	defined *DefinedModule
	logger  *zap.Logger

	numFuncImports uint32
	// funcSigs maps module-local function indices to declared types.
	funcSigs []*wasm.FunctionSig

	elemSegments []elemSegment
	dataSegments []dataSegment

	// State of the function body being compiled.
	curFunc *DefinedFunc
	locals  []wasm.ValueType // params included
	tc      *typeChecker
	code    []instr
	labels  []buildLabel
	done    bool
}

type elemSegment struct {
	tableIndex uint32 // module-local
	offset     binary.InitExpr
	funcs      []uint32 // module-local
}

type dataSegment struct {
	memoryIndex uint32 // module-local
	offset      binary.InitExpr
	data        []byte
}

// buildLabel parallels one typeChecker label, holding the istream
// bookkeeping: loop entries are branched to directly, forward targets
// collect fixups patched at end.
type buildLabel struct {
	isLoop  bool
	entryPC int
	fixups  []fixup
	// elseFixup is the pending br_unless of an if, patched at else or
	// end. -1 when absent.
	elseFixup int
}

// fixup names one unresolved branch target: instruction index and,
// for br_table, the target slot (-1 means arg0).
type fixup struct {
	instr int
	slot  int
}

func newBuilder(env *Environment, name string) *builder {
	return &builder{
		env:     env,
		logger:  env.logger,
		module:  &Module{Name: name},
		defined: &DefinedModule{StartFunc: -1},
	}
}

func (b *builder) BeginModule() error {
	b.module.Defined = b.defined
	return nil
}

func (b *builder) OnTypeCount(count uint32) error { return nil }

func (b *builder) OnType(index uint32, sig *wasm.FunctionSig) error {
	if len(sig.Results) > 1 {
		return fmt.Errorf("multiple result values not supported")
	}
	b.defined.Sigs = append(b.defined.Sigs, sig)
	return nil
}

func (b *builder) OnImportCount(count uint32) error { return nil }

func (b *builder) importedModule(name string) (*Module, error) {
	m, ok := b.env.findRegisteredModule(name)
	if !ok {
		return nil, fmt.Errorf("unknown import module \"%s\"", name)
	}
	return m, nil
}

func (b *builder) OnImportFunc(importIndex, funcIndex uint32, module, field string, sigIndex uint32) error {
	sig := b.defined.Sigs[sigIndex]
	m, err := b.importedModule(module)
	if err != nil {
		return err
	}
	var envIndex uint32
	if m.Host != nil {
		envIndex, err = m.Host.importFunc(field, sig)
	} else {
		exp, ok := m.resolveExport(field, wasm.ExternalKindFunc)
		if !ok {
			return fmt.Errorf("unknown module field \"%s\"", field)
		}
		if !b.env.Func(exp.Index).Sig.Equals(sig) {
			return fmt.Errorf("import signature mismatch")
		}
		envIndex = exp.Index
	}
	if err != nil {
		return err
	}
	b.defined.FuncIndexes = append(b.defined.FuncIndexes, envIndex)
	b.funcSigs = append(b.funcSigs, sig)
	b.numFuncImports++
	b.logger.Debug("import resolved",
		zap.String("module", module), zap.String("field", field), zap.Uint32("func", envIndex))
	return nil
}

// checkImportLimits applies the linking rules: the resolved entity
// must be at least as large as declared and its maximum no larger.
func checkImportLimits(actual, declared wasm.Limits) error {
	if actual.Initial < declared.Initial {
		return fmt.Errorf("actual size (%d) smaller than declared (%d)", actual.Initial, declared.Initial)
	}
	if declared.HasMax {
		if !actual.HasMax {
			return fmt.Errorf("max size (unspecified) larger than declared (%d)", declared.Max)
		}
		if actual.Max > declared.Max {
			return fmt.Errorf("max size (%d) larger than declared (%d)", actual.Max, declared.Max)
		}
	}
	return nil
}

func (b *builder) OnImportTable(importIndex, tableIndex uint32, module, field string, limits wasm.Limits) error {
	m, err := b.importedModule(module)
	if err != nil {
		return err
	}
	var envIndex uint32
	if m.Host != nil {
		envIndex, err = m.Host.importTable(field, limits)
		if err != nil {
			return err
		}
	} else {
		exp, ok := m.resolveExport(field, wasm.ExternalKindTable)
		if !ok {
			return fmt.Errorf("unknown module field \"%s\"", field)
		}
		envIndex = exp.Index
	}
	if err := checkImportLimits(b.env.Table(envIndex).Limits, limits); err != nil {
		return err
	}
	b.defined.TableIndexes = append(b.defined.TableIndexes, envIndex)
	return nil
}

func (b *builder) OnImportMemory(importIndex, memoryIndex uint32, module, field string, limits wasm.Limits) error {
	m, err := b.importedModule(module)
	if err != nil {
		return err
	}
	var envIndex uint32
	if m.Host != nil {
		envIndex, err = m.Host.importMemory(field, limits)
		if err != nil {
			return err
		}
	} else {
		exp, ok := m.resolveExport(field, wasm.ExternalKindMemory)
		if !ok {
			return fmt.Errorf("unknown module field \"%s\"", field)
		}
		envIndex = exp.Index
	}
	if err := checkImportLimits(b.env.Memory(envIndex).Limits, limits); err != nil {
		return err
	}
	b.defined.MemoryIndexes = append(b.defined.MemoryIndexes, envIndex)
	return nil
}

func (b *builder) OnImportGlobal(importIndex, globalIndex uint32, module, field string, valType wasm.ValueType, mutable bool) error {
	if mutable {
		return fmt.Errorf("mutable globals cannot be imported")
	}
	m, err := b.importedModule(module)
	if err != nil {
		return err
	}
	var envIndex uint32
	if m.Host != nil {
		envIndex, err = m.Host.importGlobal(field, valType)
		if err != nil {
			return err
		}
	} else {
		exp, ok := m.resolveExport(field, wasm.ExternalKindGlobal)
		if !ok {
			return fmt.Errorf("unknown module field \"%s\"", field)
		}
		envIndex = exp.Index
	}
	g := b.env.Global(envIndex)
	if g.Mutable {
		return fmt.Errorf("mutable globals cannot be imported")
	}
	if g.Value.Type != valType {
		return fmt.Errorf("import signature mismatch")
	}
	b.defined.GlobalIndexes = append(b.defined.GlobalIndexes, envIndex)
	return nil
}

func (b *builder) OnFunctionCount(count uint32) error { return nil }

func (b *builder) OnFunction(funcIndex, sigIndex uint32) error {
	sig := b.defined.Sigs[sigIndex]
	f := &Func{
		Sig:     *sig,
		Defined: &DefinedFunc{},
	}
	envIndex := b.env.appendFunc(f)
	b.defined.FuncIndexes = append(b.defined.FuncIndexes, envIndex)
	b.funcSigs = append(b.funcSigs, sig)
	return nil
}

func (b *builder) OnTable(tableIndex uint32, limits wasm.Limits) error {
	envIndex := b.env.appendTable(newTable(limits))
	b.defined.TableIndexes = append(b.defined.TableIndexes, envIndex)
	return nil
}

func (b *builder) OnMemory(memoryIndex uint32, limits wasm.Limits) error {
	envIndex := b.env.appendMemory(newMemory(limits))
	b.defined.MemoryIndexes = append(b.defined.MemoryIndexes, envIndex)
	return nil
}

// evalInitExpr evaluates a constant initializer against the entities
// linked so far.
func (b *builder) evalInitExpr(expr binary.InitExpr) (wasm.Value, error) {
	switch expr.Kind {
	case wasm.OpcodeGlobalGet:
		if int(expr.GlobalIndex) >= len(b.defined.GlobalIndexes) {
			return wasm.Value{}, fmt.Errorf("invalid global index in initializer expression: %d", expr.GlobalIndex)
		}
		return b.env.Global(b.defined.GlobalIndexes[expr.GlobalIndex]).Value, nil
	default:
		return expr.Value, nil
	}
}

func (b *builder) OnGlobal(globalIndex uint32, valType wasm.ValueType, mutable bool, init binary.InitExpr) error {
	v, err := b.evalInitExpr(init)
	if err != nil {
		return err
	}
	if v.Type != valType {
		return fmt.Errorf("type mismatch in global initializer expression, expected %s but got %s",
			wasm.ValueTypeName(valType), wasm.ValueTypeName(v.Type))
	}
	envIndex := b.env.appendGlobal(&Global{Value: v, Mutable: mutable})
	b.defined.GlobalIndexes = append(b.defined.GlobalIndexes, envIndex)
	return nil
}

func (b *builder) OnExport(exportIndex uint32, kind wasm.ExternalKind, itemIndex uint32, name string) error {
	var envIndex uint32
	switch kind {
	case wasm.ExternalKindFunc:
		envIndex = b.defined.FuncIndexes[itemIndex]
	case wasm.ExternalKindTable:
		envIndex = b.defined.TableIndexes[itemIndex]
	case wasm.ExternalKindMemory:
		envIndex = b.defined.MemoryIndexes[itemIndex]
	case wasm.ExternalKindGlobal:
		envIndex = b.defined.GlobalIndexes[itemIndex]
	}
	if !b.module.addExport(Export{Name: name, Kind: kind, Index: envIndex}) {
		return fmt.Errorf("duplicate export \"%s\"", name)
	}
	return nil
}

func (b *builder) OnStartFunction(funcIndex uint32) error {
	sig := b.funcSigs[funcIndex]
	if len(sig.Params) != 0 || len(sig.Results) != 0 {
		return fmt.Errorf("start function must have signature () -> ()")
	}
	b.defined.StartFunc = int(b.defined.FuncIndexes[funcIndex])
	return nil
}

func (b *builder) OnElemSegment(segIndex, tableIndex uint32, offset binary.InitExpr, funcIndexes []uint32) error {
	b.elemSegments = append(b.elemSegments, elemSegment{tableIndex: tableIndex, offset: offset, funcs: funcIndexes})
	return nil
}

func (b *builder) OnDataSegment(segIndex, memoryIndex uint32, offset binary.InitExpr, data []byte) error {
	b.dataSegments = append(b.dataSegments, dataSegment{memoryIndex: memoryIndex, offset: offset, data: data})
	return nil
}

// EndModule applies element and data segments. Each segment's bounds
// are checked against the current target size before any of its
// writes; a partially-applied segment is not permitted.
func (b *builder) EndModule() error {
	for _, seg := range b.elemSegments {
		table := b.env.Table(b.defined.TableIndexes[seg.tableIndex])
		off, err := b.evalInitExpr(seg.offset)
		if err != nil {
			return err
		}
		if off.Type != wasm.ValueTypeI32 {
			return fmt.Errorf("type mismatch in elem segment offset, expected i32 but got %s",
				wasm.ValueTypeName(off.Type))
		}
		offset := uint64(off.I32())
		if offset+uint64(len(seg.funcs)) > uint64(len(table.Entries)) {
			return fmt.Errorf("elem segment offset is out of bounds: %d >= max value %d",
				offset, len(table.Entries))
		}
		for i, fi := range seg.funcs {
			table.Entries[offset+uint64(i)] = b.defined.FuncIndexes[fi]
		}
	}
	for _, seg := range b.dataSegments {
		mem := b.env.Memory(b.defined.MemoryIndexes[seg.memoryIndex])
		off, err := b.evalInitExpr(seg.offset)
		if err != nil {
			return err
		}
		if off.Type != wasm.ValueTypeI32 {
			return fmt.Errorf("type mismatch in data segment offset, expected i32 but got %s",
				wasm.ValueTypeName(off.Type))
		}
		offset := uint64(off.I32())
		if offset+uint64(len(seg.data)) > uint64(len(mem.Data)) {
			return fmt.Errorf("data segment is out of bounds: [%d, %d) >= max value %d",
				offset, offset+uint64(len(seg.data)), len(mem.Data))
		}
		copy(mem.Data[offset:], seg.data)
	}
	b.env.appendModule(b.module)
	b.logger.Debug("module instantiated",
		zap.String("name", b.module.Name),
		zap.Int("funcs", len(b.defined.FuncIndexes)),
		zap.Int("exports", len(b.module.Exports)))
	return nil
}

// ---- code bodies ----

func (b *builder) BeginFunctionBody(funcIndex uint32, locals []wasm.ValueType) error {
	envIndex := b.defined.FuncIndexes[funcIndex]
	f := b.env.Func(envIndex)
	b.curFunc = f.Defined
	b.curFunc.ModuleIndex = b.env.ModuleCount() // assigned at EndModule append
	b.curFunc.Locals = locals
	b.locals = append(append([]wasm.ValueType{}, f.Sig.Params...), locals...)
	b.tc = newTypeChecker(&f.Sig)
	b.code = b.code[:0]
	b.labels = b.labels[:0]
	b.labels = append(b.labels, buildLabel{elseFixup: -1})
	b.done = false
	return nil
}

func (b *builder) EndFunctionBody(funcIndex uint32) error {
	if !b.done {
		return fmt.Errorf("unexpected end of function body")
	}
	b.curFunc.Code = append([]instr{}, b.code...)
	b.curFunc = nil
	return nil
}

func (b *builder) emit(i instr) int {
	b.code = append(b.code, i)
	return len(b.code) - 1
}

func (b *builder) pc() int { return len(b.code) }

func (b *builder) topBuildLabel() *buildLabel {
	return &b.labels[len(b.labels)-1]
}

// dropKeep computes how many stack slots a branch to depth discards
// and how many branch values it carries over them. In polymorphic
// mode the emitted branch is unreachable, so zeros are fine.
func (b *builder) dropKeep(depth uint32, popCond bool) (drop, keep uint32) {
	lbl, err := b.tc.label(depth)
	if err != nil {
		// The checker rejects the branch right after; zeros are fine.
		return 0, 0
	}
	keep = uint32(len(lbl.branchTypes()))
	height := b.tc.stackHeight()
	if popCond {
		height--
	}
	d := height - lbl.stackLimit - int(keep)
	if d < 0 || b.tc.topLabel().unreachable {
		return 0, keep
	}
	return uint32(d), keep
}

// emitBr emits the compiled branch for depth, already type-checked.
// Branching to the function label compiles to return.
func (b *builder) emitBr(op wasm.Opcode, depth uint32, drop, keep uint32) {
	if int(depth) == len(b.labels)-1 {
		// The function label: return keeps the declared results.
		if op == wasm.OpcodeBr {
			b.emit(instr{op: wasm.OpcodeReturn, arg0: uint64(len(b.tc.sig.Results))})
		} else {
			// A conditional return routes through a synthetic return;
			// the fallthrough branch jumps over it.
			idx := b.emit(instr{op: op, arg0: uint64(0), arg1: uint64(drop), arg2: uint64(keep)})
			b.emit(instr{op: wasm.OpcodeBr, arg0: uint64(idx + 3)})
			b.emit(instr{op: wasm.OpcodeReturn, arg0: uint64(len(b.tc.sig.Results))})
			b.code[idx].arg0 = uint64(idx + 2)
		}
		return
	}
	lbl := &b.labels[len(b.labels)-1-int(depth)]
	idx := b.emit(instr{op: op, arg1: uint64(drop), arg2: uint64(keep)})
	if lbl.isLoop {
		b.code[idx].arg0 = uint64(lbl.entryPC)
	} else {
		lbl.fixups = append(lbl.fixups, fixup{instr: idx, slot: -1})
	}
}

func (b *builder) patchLabel(lbl *buildLabel) {
	end := uint64(b.pc())
	for _, f := range lbl.fixups {
		if f.slot < 0 {
			b.code[f.instr].arg0 = end
		} else {
			b.code[f.instr].targets[f.slot].pc = uint32(end)
		}
	}
	if lbl.elseFixup >= 0 {
		b.code[lbl.elseFixup].arg0 = end
	}
}

func blockResults(blockType byte) []wasm.ValueType {
	if blockType == wasm.BlockTypeEmpty {
		return nil
	}
	return []wasm.ValueType{blockType}
}

func (b *builder) OnOpcodeBlock(op wasm.Opcode, blockType byte) error {
	results := blockResults(blockType)
	switch op {
	case wasm.OpcodeBlock:
		b.tc.onBlock(results)
		b.labels = append(b.labels, buildLabel{elseFixup: -1})
	case wasm.OpcodeLoop:
		b.tc.onLoop(results)
		b.labels = append(b.labels, buildLabel{isLoop: true, entryPC: b.pc(), elseFixup: -1})
	case wasm.OpcodeIf:
		if err := b.tc.onIf(results); err != nil {
			return err
		}
		idx := b.emit(instr{op: opBrUnless})
		b.labels = append(b.labels, buildLabel{elseFixup: idx})
	}
	return nil
}

func (b *builder) onElse() error {
	if len(b.labels) < 2 {
		return fmt.Errorf("unexpected else")
	}
	if err := b.tc.onElse(); err != nil {
		return err
	}
	lbl := b.topBuildLabel()
	// Jump the true arm over the else body, then land the pending
	// br_unless here.
	idx := b.emit(instr{op: wasm.OpcodeBr})
	lbl.fixups = append(lbl.fixups, fixup{instr: idx, slot: -1})
	b.code[lbl.elseFixup].arg0 = uint64(b.pc())
	lbl.elseFixup = -1
	return nil
}

func (b *builder) onEnd() error {
	if len(b.labels) == 1 {
		// The function body's final end: the implicit return.
		if err := b.tc.endFunction(); err != nil {
			return err
		}
		b.patchLabel(&b.labels[0])
		b.emit(instr{op: wasm.OpcodeReturn, arg0: uint64(len(b.tc.sig.Results))})
		b.labels = b.labels[:0]
		b.done = true
		return nil
	}
	if err := b.tc.onEnd(); err != nil {
		return err
	}
	b.patchLabel(b.topBuildLabel())
	b.labels = b.labels[:len(b.labels)-1]
	return nil
}

func (b *builder) OnOpcodeBare(op wasm.Opcode) error {
	switch op {
	case wasm.OpcodeEnd:
		return b.onEnd()
	case wasm.OpcodeElse:
		return b.onElse()
	case wasm.OpcodeNop:
		return nil
	case wasm.OpcodeUnreachable:
		b.tc.setUnreachable()
		b.emit(instr{op: op})
		return nil
	case wasm.OpcodeReturn:
		if err := b.tc.onReturn(); err != nil {
			return err
		}
		b.emit(instr{op: wasm.OpcodeReturn, arg0: uint64(len(b.tc.sig.Results))})
		return nil
	case wasm.OpcodeDrop:
		if err := b.tc.onDrop(); err != nil {
			return err
		}
		b.emit(instr{op: op})
		return nil
	case wasm.OpcodeSelect:
		if _, err := b.tc.onSelect(); err != nil {
			return err
		}
		b.emit(instr{op: op})
		return nil
	case wasm.OpcodeMemorySize, wasm.OpcodeMemoryGrow:
		memIndex, err := b.memoryIndex()
		if err != nil {
			return err
		}
		var sig wasm.FunctionSig
		if op == wasm.OpcodeMemoryGrow {
			sig = wasm.FunctionSig{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
		} else {
			sig = wasm.FunctionSig{Results: []wasm.ValueType{wasm.ValueTypeI32}}
		}
		if err := b.tc.checkSignature(&sig, wasm.OpcodeName(op)); err != nil {
			return err
		}
		b.emit(instr{op: op, arg0: uint64(memIndex)})
		return nil
	}
	// Numeric instructions.
	sig, ok := numericSigs[op]
	if !ok {
		return fmt.Errorf("unexpected opcode: 0x%x", op)
	}
	if err := b.tc.checkSignature(&sig, wasm.OpcodeName(op)); err != nil {
		return err
	}
	b.emit(instr{op: op})
	return nil
}

func (b *builder) memoryIndex() (uint32, error) {
	if len(b.defined.MemoryIndexes) == 0 {
		return 0, fmt.Errorf("unknown memory 0")
	}
	return b.defined.MemoryIndexes[0], nil
}

func (b *builder) OnOpcodeIndex(op wasm.Opcode, index uint32) error {
	switch op {
	case wasm.OpcodeBr:
		drop, keep := b.dropKeep(index, false)
		if err := b.tc.onBr(index); err != nil {
			return err
		}
		b.emitBr(wasm.OpcodeBr, index, drop, keep)
		return nil
	case wasm.OpcodeBrIf:
		drop, keep := b.dropKeep(index, true)
		if err := b.tc.onBrIf(index); err != nil {
			return err
		}
		b.emitBr(wasm.OpcodeBrIf, index, drop, keep)
		return nil
	case wasm.OpcodeCall:
		if int(index) >= len(b.funcSigs) {
			return fmt.Errorf("invalid call function index: %d (max %d)", index, len(b.funcSigs))
		}
		if err := b.tc.checkSignature(b.funcSigs[index], "call"); err != nil {
			return err
		}
		b.emit(instr{op: op, arg0: uint64(b.defined.FuncIndexes[index])})
		return nil
	case wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee:
		if int(index) >= len(b.locals) {
			return fmt.Errorf("invalid %s index: %d (max %d)", wasm.OpcodeName(op), index, len(b.locals))
		}
		t := b.locals[index]
		switch op {
		case wasm.OpcodeLocalGet:
			b.tc.push(t)
		case wasm.OpcodeLocalSet:
			if err := b.tc.popAndCheck([]wasm.ValueType{t}, wasm.OpcodeName(op)); err != nil {
				return err
			}
		case wasm.OpcodeLocalTee:
			if err := b.tc.popAndCheck([]wasm.ValueType{t}, wasm.OpcodeName(op)); err != nil {
				return err
			}
			b.tc.push(t)
		}
		b.emit(instr{op: op, arg0: uint64(index)})
		return nil
	case wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet:
		if int(index) >= len(b.defined.GlobalIndexes) {
			return fmt.Errorf("invalid %s index: %d (max %d)", wasm.OpcodeName(op), index, len(b.defined.GlobalIndexes))
		}
		envIndex := b.defined.GlobalIndexes[index]
		g := b.env.Global(envIndex)
		if op == wasm.OpcodeGlobalGet {
			b.tc.push(g.Value.Type)
		} else {
			if !g.Mutable {
				return fmt.Errorf("can't global.set on immutable global at index %d", index)
			}
			if err := b.tc.popAndCheck([]wasm.ValueType{g.Value.Type}, wasm.OpcodeName(op)); err != nil {
				return err
			}
		}
		b.emit(instr{op: op, arg0: uint64(envIndex)})
		return nil
	}
	return fmt.Errorf("unexpected opcode: 0x%x", op)
}

func (b *builder) OnOpcodeBrTable(targets []uint32, defaultTarget uint32) error {
	// Drop/keep per arm, computed before the checker goes polymorphic.
	all := make([]branchTarget, 0, len(targets)+1)
	for _, t := range append(append([]uint32{}, targets...), defaultTarget) {
		if _, err := b.tc.label(t); err != nil {
			return err
		}
		drop, keep := b.dropKeep(t, true)
		all = append(all, branchTarget{drop: drop, keep: keep})
	}
	if err := b.tc.onBrTable(targets, defaultTarget); err != nil {
		return err
	}
	idx := b.emit(instr{op: wasm.OpcodeBrTable, targets: all})
	depths := append(append([]uint32{}, targets...), defaultTarget)
	for slot, depth := range depths {
		if int(depth) == len(b.labels)-1 {
			// Branch to the function label: route through a synthetic
			// return appended after the table.
			retPC := uint32(b.pc())
			b.code[idx].targets[slot].pc = retPC
			b.emit(instr{op: wasm.OpcodeReturn, arg0: uint64(len(b.tc.sig.Results))})
			continue
		}
		lbl := &b.labels[len(b.labels)-1-int(depth)]
		if lbl.isLoop {
			b.code[idx].targets[slot].pc = uint32(lbl.entryPC)
		} else {
			lbl.fixups = append(lbl.fixups, fixup{instr: idx, slot: slot})
		}
	}
	return nil
}

func (b *builder) OnOpcodeCallIndirect(sigIndex, tableIndex uint32) error {
	if len(b.defined.TableIndexes) == 0 {
		return fmt.Errorf("unknown table 0")
	}
	sig := b.defined.Sigs[sigIndex]
	if err := b.tc.popAndCheck([]wasm.ValueType{wasm.ValueTypeI32}, "call_indirect"); err != nil {
		return err
	}
	if err := b.tc.checkSignature(sig, "call_indirect"); err != nil {
		return err
	}
	b.emit(instr{
		op:   wasm.OpcodeCallIndirect,
		arg0: uint64(sigIndex),
		arg1: uint64(b.defined.TableIndexes[0]),
	})
	return nil
}

func (b *builder) OnOpcodeI32Const(value int32) error {
	b.tc.push(wasm.ValueTypeI32)
	b.emit(instr{op: wasm.OpcodeI32Const, arg0: uint64(uint32(value))})
	return nil
}

func (b *builder) OnOpcodeI64Const(value int64) error {
	b.tc.push(wasm.ValueTypeI64)
	b.emit(instr{op: wasm.OpcodeI64Const, arg0: uint64(value)})
	return nil
}

func (b *builder) OnOpcodeF32Const(bits uint32) error {
	b.tc.push(wasm.ValueTypeF32)
	b.emit(instr{op: wasm.OpcodeF32Const, arg0: uint64(bits)})
	return nil
}

func (b *builder) OnOpcodeF64Const(bits uint64) error {
	b.tc.push(wasm.ValueTypeF64)
	b.emit(instr{op: wasm.OpcodeF64Const, arg0: bits})
	return nil
}

// loadStoreDescs maps each memory instruction to its access width and
// value type.
type loadStoreDesc struct {
	valueType wasm.ValueType
	size      uint32
	store     bool
}

var loadStoreDescs = map[wasm.Opcode]loadStoreDesc{
	wasm.OpcodeI32Load:    {wasm.ValueTypeI32, 4, false},
	wasm.OpcodeI64Load:    {wasm.ValueTypeI64, 8, false},
	wasm.OpcodeF32Load:    {wasm.ValueTypeF32, 4, false},
	wasm.OpcodeF64Load:    {wasm.ValueTypeF64, 8, false},
	wasm.OpcodeI32Load8S:  {wasm.ValueTypeI32, 1, false},
	wasm.OpcodeI32Load8U:  {wasm.ValueTypeI32, 1, false},
	wasm.OpcodeI32Load16S: {wasm.ValueTypeI32, 2, false},
	wasm.OpcodeI32Load16U: {wasm.ValueTypeI32, 2, false},
	wasm.OpcodeI64Load8S:  {wasm.ValueTypeI64, 1, false},
	wasm.OpcodeI64Load8U:  {wasm.ValueTypeI64, 1, false},
	wasm.OpcodeI64Load16S: {wasm.ValueTypeI64, 2, false},
	wasm.OpcodeI64Load16U: {wasm.ValueTypeI64, 2, false},
	wasm.OpcodeI64Load32S: {wasm.ValueTypeI64, 4, false},
	wasm.OpcodeI64Load32U: {wasm.ValueTypeI64, 4, false},
	wasm.OpcodeI32Store:   {wasm.ValueTypeI32, 4, true},
	wasm.OpcodeI64Store:   {wasm.ValueTypeI64, 8, true},
	wasm.OpcodeF32Store:   {wasm.ValueTypeF32, 4, true},
	wasm.OpcodeF64Store:   {wasm.ValueTypeF64, 8, true},
	wasm.OpcodeI32Store8:  {wasm.ValueTypeI32, 1, true},
	wasm.OpcodeI32Store16: {wasm.ValueTypeI32, 2, true},
	wasm.OpcodeI64Store8:  {wasm.ValueTypeI64, 1, true},
	wasm.OpcodeI64Store16: {wasm.ValueTypeI64, 2, true},
	wasm.OpcodeI64Store32: {wasm.ValueTypeI64, 4, true},
}

func (b *builder) OnOpcodeLoadStore(op wasm.Opcode, align, offset uint32) error {
	memIndex, err := b.memoryIndex()
	if err != nil {
		return err
	}
	desc := loadStoreDescs[op]
	// Alignment may not exceed the natural width; the hint is
	// otherwise ignored.
	if align > 31 || uint32(1)<<align > desc.size {
		return fmt.Errorf("alignment must not be larger than natural alignment (%d)", desc.size)
	}
	name := wasm.OpcodeName(op)
	if desc.store {
		if err := b.tc.popAndCheck([]wasm.ValueType{wasm.ValueTypeI32, desc.valueType}, name); err != nil {
			return err
		}
	} else {
		if err := b.tc.popAndCheck([]wasm.ValueType{wasm.ValueTypeI32}, name); err != nil {
			return err
		}
		b.tc.push(desc.valueType)
	}
	b.emit(instr{op: op, arg0: uint64(offset), arg1: uint64(memIndex)})
	return nil
}
