// Package binary streams a WebAssembly binary module section by
// section, emitting strongly-typed callbacks on a Delegate. It checks
// structure only: magic and version, LEB128 encoding, section order,
// UTF-8 of names, and indices against declared counts. Operand typing
// is the consumer's job.
package binary

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/wasmkit/wain/internal/leb128"
	"github.com/wasmkit/wain/wasm"
)

// Magic is the 4-byte preamble `\0asm` of every binary module.
var Magic = []byte{0x00, 0x61, 0x73, 0x6d}

// Version is the MVP binary format version in little-endian order.
var Version = []byte{0x01, 0x00, 0x00, 0x00}

// Section ids of the MVP binary format.
const (
	SectionIDCustom   byte = 0
	SectionIDType     byte = 1
	SectionIDImport   byte = 2
	SectionIDFunction byte = 3
	SectionIDTable    byte = 4
	SectionIDMemory   byte = 5
	SectionIDGlobal   byte = 6
	SectionIDExport   byte = 7
	SectionIDStart    byte = 8
	SectionIDElement  byte = 9
	SectionIDCode     byte = 10
	SectionIDData     byte = 11
)

// InitExpr is a decoded constant initializer expression: one constant
// or global.get instruction terminated by end.
type InitExpr struct {
	Kind        wasm.Opcode // I32Const, I64Const, F32Const, F64Const or GlobalGet
	Value       wasm.Value  // set for the constant kinds
	GlobalIndex uint32      // set when Kind == OpcodeGlobalGet
}

// Delegate receives one callback per declaration and per instruction.
// Returning an error aborts decoding; the reader wraps it with the
// current byte offset.
type Delegate interface {
	BeginModule() error

	OnTypeCount(count uint32) error
	OnType(index uint32, sig *wasm.FunctionSig) error

	OnImportCount(count uint32) error
	OnImportFunc(importIndex, funcIndex uint32, module, field string, sigIndex uint32) error
	OnImportTable(importIndex, tableIndex uint32, module, field string, limits wasm.Limits) error
	OnImportMemory(importIndex, memoryIndex uint32, module, field string, limits wasm.Limits) error
	OnImportGlobal(importIndex, globalIndex uint32, module, field string, valType wasm.ValueType, mutable bool) error

	OnFunctionCount(count uint32) error
	OnFunction(funcIndex, sigIndex uint32) error

	OnTable(tableIndex uint32, limits wasm.Limits) error
	OnMemory(memoryIndex uint32, limits wasm.Limits) error
	OnGlobal(globalIndex uint32, valType wasm.ValueType, mutable bool, init InitExpr) error

	OnExport(exportIndex uint32, kind wasm.ExternalKind, itemIndex uint32, name string) error
	OnStartFunction(funcIndex uint32) error

	OnElemSegment(segIndex, tableIndex uint32, offset InitExpr, funcIndexes []uint32) error
	OnDataSegment(segIndex, memoryIndex uint32, offset InitExpr, data []byte) error

	BeginFunctionBody(funcIndex uint32, locals []wasm.ValueType) error
	OnOpcodeBare(op wasm.Opcode) error
	OnOpcodeBlock(op wasm.Opcode, blockType byte) error
	OnOpcodeIndex(op wasm.Opcode, index uint32) error
	OnOpcodeCallIndirect(sigIndex, tableIndex uint32) error
	OnOpcodeBrTable(targets []uint32, defaultTarget uint32) error
	OnOpcodeI32Const(value int32) error
	OnOpcodeI64Const(value int64) error
	OnOpcodeF32Const(bits uint32) error
	OnOpcodeF64Const(bits uint64) error
	OnOpcodeLoadStore(op wasm.Opcode, align, offset uint32) error
	EndFunctionBody(funcIndex uint32) error

	EndModule() error
}

// reader tracks position so every error carries the byte offset where
// decoding stopped.
type reader struct {
	data     []byte
	pos      int
	delegate Delegate

	numSigs            uint32
	numFuncImports     uint32
	numFuncs           uint32 // imports included
	numTables          uint32
	numMemories        uint32
	numGlobals         uint32
	funcSectionCount   uint32
	codeSectionCount   uint32
	sawFunctionSection bool
	sawCodeSection     bool
}

// Read decodes data, driving the delegate. It returns the first
// structural error or the first error returned by a callback, with the
// byte offset at which it was raised.
func Read(data []byte, delegate Delegate) error {
	r := &reader{data: data, delegate: delegate}
	return r.readModule()
}

func (r *reader) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%06x: %s", r.pos, fmt.Sprintf(format, args...))
}

func (r *reader) callback(err error) error {
	if err != nil {
		return fmt.Errorf("%06x: %w", r.pos, err)
	}
	return nil
}

func (r *reader) remaining() int { return len(r.data) - r.pos }

func (r *reader) readByte(desc string) (byte, error) {
	if r.remaining() < 1 {
		return 0, r.errorf("unable to read %s: unexpected end of section or function", desc)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readBytes(n int, desc string) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, r.errorf("unable to read %s: unexpected end of section or function", desc)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) readU32Leb(desc string) (uint32, error) {
	v, n, err := leb128.DecodeUint32(bytes.NewReader(r.data[r.pos:]))
	if err != nil {
		if err == io.EOF {
			return 0, r.errorf("unable to read %s: unexpected end of section or function", desc)
		}
		return 0, r.errorf("malformed %s: %v", desc, err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) readS32Leb(desc string) (int32, error) {
	v, n, err := leb128.DecodeInt32(bytes.NewReader(r.data[r.pos:]))
	if err != nil {
		if err == io.EOF {
			return 0, r.errorf("unable to read %s: unexpected end of section or function", desc)
		}
		return 0, r.errorf("malformed %s: %v", desc, err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) readS64Leb(desc string) (int64, error) {
	v, n, err := leb128.DecodeInt64(bytes.NewReader(r.data[r.pos:]))
	if err != nil {
		if err == io.EOF {
			return 0, r.errorf("unable to read %s: unexpected end of section or function", desc)
		}
		return 0, r.errorf("malformed %s: %v", desc, err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) readF32(desc string) (uint32, error) {
	b, err := r.readBytes(4, desc)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (r *reader) readF64(desc string) (uint64, error) {
	b, err := r.readBytes(8, desc)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

func (r *reader) readName(desc string) (string, error) {
	n, err := r.readU32Leb(desc + " length")
	if err != nil {
		return "", err
	}
	b, err := r.readBytes(int(n), desc)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", r.errorf("invalid utf-8 encoding of %s", desc)
	}
	return string(b), nil
}

func (r *reader) readValueType(desc string) (wasm.ValueType, error) {
	b, err := r.readByte(desc)
	if err != nil {
		return 0, err
	}
	if !wasm.IsValueType(b) {
		return 0, r.errorf("malformed %s: 0x%x", desc, b)
	}
	return b, nil
}

func (r *reader) readLimits() (wasm.Limits, error) {
	var l wasm.Limits
	flags, err := r.readByte("limits flags")
	if err != nil {
		return l, err
	}
	if flags > 1 {
		return l, r.errorf("malformed limits flags: 0x%x", flags)
	}
	l.HasMax = flags == 1
	if l.Initial, err = r.readU32Leb("limits initial size"); err != nil {
		return l, err
	}
	if l.HasMax {
		if l.Max, err = r.readU32Leb("limits max size"); err != nil {
			return l, err
		}
	}
	if err = l.Validate(); err != nil {
		return l, r.errorf("%v", err)
	}
	return l, nil
}

func (r *reader) readTableType() (wasm.Limits, error) {
	elemType, err := r.readByte("table element type")
	if err != nil {
		return wasm.Limits{}, err
	}
	if elemType != wasm.ElemTypeFuncref {
		return wasm.Limits{}, r.errorf("malformed table element type: 0x%x", elemType)
	}
	return r.readLimits()
}

func (r *reader) readGlobalType() (wasm.ValueType, bool, error) {
	valType, err := r.readValueType("global type")
	if err != nil {
		return 0, false, err
	}
	mut, err := r.readByte("global mutability")
	if err != nil {
		return 0, false, err
	}
	if mut > 1 {
		return 0, false, r.errorf("malformed mutability: %d", mut)
	}
	return valType, mut == 1, nil
}

// readInitExpr reads a constant expression: exactly one constant or
// global.get instruction followed by end.
func (r *reader) readInitExpr() (InitExpr, error) {
	var expr InitExpr
	op, err := r.readByte("init expression opcode")
	if err != nil {
		return expr, err
	}
	expr.Kind = op
	switch op {
	case wasm.OpcodeI32Const:
		v, err := r.readS32Leb("i32.const value")
		if err != nil {
			return expr, err
		}
		expr.Value = wasm.I32Value(uint32(v))
	case wasm.OpcodeI64Const:
		v, err := r.readS64Leb("i64.const value")
		if err != nil {
			return expr, err
		}
		expr.Value = wasm.I64Value(uint64(v))
	case wasm.OpcodeF32Const:
		bits, err := r.readF32("f32.const value")
		if err != nil {
			return expr, err
		}
		expr.Value = wasm.F32BitsValue(bits)
	case wasm.OpcodeF64Const:
		bits, err := r.readF64("f64.const value")
		if err != nil {
			return expr, err
		}
		expr.Value = wasm.F64BitsValue(bits)
	case wasm.OpcodeGlobalGet:
		idx, err := r.readU32Leb("global.get index")
		if err != nil {
			return expr, err
		}
		if idx >= r.numGlobals {
			return expr, r.errorf("initializer expression can only reference a defined global: %d", idx)
		}
		expr.GlobalIndex = idx
	default:
		return expr, r.errorf("unexpected opcode in initializer expression: 0x%x", op)
	}
	end, err := r.readByte("init expression end")
	if err != nil {
		return expr, err
	}
	if end != wasm.OpcodeEnd {
		return expr, r.errorf("expected end of initializer expression, got 0x%x", end)
	}
	return expr, nil
}

func (r *reader) readModule() error {
	magic, err := r.readBytes(4, "magic")
	if err != nil {
		return err
	}
	if !bytes.Equal(magic, Magic) {
		r.pos = 0
		return r.errorf("bad magic value")
	}
	version, err := r.readBytes(4, "version")
	if err != nil {
		return err
	}
	if !bytes.Equal(version, Version) {
		r.pos = 4
		return r.errorf("bad wasm file version: 0x%x (expected 0x1)", version)
	}

	if err := r.callback(r.delegate.BeginModule()); err != nil {
		return err
	}

	lastSectionID := byte(0)
	for r.remaining() > 0 {
		id, err := r.readByte("section id")
		if err != nil {
			return err
		}
		size, err := r.readU32Leb("section size")
		if err != nil {
			return err
		}
		if int(size) > r.remaining() {
			return r.errorf("invalid section size: extends past end")
		}
		sectionEnd := r.pos + int(size)

		if id > SectionIDData {
			return r.errorf("invalid section id: %d", id)
		}
		if id != SectionIDCustom {
			if id <= lastSectionID {
				return r.errorf("section %d out of order, after section %d", id, lastSectionID)
			}
			lastSectionID = id
		}

		switch id {
		case SectionIDCustom:
			// Names are decoded for UTF-8 validity only; content is
			// skipped.
			if _, err = r.readName("custom section name"); err != nil {
				return err
			}
			r.pos = sectionEnd
		case SectionIDType:
			err = r.readTypeSection()
		case SectionIDImport:
			err = r.readImportSection()
		case SectionIDFunction:
			err = r.readFunctionSection()
		case SectionIDTable:
			err = r.readTableSection()
		case SectionIDMemory:
			err = r.readMemorySection()
		case SectionIDGlobal:
			err = r.readGlobalSection()
		case SectionIDExport:
			err = r.readExportSection()
		case SectionIDStart:
			err = r.readStartSection()
		case SectionIDElement:
			err = r.readElementSection()
		case SectionIDCode:
			err = r.readCodeSection()
		case SectionIDData:
			err = r.readDataSection()
		}
		if err != nil {
			return err
		}
		if r.pos != sectionEnd {
			return r.errorf("section %d size mismatch: %d bytes unread", id, sectionEnd-r.pos)
		}
	}

	if r.sawFunctionSection != r.sawCodeSection || r.funcSectionCount != r.codeSectionCount {
		return r.errorf("function signature count != function body count: %d != %d",
			r.funcSectionCount, r.codeSectionCount)
	}

	return r.callback(r.delegate.EndModule())
}

func (r *reader) readTypeSection() error {
	count, err := r.readU32Leb("type count")
	if err != nil {
		return err
	}
	if err := r.callback(r.delegate.OnTypeCount(count)); err != nil {
		return err
	}
	r.numSigs = count
	for i := uint32(0); i < count; i++ {
		tag, err := r.readByte("type form")
		if err != nil {
			return err
		}
		if tag != wasm.FunctionTypeTag {
			return r.errorf("expected function type form 0x60, got 0x%x", tag)
		}
		sig := &wasm.FunctionSig{}
		numParams, err := r.readU32Leb("function param count")
		if err != nil {
			return err
		}
		for j := uint32(0); j < numParams; j++ {
			t, err := r.readValueType("function param type")
			if err != nil {
				return err
			}
			sig.Params = append(sig.Params, t)
		}
		numResults, err := r.readU32Leb("function result count")
		if err != nil {
			return err
		}
		for j := uint32(0); j < numResults; j++ {
			t, err := r.readValueType("function result type")
			if err != nil {
				return err
			}
			sig.Results = append(sig.Results, t)
		}
		if err := r.callback(r.delegate.OnType(i, sig)); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) readImportSection() error {
	count, err := r.readU32Leb("import count")
	if err != nil {
		return err
	}
	if err := r.callback(r.delegate.OnImportCount(count)); err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		module, err := r.readName("import module name")
		if err != nil {
			return err
		}
		field, err := r.readName("import field name")
		if err != nil {
			return err
		}
		kind, err := r.readByte("import kind")
		if err != nil {
			return err
		}
		switch wasm.ExternalKind(kind) {
		case wasm.ExternalKindFunc:
			sigIndex, err := r.readU32Leb("import signature index")
			if err != nil {
				return err
			}
			if sigIndex >= r.numSigs {
				return r.errorf("invalid import signature index: %d (max %d)", sigIndex, r.numSigs)
			}
			if err := r.callback(r.delegate.OnImportFunc(i, r.numFuncs, module, field, sigIndex)); err != nil {
				return err
			}
			r.numFuncs++
			r.numFuncImports++
		case wasm.ExternalKindTable:
			limits, err := r.readTableType()
			if err != nil {
				return err
			}
			if err := r.callback(r.delegate.OnImportTable(i, r.numTables, module, field, limits)); err != nil {
				return err
			}
			r.numTables++
		case wasm.ExternalKindMemory:
			limits, err := r.readLimits()
			if err != nil {
				return err
			}
			if err := r.callback(r.delegate.OnImportMemory(i, r.numMemories, module, field, limits)); err != nil {
				return err
			}
			r.numMemories++
		case wasm.ExternalKindGlobal:
			valType, mutable, err := r.readGlobalType()
			if err != nil {
				return err
			}
			if err := r.callback(r.delegate.OnImportGlobal(i, r.numGlobals, module, field, valType, mutable)); err != nil {
				return err
			}
			r.numGlobals++
		default:
			return r.errorf("malformed import kind: %d", kind)
		}
	}
	return nil
}

func (r *reader) readFunctionSection() error {
	count, err := r.readU32Leb("function count")
	if err != nil {
		return err
	}
	r.sawFunctionSection = true
	r.funcSectionCount = count
	if err := r.callback(r.delegate.OnFunctionCount(count)); err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		sigIndex, err := r.readU32Leb("function signature index")
		if err != nil {
			return err
		}
		if sigIndex >= r.numSigs {
			return r.errorf("invalid function signature index: %d (max %d)", sigIndex, r.numSigs)
		}
		if err := r.callback(r.delegate.OnFunction(r.numFuncs, sigIndex)); err != nil {
			return err
		}
		r.numFuncs++
	}
	return nil
}

func (r *reader) readTableSection() error {
	count, err := r.readU32Leb("table count")
	if err != nil {
		return err
	}
	if count+r.numTables > 1 {
		return r.errorf("table count must not be more than 1")
	}
	for i := uint32(0); i < count; i++ {
		limits, err := r.readTableType()
		if err != nil {
			return err
		}
		if err := r.callback(r.delegate.OnTable(r.numTables, limits)); err != nil {
			return err
		}
		r.numTables++
	}
	return nil
}

func (r *reader) readMemorySection() error {
	count, err := r.readU32Leb("memory count")
	if err != nil {
		return err
	}
	if count+r.numMemories > 1 {
		return r.errorf("memory count must not be more than 1")
	}
	for i := uint32(0); i < count; i++ {
		limits, err := r.readLimits()
		if err != nil {
			return err
		}
		if limits.Initial > wasm.MaxPages {
			return r.errorf("memory initial size must be at most %d pages", wasm.MaxPages)
		}
		if limits.HasMax && limits.Max > wasm.MaxPages {
			return r.errorf("memory max size must be at most %d pages", wasm.MaxPages)
		}
		if err := r.callback(r.delegate.OnMemory(r.numMemories, limits)); err != nil {
			return err
		}
		r.numMemories++
	}
	return nil
}

func (r *reader) readGlobalSection() error {
	count, err := r.readU32Leb("global count")
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		valType, mutable, err := r.readGlobalType()
		if err != nil {
			return err
		}
		init, err := r.readInitExpr()
		if err != nil {
			return err
		}
		if err := r.callback(r.delegate.OnGlobal(r.numGlobals, valType, mutable, init)); err != nil {
			return err
		}
		r.numGlobals++
	}
	return nil
}

func (r *reader) readExportSection() error {
	count, err := r.readU32Leb("export count")
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		name, err := r.readName("export name")
		if err != nil {
			return err
		}
		kind, err := r.readByte("export kind")
		if err != nil {
			return err
		}
		index, err := r.readU32Leb("export item index")
		if err != nil {
			return err
		}
		var max uint32
		switch wasm.ExternalKind(kind) {
		case wasm.ExternalKindFunc:
			max = r.numFuncs
		case wasm.ExternalKindTable:
			max = r.numTables
		case wasm.ExternalKindMemory:
			max = r.numMemories
		case wasm.ExternalKindGlobal:
			max = r.numGlobals
		default:
			return r.errorf("malformed export kind: %d", kind)
		}
		if index >= max {
			return r.errorf("invalid export %s index: %d (max %d)", wasm.ExternalKind(kind), index, max)
		}
		if err := r.callback(r.delegate.OnExport(i, wasm.ExternalKind(kind), index, name)); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) readStartSection() error {
	index, err := r.readU32Leb("start function index")
	if err != nil {
		return err
	}
	if index >= r.numFuncs {
		return r.errorf("invalid start function index: %d (max %d)", index, r.numFuncs)
	}
	return r.callback(r.delegate.OnStartFunction(index))
}

func (r *reader) readElementSection() error {
	count, err := r.readU32Leb("element segment count")
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		tableIndex, err := r.readU32Leb("element segment table index")
		if err != nil {
			return err
		}
		if tableIndex >= r.numTables {
			return r.errorf("invalid element segment table index: %d", tableIndex)
		}
		offset, err := r.readInitExpr()
		if err != nil {
			return err
		}
		n, err := r.readU32Leb("element function index count")
		if err != nil {
			return err
		}
		funcIndexes := make([]uint32, n)
		for j := uint32(0); j < n; j++ {
			fi, err := r.readU32Leb("element function index")
			if err != nil {
				return err
			}
			if fi >= r.numFuncs {
				return r.errorf("invalid element function index: %d (max %d)", fi, r.numFuncs)
			}
			funcIndexes[j] = fi
		}
		if err := r.callback(r.delegate.OnElemSegment(i, tableIndex, offset, funcIndexes)); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) readCodeSection() error {
	count, err := r.readU32Leb("function body count")
	if err != nil {
		return err
	}
	r.sawCodeSection = true
	r.codeSectionCount = count
	for i := uint32(0); i < count; i++ {
		funcIndex := r.numFuncImports + i
		bodySize, err := r.readU32Leb("function body size")
		if err != nil {
			return err
		}
		if int(bodySize) > r.remaining() {
			return r.errorf("invalid function body size: extends past end")
		}
		bodyEnd := r.pos + int(bodySize)

		numDecls, err := r.readU32Leb("local declaration count")
		if err != nil {
			return err
		}
		var locals []wasm.ValueType
		var totalLocals uint64
		for j := uint32(0); j < numDecls; j++ {
			n, err := r.readU32Leb("local type count")
			if err != nil {
				return err
			}
			t, err := r.readValueType("local type")
			if err != nil {
				return err
			}
			totalLocals += uint64(n)
			if totalLocals > math.MaxUint32 {
				return r.errorf("too many locals: %d", totalLocals)
			}
			for k := uint32(0); k < n; k++ {
				locals = append(locals, t)
			}
		}
		if err := r.callback(r.delegate.BeginFunctionBody(funcIndex, locals)); err != nil {
			return err
		}
		if err := r.readInstructions(bodyEnd); err != nil {
			return err
		}
		if r.pos != bodyEnd {
			return r.errorf("function body size mismatch")
		}
		if err := r.callback(r.delegate.EndFunctionBody(funcIndex)); err != nil {
			return err
		}
	}
	return nil
}

// readInstructions decodes one function body. The final end opcode is
// delivered like any other; the caller checks the body size matched.
func (r *reader) readInstructions(bodyEnd int) error {
	// Depth of open blocks; the body's implicit block counts as one.
	depth := 1
	for r.pos < bodyEnd {
		op, err := r.readByte("opcode")
		if err != nil {
			return err
		}
		if !wasm.IsOpcode(op) {
			r.pos--
			return r.errorf("unexpected opcode: 0x%x", op)
		}
		switch op {
		case wasm.OpcodeBlock, wasm.OpcodeLoop, wasm.OpcodeIf:
			bt, err := r.readByte("block type")
			if err != nil {
				return err
			}
			if bt != wasm.BlockTypeEmpty && !wasm.IsValueType(bt) {
				return r.errorf("malformed block type: 0x%x", bt)
			}
			depth++
			if err := r.callback(r.delegate.OnOpcodeBlock(op, bt)); err != nil {
				return err
			}
		case wasm.OpcodeEnd:
			depth--
			if err := r.callback(r.delegate.OnOpcodeBare(op)); err != nil {
				return err
			}
			if depth == 0 {
				if r.pos != bodyEnd {
					return r.errorf("unexpected data at end of function body")
				}
				return nil
			}
		case wasm.OpcodeBr, wasm.OpcodeBrIf, wasm.OpcodeCall,
			wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee,
			wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet:
			index, err := r.readU32Leb(wasm.OpcodeName(op) + " index")
			if err != nil {
				return err
			}
			if err := r.callback(r.delegate.OnOpcodeIndex(op, index)); err != nil {
				return err
			}
		case wasm.OpcodeBrTable:
			n, err := r.readU32Leb("br_table target count")
			if err != nil {
				return err
			}
			targets := make([]uint32, n)
			for j := uint32(0); j < n; j++ {
				if targets[j], err = r.readU32Leb("br_table target"); err != nil {
					return err
				}
			}
			defaultTarget, err := r.readU32Leb("br_table default target")
			if err != nil {
				return err
			}
			if err := r.callback(r.delegate.OnOpcodeBrTable(targets, defaultTarget)); err != nil {
				return err
			}
		case wasm.OpcodeCallIndirect:
			sigIndex, err := r.readU32Leb("call_indirect signature index")
			if err != nil {
				return err
			}
			if sigIndex >= r.numSigs {
				return r.errorf("invalid call_indirect signature index: %d", sigIndex)
			}
			reserved, err := r.readByte("call_indirect reserved")
			if err != nil {
				return err
			}
			if reserved != 0 {
				return r.errorf("call_indirect reserved byte must be zero")
			}
			if err := r.callback(r.delegate.OnOpcodeCallIndirect(sigIndex, 0)); err != nil {
				return err
			}
		case wasm.OpcodeMemorySize, wasm.OpcodeMemoryGrow:
			reserved, err := r.readByte(wasm.OpcodeName(op) + " reserved")
			if err != nil {
				return err
			}
			if reserved != 0 {
				return r.errorf("%s reserved byte must be zero", wasm.OpcodeName(op))
			}
			if err := r.callback(r.delegate.OnOpcodeBare(op)); err != nil {
				return err
			}
		case wasm.OpcodeI32Const:
			v, err := r.readS32Leb("i32.const value")
			if err != nil {
				return err
			}
			if err := r.callback(r.delegate.OnOpcodeI32Const(v)); err != nil {
				return err
			}
		case wasm.OpcodeI64Const:
			v, err := r.readS64Leb("i64.const value")
			if err != nil {
				return err
			}
			if err := r.callback(r.delegate.OnOpcodeI64Const(v)); err != nil {
				return err
			}
		case wasm.OpcodeF32Const:
			bits, err := r.readF32("f32.const value")
			if err != nil {
				return err
			}
			if err := r.callback(r.delegate.OnOpcodeF32Const(bits)); err != nil {
				return err
			}
		case wasm.OpcodeF64Const:
			bits, err := r.readF64("f64.const value")
			if err != nil {
				return err
			}
			if err := r.callback(r.delegate.OnOpcodeF64Const(bits)); err != nil {
				return err
			}
		default:
			if op >= wasm.OpcodeI32Load && op <= wasm.OpcodeI64Store32 {
				align, err := r.readU32Leb(wasm.OpcodeName(op) + " alignment")
				if err != nil {
					return err
				}
				offset, err := r.readU32Leb(wasm.OpcodeName(op) + " offset")
				if err != nil {
					return err
				}
				if err := r.callback(r.delegate.OnOpcodeLoadStore(op, align, offset)); err != nil {
					return err
				}
			} else {
				if err := r.callback(r.delegate.OnOpcodeBare(op)); err != nil {
					return err
				}
			}
		}
	}
	return r.errorf("unexpected end of function body")
}

func (r *reader) readDataSection() error {
	count, err := r.readU32Leb("data segment count")
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		memoryIndex, err := r.readU32Leb("data segment memory index")
		if err != nil {
			return err
		}
		if memoryIndex >= r.numMemories {
			return r.errorf("invalid data segment memory index: %d", memoryIndex)
		}
		offset, err := r.readInitExpr()
		if err != nil {
			return err
		}
		n, err := r.readU32Leb("data segment size")
		if err != nil {
			return err
		}
		data, err := r.readBytes(int(n), "data segment data")
		if err != nil {
			return err
		}
		if err := r.callback(r.delegate.OnDataSegment(i, memoryIndex, offset, data)); err != nil {
			return err
		}
	}
	return nil
}
