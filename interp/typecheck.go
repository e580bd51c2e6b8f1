package interp

import (
	"fmt"

	"github.com/wasmkit/wain/wasm"
)

// typeAny is the polymorphic marker pushed in place of values the
// checker cannot know, i.e. anything popped past the limit of an
// unreachable label.
const typeAny wasm.ValueType = 0

// typeChecker simulates each function body on a stack of types. Every
// instruction pops its declared inputs and pushes its outputs; a label
// records the stack height at entry, the construct's result type and
// whether branches target the entry (loop) or the end (block/if).
type typeChecker struct {
	sig    *wasm.FunctionSig
	stack  []wasm.ValueType
	labels []tcLabel
}

type tcLabel struct {
	opcode      wasm.Opcode // Block, Loop, If, Else; Call marks the function label
	stackLimit  int
	resultTypes []wasm.ValueType
	unreachable bool
}

// branchTypes are the types a branch to this label must carry: a
// loop's entry takes nothing in the MVP, a block's end takes its
// results.
func (l *tcLabel) branchTypes() []wasm.ValueType {
	if l.opcode == wasm.OpcodeLoop {
		return nil
	}
	return l.resultTypes
}

func newTypeChecker(sig *wasm.FunctionSig) *typeChecker {
	c := &typeChecker{sig: sig}
	c.pushLabel(wasm.OpcodeCall, sig.Results)
	return c
}

func (c *typeChecker) pushLabel(op wasm.Opcode, results []wasm.ValueType) {
	c.labels = append(c.labels, tcLabel{
		opcode:      op,
		stackLimit:  len(c.stack),
		resultTypes: results,
	})
}

func (c *typeChecker) topLabel() *tcLabel {
	return &c.labels[len(c.labels)-1]
}

func (c *typeChecker) label(depth uint32) (*tcLabel, error) {
	if int(depth) >= len(c.labels) {
		return nil, fmt.Errorf("invalid depth: %d (max %d)", depth, len(c.labels)-1)
	}
	return &c.labels[len(c.labels)-1-int(depth)], nil
}

func (c *typeChecker) stackHeight() int { return len(c.stack) }

// setUnreachable puts the current label into stack-polymorphic mode
// and discards what the dead code left behind.
func (c *typeChecker) setUnreachable() {
	top := c.topLabel()
	top.unreachable = true
	c.stack = c.stack[:top.stackLimit]
}

func (c *typeChecker) push(t wasm.ValueType) {
	c.stack = append(c.stack, t)
}

func (c *typeChecker) pushTypes(ts []wasm.ValueType) {
	c.stack = append(c.stack, ts...)
}

// popAndCheck pops len(expected) types, comparing against expected in
// order. Underflow against a reachable label and any concrete
// mismatch are errors; the polymorphic marker matches everything.
func (c *typeChecker) popAndCheck(expected []wasm.ValueType, context string) error {
	top := c.topLabel()
	avail := len(c.stack) - top.stackLimit
	if !top.unreachable && avail < len(expected) {
		return fmt.Errorf("type stack size too small at %s. got %d, expected at least %d",
			context, avail, len(expected))
	}
	for i := len(expected) - 1; i >= 0; i-- {
		got := c.popOne()
		if got != typeAny && got != expected[i] {
			return fmt.Errorf("type mismatch in %s, expected %s but got %s",
				context, wasm.ValueTypeName(expected[i]), wasm.ValueTypeName(got))
		}
	}
	return nil
}

// popOne pops one type, yielding the polymorphic marker below the
// limit of an unreachable label. Callers check reachable underflow
// before calling.
func (c *typeChecker) popOne() wasm.ValueType {
	top := c.topLabel()
	if len(c.stack) <= top.stackLimit {
		return typeAny
	}
	t := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return t
}

// popAny pops one operand of any type, for drop and select.
func (c *typeChecker) popAny(context string) (wasm.ValueType, error) {
	top := c.topLabel()
	if len(c.stack)-top.stackLimit < 1 {
		if top.unreachable {
			return typeAny, nil
		}
		return 0, fmt.Errorf("type stack size too small at %s. got 0, expected at least 1", context)
	}
	return c.popOne(), nil
}

// checkSignature pops the parameters and pushes the results of a call.
func (c *typeChecker) checkSignature(sig *wasm.FunctionSig, context string) error {
	if err := c.popAndCheck(sig.Params, context); err != nil {
		return err
	}
	c.pushTypes(sig.Results)
	return nil
}

func (c *typeChecker) onBlock(results []wasm.ValueType) {
	c.pushLabel(wasm.OpcodeBlock, results)
}

func (c *typeChecker) onLoop(results []wasm.ValueType) {
	c.pushLabel(wasm.OpcodeLoop, results)
}

func (c *typeChecker) onIf(results []wasm.ValueType) error {
	if err := c.popAndCheck([]wasm.ValueType{wasm.ValueTypeI32}, "if"); err != nil {
		return err
	}
	c.pushLabel(wasm.OpcodeIf, results)
	return nil
}

func (c *typeChecker) onElse() error {
	top := c.topLabel()
	if top.opcode != wasm.OpcodeIf {
		return fmt.Errorf("unexpected else")
	}
	if err := c.checkLabelEnd(top, "if true branch"); err != nil {
		return err
	}
	c.stack = c.stack[:top.stackLimit]
	top.opcode = wasm.OpcodeElse
	top.unreachable = false
	return nil
}

// checkLabelEnd verifies the operand stack holds exactly the label's
// result types above its limit.
func (c *typeChecker) checkLabelEnd(l *tcLabel, context string) error {
	if !l.unreachable {
		if avail := len(c.stack) - l.stackLimit; avail > len(l.resultTypes) {
			return fmt.Errorf("type stack at end of %s is %d, expected %d",
				context, avail, len(l.resultTypes))
		}
	}
	return c.popAndCheck(l.resultTypes, context)
}

// onEnd closes the innermost label, pushing its result type. The
// label for the function body itself ends through endFunction.
func (c *typeChecker) onEnd() error {
	top := c.topLabel()
	if top.opcode == wasm.OpcodeCall {
		return fmt.Errorf("unexpected end")
	}
	var context string
	switch top.opcode {
	case wasm.OpcodeBlock:
		context = "block"
	case wasm.OpcodeLoop:
		context = "loop"
	case wasm.OpcodeIf:
		// An if with no else supplies its result from a branch that
		// does not exist.
		if len(top.resultTypes) > 0 {
			return fmt.Errorf("type mismatch in if false branch, expected %s but got []",
				wasm.ValueTypeName(top.resultTypes[0]))
		}
		context = "if"
	case wasm.OpcodeElse:
		context = "if false branch"
	}
	if err := c.checkLabelEnd(top, context); err != nil {
		return err
	}
	results := top.resultTypes
	c.stack = c.stack[:top.stackLimit]
	c.labels = c.labels[:len(c.labels)-1]
	c.pushTypes(results)
	return nil
}

func (c *typeChecker) onBr(depth uint32) error {
	l, err := c.label(depth)
	if err != nil {
		return err
	}
	if err := c.popAndCheck(l.branchTypes(), "br"); err != nil {
		return err
	}
	c.setUnreachable()
	return nil
}

func (c *typeChecker) onBrIf(depth uint32) error {
	if err := c.popAndCheck([]wasm.ValueType{wasm.ValueTypeI32}, "br_if"); err != nil {
		return err
	}
	l, err := c.label(depth)
	if err != nil {
		return err
	}
	types := l.branchTypes()
	if err := c.popAndCheck(types, "br_if"); err != nil {
		return err
	}
	c.pushTypes(types)
	return nil
}

func (c *typeChecker) onBrTable(targets []uint32, defaultTarget uint32) error {
	if err := c.popAndCheck([]wasm.ValueType{wasm.ValueTypeI32}, "br_table"); err != nil {
		return err
	}
	def, err := c.label(defaultTarget)
	if err != nil {
		return err
	}
	defTypes := def.branchTypes()
	for _, t := range targets {
		l, err := c.label(t)
		if err != nil {
			return err
		}
		ts := l.branchTypes()
		if len(ts) != len(defTypes) {
			return fmt.Errorf("br_table labels have inconsistent types")
		}
		for i := range ts {
			if ts[i] != defTypes[i] {
				return fmt.Errorf("br_table labels have inconsistent types")
			}
		}
	}
	if err := c.popAndCheck(defTypes, "br_table"); err != nil {
		return err
	}
	c.setUnreachable()
	return nil
}

func (c *typeChecker) onReturn() error {
	if err := c.popAndCheck(c.sig.Results, "return"); err != nil {
		return err
	}
	c.setUnreachable()
	return nil
}

func (c *typeChecker) onDrop() error {
	_, err := c.popAny("drop")
	return err
}

func (c *typeChecker) onSelect() (wasm.ValueType, error) {
	if err := c.popAndCheck([]wasm.ValueType{wasm.ValueTypeI32}, "select"); err != nil {
		return 0, err
	}
	t2, err := c.popAny("select")
	if err != nil {
		return 0, err
	}
	t1, err := c.popAny("select")
	if err != nil {
		return 0, err
	}
	if t1 != typeAny && t2 != typeAny && t1 != t2 {
		return 0, fmt.Errorf("type mismatch in select, expected %s but got %s",
			wasm.ValueTypeName(t1), wasm.ValueTypeName(t2))
	}
	result := t1
	if result == typeAny {
		result = t2
	}
	c.push(result)
	return result, nil
}

// endFunction checks the implicit return and closes the function
// label.
func (c *typeChecker) endFunction() error {
	top := c.topLabel()
	if top.opcode != wasm.OpcodeCall {
		return fmt.Errorf("unexpected end of function body: %d unclosed blocks", len(c.labels)-1)
	}
	if !top.unreachable {
		if avail := len(c.stack) - top.stackLimit; avail > len(c.sig.Results) {
			return fmt.Errorf("type stack at end of function is %d, expected %d",
				avail, len(c.sig.Results))
		}
	}
	return c.popAndCheck(c.sig.Results, "implicit return")
}
