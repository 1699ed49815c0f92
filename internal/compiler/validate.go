package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/evscript/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Command errors (E100-E104)
	ErrUnknownOpcode = "E100" // opcode neither built in nor in the extension range
	ErrIndentJump    = "E101" // indent rises by more than one level
	ErrMissingParam  = "E102" // required parameter missing
	ErrMissingTarget = "E103" // call_common target not in the library
	ErrMissingLabel  = "E104" // jump_to_label target not in the list

	// Structure errors (E110-E119)
	ErrUnclosedBranch  = "E110" // conditional_branch without branch_end
	ErrStrayBranchEnd  = "E111" // else or branch_end without conditional_branch
	ErrUnclosedLoop    = "E112" // loop without repeat_above
	ErrStrayRepeat     = "E113" // repeat_above without loop
	ErrBreakOutside    = "E114" // break_loop outside any loop
	ErrUnclosedChoices = "E115" // show_choices without choices_end
	ErrStrayChoice     = "E116" // when_choice, when_cancel or choices_end outside show_choices
	ErrDuplicateLabel  = "E117" // label defined twice
)

// ValidationError is one structural problem in a command list.
type ValidationError struct {
	Script  int    `json:"script"`
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] script %d command %d: %s: %s", e.Code, e.Script, e.Index, e.Field, e.Message)
}

// Library resolves call_common targets. Implemented by ir.ScriptSet.
type Library interface {
	Script(id int) (*ir.CommandList, bool)
}

// Validate checks every script in set, resolving call targets against set.
// Returns all errors found (does not fail-fast), ordered by script ID then
// command index.
func Validate(set *ir.ScriptSet) []ValidationError {
	var errs []ValidationError
	for _, id := range set.IDs() {
		sc, _ := set.Get(id)
		errs = append(errs, ValidateList(sc.List, set)...)
	}
	return errs
}

// ValidateList checks one command list. lib may be nil, in which case call
// targets are not checked.
//
// The engine degrades gracefully on every problem reported here; validation
// exists so authors find them before a player does.
func ValidateList(l *ir.CommandList, lib Library) []ValidationError {
	v := &validator{list: l, lib: lib, labels: make(map[string]int)}
	v.collectLabels()
	for i, cmd := range l.Commands {
		v.command(i, cmd)
	}
	v.closeAll()
	sortErrors(v.errs)
	return v.errs
}

// minParams is the number of leading parameters each opcode requires.
var minParams = map[ir.Opcode]int{
	ir.OpShowMessage:   1,
	ir.OpShowChoices:   1,
	ir.OpConditional:   2,
	ir.OpCallCommon:    1,
	ir.OpLabel:         1,
	ir.OpJumpToLabel:   1,
	ir.OpSetSwitch:     1,
	ir.OpSetVariable:   1,
	ir.OpSetSelfSwitch: 1,
	ir.OpTransfer:      1,
	ir.OpMoveRoute:     1,
	ir.OpShowAnimation: 2,
	ir.OpWait:          1,
	ir.OpForceAction:   1,
	ir.OpEvaluate:      1,
	ir.OpMapMutation:   1,
	ir.OpWhenChoice:    1,
}

// open is a construct awaiting its closing marker.
type open struct {
	op      ir.Opcode
	indent  int
	index   int
	sawElse bool
}

type validator struct {
	list   *ir.CommandList
	lib    Library
	labels map[string]int
	stack  []open
	errs   []ValidationError
}

func (v *validator) report(index int, field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Script:  v.list.ID,
		Index:   index,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (v *validator) collectLabels() {
	for i, cmd := range v.list.Commands {
		if cmd.Opcode != ir.OpLabel {
			continue
		}
		name, err := cmd.Params.String(0)
		if err != nil {
			continue
		}
		if first, dup := v.labels[name]; dup {
			v.report(i, "label", ErrDuplicateLabel, "label %q already defined at command %d", name, first)
			continue
		}
		v.labels[name] = i
	}
}

func (v *validator) command(i int, cmd ir.Command) {
	prev := -1
	if i > 0 {
		prev = v.list.At(i - 1).Indent
	}
	if cmd.Indent > prev+1 {
		v.report(i, "indent", ErrIndentJump, "indent %d after indent %d", cmd.Indent, max(prev, 0))
	}

	if !cmd.Opcode.Builtin() && !cmd.Opcode.IsExtension() {
		v.report(i, "opcode", ErrUnknownOpcode, "unknown opcode %d", cmd.Opcode)
	}
	if n, ok := minParams[cmd.Opcode]; ok && cmd.Params.Len() < n {
		v.report(i, "params", ErrMissingParam, "%s needs %d parameter(s), got %d", cmd.Opcode, n, cmd.Params.Len())
	}

	v.closeAbove(i, cmd)
	v.structure(i, cmd)
	v.references(i, cmd)
}

// closeAbove reports and discards constructs that cmd proves unclosed: any
// deeper than cmd, and one at cmd's indent that cmd does not continue.
func (v *validator) closeAbove(i int, cmd ir.Command) {
	for len(v.stack) > 0 {
		top := v.stack[len(v.stack)-1]
		if top.indent < cmd.Indent {
			return
		}
		if top.indent == cmd.Indent && continues(top, cmd.Opcode) {
			return
		}
		v.unclosed(top)
		v.stack = v.stack[:len(v.stack)-1]
	}
}

// continues reports whether op is a marker belonging to the construct o.
func continues(o open, op ir.Opcode) bool {
	switch o.op {
	case ir.OpConditional:
		return op == ir.OpElse || op == ir.OpBranchEnd
	case ir.OpLoop:
		return op == ir.OpRepeatAbove
	case ir.OpShowChoices:
		return op == ir.OpWhenChoice || op == ir.OpWhenCancel || op == ir.OpChoicesEnd
	}
	return false
}

func (v *validator) unclosed(o open) {
	switch o.op {
	case ir.OpConditional:
		v.report(o.index, "structure", ErrUnclosedBranch, "conditional_branch at indent %d has no branch_end", o.indent)
	case ir.OpLoop:
		v.report(o.index, "structure", ErrUnclosedLoop, "loop at indent %d has no repeat_above", o.indent)
	case ir.OpShowChoices:
		v.report(o.index, "structure", ErrUnclosedChoices, "show_choices at indent %d has no choices_end", o.indent)
	}
}

// top returns the innermost open construct at indent with opcode op.
func (v *validator) top(op ir.Opcode, indent int) *open {
	if len(v.stack) == 0 {
		return nil
	}
	t := &v.stack[len(v.stack)-1]
	if t.op != op || t.indent != indent {
		return nil
	}
	return t
}

func (v *validator) pop() {
	v.stack = v.stack[:len(v.stack)-1]
}

func (v *validator) structure(i int, cmd ir.Command) {
	d := cmd.Indent
	switch cmd.Opcode {
	case ir.OpConditional, ir.OpLoop, ir.OpShowChoices:
		v.stack = append(v.stack, open{op: cmd.Opcode, indent: d, index: i})

	case ir.OpElse:
		t := v.top(ir.OpConditional, d)
		switch {
		case t == nil:
			v.report(i, "structure", ErrStrayBranchEnd, "else at indent %d without conditional_branch", d)
		case t.sawElse:
			v.report(i, "structure", ErrStrayBranchEnd, "second else for conditional_branch at command %d", t.index)
		default:
			t.sawElse = true
		}

	case ir.OpBranchEnd:
		if v.top(ir.OpConditional, d) == nil {
			v.report(i, "structure", ErrStrayBranchEnd, "branch_end at indent %d without conditional_branch", d)
			return
		}
		v.pop()

	case ir.OpRepeatAbove:
		if v.top(ir.OpLoop, d) == nil {
			v.report(i, "structure", ErrStrayRepeat, "repeat_above at indent %d without loop", d)
			return
		}
		v.pop()

	case ir.OpBreakLoop:
		for _, o := range v.stack {
			if o.op == ir.OpLoop && o.indent <= d {
				return
			}
		}
		v.report(i, "structure", ErrBreakOutside, "break_loop at indent %d outside any loop", d)

	case ir.OpWhenChoice, ir.OpWhenCancel:
		if v.top(ir.OpShowChoices, d) == nil {
			v.report(i, "structure", ErrStrayChoice, "%s at indent %d without show_choices", cmd.Opcode, d)
		}

	case ir.OpChoicesEnd:
		if v.top(ir.OpShowChoices, d) == nil {
			v.report(i, "structure", ErrStrayChoice, "choices_end at indent %d without show_choices", d)
			return
		}
		v.pop()
	}
}

func (v *validator) references(i int, cmd ir.Command) {
	switch cmd.Opcode {
	case ir.OpCallCommon:
		if v.lib == nil {
			return
		}
		id, err := cmd.Params.Int(0)
		if err != nil {
			return
		}
		if _, ok := v.lib.Script(id); !ok {
			v.report(i, "call", ErrMissingTarget, "common script %d not found", id)
		}

	case ir.OpJumpToLabel:
		name, err := cmd.Params.String(0)
		if err != nil {
			return
		}
		if _, ok := v.labels[name]; !ok {
			v.report(i, "label", ErrMissingLabel, "label %q not found", name)
		}
	}
}

// closeAll reports every construct still open at the end of the list.
func (v *validator) closeAll() {
	for len(v.stack) > 0 {
		v.unclosed(v.stack[len(v.stack)-1])
		v.pop()
	}
}

// sortErrors orders by script then index, keeping report order for ties.
func sortErrors(errs []ValidationError) {
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Script != errs[j].Script {
			return errs[i].Script < errs[j].Script
		}
		return errs[i].Index < errs[j].Index
	})
}
