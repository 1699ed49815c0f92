package ir

import (
	"fmt"
	"sort"
)

// Opcode identifies which handler processes a Command.
type Opcode int

// Built-in opcodes. Numbering follows the RPG Maker event command codes so
// authored data exported from those tools loads unchanged.
const (
	OpEnd             Opcode = 0
	OpShowMessage     Opcode = 101
	OpShowChoices     Opcode = 102
	OpConditional     Opcode = 111
	OpLoop            Opcode = 112
	OpBreakLoop       Opcode = 113
	OpTerminate       Opcode = 115
	OpCallCommon      Opcode = 117
	OpLabel           Opcode = 118
	OpJumpToLabel     Opcode = 119
	OpSetSwitch       Opcode = 121
	OpSetVariable     Opcode = 122
	OpSetSelfSwitch   Opcode = 123
	OpTransfer        Opcode = 201
	OpMoveRoute       Opcode = 205
	OpShowAnimation   Opcode = 212
	OpWait            Opcode = 230
	OpWaitMessage     Opcode = 231
	OpForceAction     Opcode = 339
	OpEvaluate        Opcode = 355
	OpMapMutation     Opcode = 356
	OpWhenChoice      Opcode = 402
	OpWhenCancel      Opcode = 403
	OpChoicesEnd      Opcode = 404
	OpElse            Opcode = 411
	OpBranchEnd       Opcode = 412
	OpRepeatAbove     Opcode = 413
)

// Extension opcode range, reserved for handlers registered at startup.
const (
	ExtensionBase  Opcode = 1000
	ExtensionLimit Opcode = 2000
)

var opcodeNames = map[Opcode]string{
	OpEnd:           "end",
	OpShowMessage:   "show_message",
	OpShowChoices:   "show_choices",
	OpConditional:   "conditional_branch",
	OpLoop:          "loop",
	OpBreakLoop:     "break_loop",
	OpTerminate:     "terminate",
	OpCallCommon:    "call_common",
	OpLabel:         "label",
	OpJumpToLabel:   "jump_to_label",
	OpSetSwitch:     "set_switch",
	OpSetVariable:   "set_variable",
	OpSetSelfSwitch: "set_self_switch",
	OpTransfer:      "transfer",
	OpMoveRoute:     "move_route",
	OpShowAnimation: "show_animation",
	OpWait:          "wait",
	OpWaitMessage:   "wait_message",
	OpForceAction:   "force_action",
	OpEvaluate:      "evaluate",
	OpMapMutation:   "map_mutation",
	OpWhenChoice:    "when_choice",
	OpWhenCancel:    "when_cancel",
	OpChoicesEnd:    "choices_end",
	OpElse:          "else",
	OpBranchEnd:     "branch_end",
	OpRepeatAbove:   "repeat_above",
}

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}
	return m
}()

// String returns the catalogue name, or "op<N>" for opcodes outside it.
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op%d", int(o))
}

// IsExtension reports whether the opcode is in the reserved extension range.
func (o Opcode) IsExtension() bool {
	return o >= ExtensionBase && o < ExtensionLimit
}

// Builtin reports whether the opcode is in the built-in catalogue.
func (o Opcode) Builtin() bool {
	_, ok := opcodeNames[o]
	return ok
}

// ParseOpcode resolves a catalogue name to its opcode.
func ParseOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

// BuiltinOpcodes returns every catalogue opcode in ascending order.
func BuiltinOpcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeNames))
	for op := range opcodeNames {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}
