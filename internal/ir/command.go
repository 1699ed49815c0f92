package ir

import "fmt"

// Command is one instruction in a CommandList.
// Indent is a structural nesting marker for branches and loops, not a scope.
type Command struct {
	Opcode Opcode `json:"opcode"`
	Indent int    `json:"indent"`
	Params Params `json:"parameters"`
}

// CommandList is an immutable, ordered program. The interpreter never
// mutates it; handlers receive Commands by value.
type CommandList struct {
	ID       int       `json:"id"`
	Name     string    `json:"name,omitempty"`
	Commands []Command `json:"commands"`
}

// NewCommandList copies cmds so later mutation of the caller's slice cannot
// reach a running interpreter.
func NewCommandList(id int, name string, cmds []Command) *CommandList {
	c := make([]Command, len(cmds))
	copy(c, cmds)
	return &CommandList{ID: id, Name: name, Commands: c}
}

// Len returns the number of commands.
func (l *CommandList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Commands)
}

// At returns the command at index i.
func (l *CommandList) At(i int) Command {
	return l.Commands[i]
}

// Params is the positional parameter list of a Command.
type Params []Value

// ParamError reports a missing or mistyped positional parameter.
type ParamError struct {
	Index int
	Want  string
	Got   Value
}

func (e *ParamError) Error() string {
	if e.Got == nil {
		return fmt.Sprintf("parameter %d: missing (want %s)", e.Index, e.Want)
	}
	return fmt.Sprintf("parameter %d: want %s, got %T", e.Index, e.Want, e.Got)
}

// Len returns the number of parameters.
func (p Params) Len() int { return len(p) }

// Value returns parameter i, or Null if absent.
func (p Params) Value(i int) Value {
	if i < 0 || i >= len(p) || p[i] == nil {
		return Null{}
	}
	return p[i]
}

// Has reports whether parameter i is present and non-null.
func (p Params) Has(i int) bool {
	if i < 0 || i >= len(p) {
		return false
	}
	_, isNull := p[i].(Null)
	return p[i] != nil && !isNull
}

// Int returns parameter i as an integer.
func (p Params) Int(i int) (int, error) {
	if !p.Has(i) {
		return 0, &ParamError{Index: i, Want: "int"}
	}
	n, err := AsInt(p[i])
	if err != nil {
		return 0, &ParamError{Index: i, Want: "int", Got: p[i]}
	}
	return int(n), nil
}

// IntOr returns parameter i as an integer, or def when absent.
func (p Params) IntOr(i, def int) int {
	if !p.Has(i) {
		return def
	}
	n, err := p.Int(i)
	if err != nil {
		return def
	}
	return n
}

// String returns parameter i as a string.
func (p Params) String(i int) (string, error) {
	if !p.Has(i) {
		return "", &ParamError{Index: i, Want: "string"}
	}
	s, ok := p[i].(String)
	if !ok {
		return "", &ParamError{Index: i, Want: "string", Got: p[i]}
	}
	return string(s), nil
}

// Bool returns parameter i interpreted as a boolean; absent is false.
func (p Params) Bool(i int) bool {
	return Truthy(p.Value(i))
}

// Strings returns parameter i as a list of strings.
func (p Params) Strings(i int) ([]string, error) {
	arr, ok := p.Value(i).(Array)
	if !ok {
		return nil, &ParamError{Index: i, Want: "array of string", Got: p.Value(i)}
	}
	out := make([]string, len(arr))
	for j, e := range arr {
		s, ok := e.(String)
		if !ok {
			return nil, &ParamError{Index: i, Want: "array of string", Got: e}
		}
		out[j] = string(s)
	}
	return out, nil
}

// Origin identifies the map element that triggered a script. The zero value
// is the neutral context used by independent calls.
type Origin struct {
	MapID   int `json:"map" yaml:"map"`
	EventID int `json:"event" yaml:"event"`
}

// Neutral reports whether o is the neutral context.
func (o Origin) Neutral() bool {
	return o == Origin{}
}

func (o Origin) String() string {
	return fmt.Sprintf("%d:%d", o.MapID, o.EventID)
}

// Cancel settings of a choice set.
const (
	// ChoiceCancelDisallowed means the player cannot cancel.
	ChoiceCancelDisallowed = -1
	// ChoiceCancelBranch means cancelling selects the when_cancel block.
	ChoiceCancelBranch = -2
)

// MessageHandle identifies an enqueued message.
type MessageHandle int

// Message is an entry for the external message queue: plain text, or a
// choice set when Choices is non-empty.
type Message struct {
	Text    string
	Choices []string
	// Cancel is the choice index selected by cancelling, or one of the
	// ChoiceCancel constants.
	Cancel int
	// OnChoice is called by the queue once the player picks a choice.
	OnChoice func(index int)
}

// Mutation describes a change applied through the map mutation API.
type Mutation struct {
	Kind   string
	Target int
	Args   Object
}
