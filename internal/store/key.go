package store

import (
	"fmt"

	"github.com/roach88/evscript/internal/ir"
)

// Kind partitions the key space.
type Kind string

const (
	KindSwitch     Kind = "switch"
	KindVariable   Kind = "variable"
	KindSelfSwitch Kind = "self_switch"
)

// Key addresses one persistent value.
type Key struct {
	Kind   Kind
	ID     int       // switch and variable keys
	Origin ir.Origin // self_switch keys
	Name   string    // self_switch keys
}

// SwitchKey addresses global switch id.
func SwitchKey(id int) Key {
	return Key{Kind: KindSwitch, ID: id}
}

// VariableKey addresses global variable id.
func VariableKey(id int) Key {
	return Key{Kind: KindVariable, ID: id}
}

// SelfKey addresses the self switch name private to origin.
func SelfKey(origin ir.Origin, name string) Key {
	return Key{Kind: KindSelfSwitch, Origin: origin, Name: name}
}

// Validate checks that the key is well formed for its kind.
func (k Key) Validate() error {
	switch k.Kind {
	case KindSwitch, KindVariable:
		if k.ID <= 0 {
			return fmt.Errorf("%s id must be positive, got %d", k.Kind, k.ID)
		}
	case KindSelfSwitch:
		if k.Name == "" {
			return fmt.Errorf("self switch name is required")
		}
	default:
		return fmt.Errorf("unknown key kind %q", k.Kind)
	}
	return nil
}

// Zero returns the value read for a key that was never written.
func (k Key) Zero() ir.Value {
	if k.Kind == KindVariable {
		return ir.Int(0)
	}
	return ir.Bool(false)
}

func (k Key) String() string {
	if k.Kind == KindSelfSwitch {
		return fmt.Sprintf("%s[%s:%s]", k.Kind, k.Origin, k.Name)
	}
	return fmt.Sprintf("%s[%d]", k.Kind, k.ID)
}

// Entry is one stored key/value pair.
type Entry struct {
	Key   Key
	Value ir.Value
}

// Snapshot is a read-only view of the state visible to one origin, handed to
// the expression evaluator.
type Snapshot struct {
	Switches  map[int]bool
	Variables map[int]ir.Value
	Self      map[string]bool
}

// NewSnapshot returns an empty snapshot with allocated maps.
func NewSnapshot() Snapshot {
	return Snapshot{
		Switches:  make(map[int]bool),
		Variables: make(map[int]ir.Value),
		Self:      make(map[string]bool),
	}
}

// add folds an entry into the snapshot when it is visible to origin.
func (s Snapshot) add(e Entry, origin ir.Origin) {
	switch e.Key.Kind {
	case KindSwitch:
		s.Switches[e.Key.ID] = ir.Truthy(e.Value)
	case KindVariable:
		s.Variables[e.Key.ID] = e.Value
	case KindSelfSwitch:
		if e.Key.Origin == origin {
			s.Self[e.Key.Name] = ir.Truthy(e.Value)
		}
	}
}

// lessKey orders entries deterministically: kind, origin, id, name.
func lessKey(a, b Key) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Origin.MapID != b.Origin.MapID {
		return a.Origin.MapID < b.Origin.MapID
	}
	if a.Origin.EventID != b.Origin.EventID {
		return a.Origin.EventID < b.Origin.EventID
	}
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	return a.Name < b.Name
}
