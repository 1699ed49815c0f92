package ir

import (
	"bytes"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// TriggerKind names how a script is started.
type TriggerKind string

const (
	// TriggerNone marks library-only scripts (reachable through call_common).
	TriggerNone     TriggerKind = ""
	TriggerTouch    TriggerKind = "touch"
	TriggerAction   TriggerKind = "action"
	TriggerAutorun  TriggerKind = "autorun"
	TriggerParallel TriggerKind = "parallel"
)

// Valid reports whether k is a known trigger kind.
func (k TriggerKind) Valid() bool {
	switch k {
	case TriggerNone, TriggerTouch, TriggerAction, TriggerAutorun, TriggerParallel:
		return true
	}
	return false
}

// Background reports whether scripts of this kind run in the background set.
func (k TriggerKind) Background() bool {
	return k == TriggerParallel
}

// Script is one authored script: its command list plus trigger metadata.
type Script struct {
	List    *CommandList
	Trigger TriggerKind
	Origin  Origin
}

// ScriptSet is the decoded contents of one or more script files, keyed by ID.
type ScriptSet struct {
	scripts map[int]*Script
	order   []int
}

// NewScriptSet creates an empty set.
func NewScriptSet() *ScriptSet {
	return &ScriptSet{scripts: make(map[int]*Script)}
}

// Add inserts a script. Duplicate IDs are an error.
func (s *ScriptSet) Add(sc *Script) error {
	if sc.List == nil {
		return fmt.Errorf("script has no command list")
	}
	if _, dup := s.scripts[sc.List.ID]; dup {
		return fmt.Errorf("duplicate script id %d", sc.List.ID)
	}
	s.scripts[sc.List.ID] = sc
	s.order = append(s.order, sc.List.ID)
	return nil
}

// Merge adds every script from other.
func (s *ScriptSet) Merge(other *ScriptSet) error {
	for _, id := range other.order {
		if err := s.Add(other.scripts[id]); err != nil {
			return err
		}
	}
	return nil
}

// Script returns the command list for id. It satisfies engine.Library.
func (s *ScriptSet) Script(id int) (*CommandList, bool) {
	sc, ok := s.scripts[id]
	if !ok {
		return nil, false
	}
	return sc.List, true
}

// Get returns the full script entry for id.
func (s *ScriptSet) Get(id int) (*Script, bool) {
	sc, ok := s.scripts[id]
	return sc, ok
}

// Scripts returns every script in declaration order.
func (s *ScriptSet) Scripts() []*Script {
	out := make([]*Script, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.scripts[id])
	}
	return out
}

// IDs returns script IDs in ascending order.
func (s *ScriptSet) IDs() []int {
	ids := make([]int, 0, len(s.scripts))
	for id := range s.scripts {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Len returns the number of scripts.
func (s *ScriptSet) Len() int {
	return len(s.scripts)
}

// ScriptFile is the wire format of a script file. JSON is accepted as a YAML
// subset, so one decoder serves both.
type ScriptFile struct {
	Scripts []ScriptDoc `yaml:"scripts" json:"scripts"`
}

// ScriptDoc is one script in a script file.
type ScriptDoc struct {
	ID       int          `yaml:"id" json:"id"`
	Name     string       `yaml:"name,omitempty" json:"name,omitempty"`
	Trigger  string       `yaml:"trigger,omitempty" json:"trigger,omitempty"`
	Origin   Origin       `yaml:"origin,omitempty" json:"origin,omitempty"`
	Commands []CommandDoc `yaml:"commands" json:"commands"`
}

// CommandDoc is one command record. The opcode may be given numerically
// under "opcode", or as a number or catalogue name under "op".
type CommandDoc struct {
	Op         any   `yaml:"op,omitempty" json:"op,omitempty"`
	Opcode     *int  `yaml:"opcode,omitempty" json:"opcode,omitempty"`
	Indent     int   `yaml:"indent" json:"indent"`
	Params     []any `yaml:"params,omitempty" json:"params,omitempty"`
	Parameters []any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// DecodeScripts parses a YAML or JSON script file.
// Unknown fields are rejected to catch authoring typos.
func DecodeScripts(data []byte) (*ScriptSet, error) {
	var file ScriptFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse script file: %w", err)
	}
	return file.Build()
}

// Build converts the wire documents into a ScriptSet.
func (f *ScriptFile) Build() (*ScriptSet, error) {
	set := NewScriptSet()
	for i, doc := range f.Scripts {
		sc, err := doc.Build()
		if err != nil {
			return nil, fmt.Errorf("scripts[%d] (id %d): %w", i, doc.ID, err)
		}
		if err := set.Add(sc); err != nil {
			return nil, fmt.Errorf("scripts[%d]: %w", i, err)
		}
	}
	return set, nil
}

// Build converts one script document.
func (d *ScriptDoc) Build() (*Script, error) {
	trigger := TriggerKind(d.Trigger)
	if !trigger.Valid() {
		return nil, fmt.Errorf("unknown trigger %q", d.Trigger)
	}

	cmds := make([]Command, len(d.Commands))
	for i, cd := range d.Commands {
		cmd, err := cd.Build()
		if err != nil {
			return nil, fmt.Errorf("commands[%d]: %w", i, err)
		}
		cmds[i] = cmd
	}

	return &Script{
		List:    NewCommandList(d.ID, d.Name, cmds),
		Trigger: trigger,
		Origin:  d.Origin,
	}, nil
}

// Build converts one command record.
func (d *CommandDoc) Build() (Command, error) {
	op, err := d.opcode()
	if err != nil {
		return Command{}, err
	}
	if d.Indent < 0 {
		return Command{}, fmt.Errorf("negative indent %d", d.Indent)
	}

	raw := d.Params
	if len(raw) == 0 {
		raw = d.Parameters
	} else if len(d.Parameters) > 0 {
		return Command{}, fmt.Errorf("both params and parameters given")
	}

	params := make(Params, len(raw))
	for i, p := range raw {
		v, err := FromAny(p)
		if err != nil {
			return Command{}, fmt.Errorf("parameter %d: %w", i, err)
		}
		params[i] = v
	}

	return Command{Opcode: op, Indent: d.Indent, Params: params}, nil
}

func (d *CommandDoc) opcode() (Opcode, error) {
	if d.Opcode != nil {
		if d.Op != nil {
			return 0, fmt.Errorf("both op and opcode given")
		}
		return Opcode(*d.Opcode), nil
	}

	switch v := d.Op.(type) {
	case nil:
		return 0, fmt.Errorf("missing opcode")
	case string:
		op, ok := ParseOpcode(v)
		if !ok {
			return 0, fmt.Errorf("unknown opcode name %q", v)
		}
		return op, nil
	default:
		val, err := FromAny(v)
		if err != nil {
			return 0, fmt.Errorf("opcode: %w", err)
		}
		n, err := AsInt(val)
		if err != nil {
			return 0, fmt.Errorf("opcode: %w", err)
		}
		return Opcode(n), nil
	}
}
