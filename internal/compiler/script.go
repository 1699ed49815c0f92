package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/evscript/internal/expr"
	"github.com/roach88/evscript/internal/ir"
)

// CompileFile compiles the CUE source of one script file.
func CompileFile(filename string, src []byte) (*ir.ScriptSet, error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	return CompileScripts(v)
}

// CompileScripts parses the "scripts" field of a CUE value into a
// ScriptSet. Scripts may be given as a struct keyed by name:
//
//	scripts: intro: {
//		id:      1
//		trigger: "action"
//		origin: {map: 1, event: 4}
//		commands: [
//			{op: "conditional_branch", params: [0, 1, 0]},
//			{op: "show_message", indent: 1, params: ["yes"]},
//			{op: "branch_end"},
//		]
//	}
//
// or as a list, in which case each script carries its own name.
func CompileScripts(v cue.Value) (*ir.ScriptSet, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	scriptsVal := v.LookupPath(cue.ParsePath("scripts"))
	if !scriptsVal.Exists() {
		return nil, &CompileError{
			Field:   "scripts",
			Message: "scripts is required",
			Pos:     v.Pos(),
		}
	}

	set := ir.NewScriptSet()
	add := func(sv cue.Value, label string) error {
		sc, err := compileScript(sv, label)
		if err != nil {
			return err
		}
		if err := set.Add(sc); err != nil {
			return &CompileError{Field: "id", Message: err.Error(), Pos: sv.Pos()}
		}
		return nil
	}

	switch scriptsVal.IncompleteKind() {
	case cue.StructKind:
		iter, err := scriptsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			if err := add(iter.Value(), iter.Label()); err != nil {
				return nil, err
			}
		}
	case cue.ListKind:
		iter, err := scriptsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			if err := add(iter.Value(), ""); err != nil {
				return nil, err
			}
		}
	default:
		return nil, &CompileError{
			Field:   "scripts",
			Message: fmt.Sprintf("scripts must be a struct or list, got %v", scriptsVal.IncompleteKind()),
			Pos:     scriptsVal.Pos(),
		}
	}

	return set, nil
}

// compileScript parses one script. label is the struct label, used as the
// name when no name field is given.
func compileScript(v cue.Value, label string) (*ir.Script, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	doc := ir.ScriptDoc{Name: label}

	idVal := v.LookupPath(cue.ParsePath("id"))
	if !idVal.Exists() {
		return nil, &CompileError{Field: "id", Message: "id is required", Pos: v.Pos()}
	}
	id, err := idVal.Int64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	doc.ID = int(id)

	if name, ok, err := optionalString(v, "name"); err != nil {
		return nil, err
	} else if ok {
		doc.Name = name
	}
	if trigger, ok, err := optionalString(v, "trigger"); err != nil {
		return nil, err
	} else if ok {
		doc.Trigger = trigger
	}

	if originVal := v.LookupPath(cue.ParsePath("origin")); originVal.Exists() {
		if err := originVal.Decode(&doc.Origin); err != nil {
			return nil, formatCUEError(err)
		}
	}

	cmdsVal := v.LookupPath(cue.ParsePath("commands"))
	if !cmdsVal.Exists() {
		return nil, &CompileError{Field: "commands", Message: "commands is required", Pos: v.Pos()}
	}
	iter, err := cmdsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var positions []token.Pos
	for iter.Next() {
		cd, err := compileCommand(iter.Value())
		if err != nil {
			return nil, err
		}
		doc.Commands = append(doc.Commands, cd)
		positions = append(positions, iter.Value().Pos())
	}

	// Build re-checks opcodes and indents; map its errors back to the
	// offending command's position.
	for i := range doc.Commands {
		if _, err := doc.Commands[i].Build(); err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("commands[%d]", i),
				Message: err.Error(),
				Pos:     positions[i],
			}
		}
	}
	sc, err := doc.Build()
	if err != nil {
		return nil, &CompileError{Field: "trigger", Message: err.Error(), Pos: v.Pos()}
	}
	return sc, nil
}

// compileCommand parses one command record into its wire form.
func compileCommand(v cue.Value) (ir.CommandDoc, error) {
	var cd ir.CommandDoc

	if opVal := v.LookupPath(cue.ParsePath("op")); opVal.Exists() {
		op, err := expr.FromCUE(opVal)
		if err != nil {
			return cd, &CompileError{Field: "op", Message: err.Error(), Pos: opVal.Pos()}
		}
		if s, ok := op.(ir.String); ok {
			cd.Op = string(s)
		} else {
			cd.Op = op
		}
	}
	if codeVal := v.LookupPath(cue.ParsePath("opcode")); codeVal.Exists() {
		n, err := codeVal.Int64()
		if err != nil {
			return cd, formatCUEError(err)
		}
		code := int(n)
		cd.Opcode = &code
	}

	if indentVal := v.LookupPath(cue.ParsePath("indent")); indentVal.Exists() {
		n, err := indentVal.Int64()
		if err != nil {
			return cd, formatCUEError(err)
		}
		cd.Indent = int(n)
	}

	for _, field := range []string{"params", "parameters"} {
		pv := v.LookupPath(cue.ParsePath(field))
		if !pv.Exists() {
			continue
		}
		iter, err := pv.List()
		if err != nil {
			return cd, formatCUEError(err)
		}
		var params []any
		for iter.Next() {
			p, err := expr.FromCUE(iter.Value())
			if err != nil {
				return cd, &CompileError{Field: field, Message: err.Error(), Pos: iter.Value().Pos()}
			}
			params = append(params, p)
		}
		if field == "params" {
			cd.Params = params
		} else {
			cd.Parameters = params
		}
	}

	return cd, nil
}

func optionalString(v cue.Value, field string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
