package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/evscript/internal/ir"
)

// scanResult is where a skip scan landed.
type scanResult struct {
	land  int  // next program counter
	found bool // a target marker ended the scan
	// aborted is set when a shallower command ended the scan early.
	aborted bool
}

// skipToBoundary scans forward from index from for a command at indent whose
// opcode is in targets.
//
//   - A matching command ends the scan; the result lands just after it.
//   - A command shallower than indent aborts the scan; the result lands on
//     that command, treating it as the end of the construct.
//   - Deeper commands are passed over without evaluation.
//   - Running off the end lands at len(list).
//
// The first structurally valid marker in list order wins.
func skipToBoundary(list *ir.CommandList, from, indent int, targets ...ir.Opcode) scanResult {
	n := list.Len()
	for i := from; i < n; i++ {
		cmd := list.At(i)
		if cmd.Indent < indent {
			return scanResult{land: i, aborted: true}
		}
		if cmd.Indent == indent && containsOpcode(targets, cmd.Opcode) {
			return scanResult{land: i + 1, found: true}
		}
	}
	return scanResult{land: n}
}

// skipBlock returns the first index at or after from whose indent is at most
// indent, i.e. the end of the block of deeper commands starting at from.
func skipBlock(list *ir.CommandList, from, indent int) int {
	n := list.Len()
	i := from
	for i < n && list.At(i).Indent > indent {
		i++
	}
	return i
}

func containsOpcode(ops []ir.Opcode, op ir.Opcode) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

// skip runs skipToBoundary from the command after the current one and turns
// the result into an Outcome, reporting MALFORMED_STRUCTURE when the scan
// runs off the end of the list.
func (in *Interpreter) skip(ctx context.Context, cmd ir.Command, indent int, targets ...ir.Opcode) Outcome {
	res := skipToBoundary(in.list, in.pc+1, indent, targets...)
	if !res.found && !res.aborted {
		in.Report(ctx, slog.LevelWarn, ErrCodeMalformedStructure, cmd,
			fmt.Sprintf("no %s at indent %d after pc %d; ending script", opcodeList(targets), indent, in.pc), nil)
	}
	return Redirect(res.land)
}

func opcodeList(ops []ir.Opcode) string {
	s := ""
	for i, op := range ops {
		if i > 0 {
			s += " or "
		}
		s += op.String()
	}
	return s
}
