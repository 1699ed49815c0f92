package testutil

import (
	"context"

	"github.com/roach88/evscript/internal/ir"
)

// MapAPI is a recording map mutation API. Effects finish immediately unless
// the test holds them with the Set methods.
type MapAPI struct {
	// Mutations holds every applied mutation in order.
	Mutations []ir.Mutation
	// Err, when set, is returned by Apply (and the mutation not recorded).
	Err error

	transferring bool
	moving       map[int]bool
	animating    map[int]bool
}

// NewMapAPI creates an idle map.
func NewMapAPI() *MapAPI {
	return &MapAPI{
		moving:    make(map[int]bool),
		animating: make(map[int]bool),
	}
}

// Apply records m.
func (m *MapAPI) Apply(_ context.Context, mut ir.Mutation) error {
	if m.Err != nil {
		return m.Err
	}
	m.Mutations = append(m.Mutations, mut)
	return nil
}

// Kinds returns the kinds of the applied mutations, in order.
func (m *MapAPI) Kinds() []string {
	out := make([]string, len(m.Mutations))
	for i, mut := range m.Mutations {
		out[i] = mut.Kind
	}
	return out
}

// SetTransferring holds or releases a map transfer.
func (m *MapAPI) SetTransferring(v bool) { m.transferring = v }

// SetMoving holds or releases target's move route.
func (m *MapAPI) SetMoving(target int, v bool) { m.moving[target] = v }

// SetAnimating holds or releases target's animation.
func (m *MapAPI) SetAnimating(target int, v bool) { m.animating[target] = v }

func (m *MapAPI) Transferring() bool        { return m.transferring }
func (m *MapAPI) Moving(target int) bool    { return m.moving[target] }
func (m *MapAPI) Animating(target int) bool { return m.animating[target] }

// Battle is a settable battle state.
type Battle struct {
	Forced bool
}

// ActionForced reports whether a forced action is pending.
func (b *Battle) ActionForced() bool { return b.Forced }
