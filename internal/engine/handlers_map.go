package engine

import (
	"context"
	"fmt"

	"github.com/roach88/evscript/internal/ir"
)

// Mutation kinds sent to the MapAPI by built-in handlers.
const (
	MutationTransfer    = "transfer"
	MutationMoveRoute   = "move_route"
	MutationAnimation   = "animation"
	MutationForceAction = "force_action"
)

// handleTransfer moves the player to another map and waits for the
// transition to finish.
func handleTransfer(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	mapID, err := cmd.Params.Int(0)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return Continue()
	}
	m := ir.Mutation{
		Kind:   MutationTransfer,
		Target: mapID,
		Args: ir.Object{
			"x": ir.Int(cmd.Params.IntOr(1, 0)),
			"y": ir.Int(cmd.Params.IntOr(2, 0)),
		},
	}
	if !in.applyMutation(ctx, cmd, m) {
		return Continue()
	}
	in.SetWait(WaitDescriptor{Reason: WaitTransfer})
	return Suspend()
}

// handleMoveRoute starts a move route, optionally waiting for it.
func handleMoveRoute(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	target, err := cmd.Params.Int(0)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return Continue()
	}
	m := ir.Mutation{
		Kind:   MutationMoveRoute,
		Target: target,
		Args:   ir.Object{"route": cmd.Params.Value(1)},
	}
	if !in.applyMutation(ctx, cmd, m) || !cmd.Params.Bool(2) {
		return Continue()
	}
	in.SetWait(WaitDescriptor{Reason: WaitMovement, Target: target})
	return Suspend()
}

// handleShowAnimation plays an animation, optionally waiting for it.
func handleShowAnimation(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	target, err := cmd.Params.Int(0)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return Continue()
	}
	anim, err := cmd.Params.Int(1)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return Continue()
	}
	m := ir.Mutation{
		Kind:   MutationAnimation,
		Target: target,
		Args:   ir.Object{"animation": ir.Int(anim)},
	}
	if !in.applyMutation(ctx, cmd, m) || !cmd.Params.Bool(2) {
		return Continue()
	}
	in.SetWait(WaitDescriptor{Reason: WaitAnimation, Target: target})
	return Suspend()
}

// handleWait blocks for a fixed number of ticks.
func handleWait(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	ticks, err := cmd.Params.Int(0)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return Continue()
	}
	if ticks <= 0 {
		return Continue()
	}
	in.SetWait(WaitDescriptor{Reason: WaitTicks, Remaining: ticks})
	return Suspend()
}

// handleForceAction forces a battle action and waits for it to resolve.
func handleForceAction(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	battler, err := cmd.Params.Int(0)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return Continue()
	}
	m := ir.Mutation{
		Kind:   MutationForceAction,
		Target: battler,
		Args:   ir.Object{"skill": ir.Int(cmd.Params.IntOr(1, 0))},
	}
	if !in.applyMutation(ctx, cmd, m) {
		return Continue()
	}
	in.SetWait(WaitDescriptor{Reason: WaitForcedAction, Target: battler})
	return Suspend()
}

// handleMapMutation sends an authored mutation to the MapAPI. The target is
// read from args.target when present.
func handleMapMutation(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	kind, err := cmd.Params.String(0)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return Continue()
	}
	args := ir.Object{}
	if cmd.Params.Has(1) {
		obj, ok := cmd.Params.Value(1).(ir.Object)
		if !ok {
			in.badParam(ctx, cmd, fmt.Errorf("parameter 1: want object, got %T", cmd.Params.Value(1)))
			return Continue()
		}
		args = obj
	}
	target := 0
	if t, ok := args["target"]; ok {
		n, err := ir.AsInt(t)
		if err != nil {
			in.badParam(ctx, cmd, fmt.Errorf("args.target: %w", err))
			return Continue()
		}
		target = int(n)
	}
	in.applyMutation(ctx, cmd, ir.Mutation{Kind: kind, Target: target, Args: args})
	return Continue()
}

func (in *Interpreter) applyMutation(ctx context.Context, cmd ir.Command, m ir.Mutation) bool {
	if err := in.rt.env.Map.Apply(ctx, m); err != nil {
		in.collaboratorFailed(ctx, cmd, "map", err)
		return false
	}
	return true
}
