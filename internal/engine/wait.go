package engine

import "fmt"

// WaitReason names what a waiting interpreter is blocked on.
type WaitReason int

const (
	// WaitMessage blocks until the message queue is idle.
	WaitMessage WaitReason = iota + 1
	// WaitTransfer blocks until a map transfer completes.
	WaitTransfer
	// WaitMovement blocks until Target finishes its move route.
	WaitMovement
	// WaitAnimation blocks until the animation on Target finishes.
	WaitAnimation
	// WaitTicks blocks for Remaining ticks. It is the only reason that
	// times out on its own.
	WaitTicks
	// WaitForcedAction blocks until a forced battle action resolves.
	WaitForcedAction
)

var waitReasonNames = map[WaitReason]string{
	WaitMessage:      "message",
	WaitTransfer:     "transfer",
	WaitMovement:     "movement",
	WaitAnimation:    "animation",
	WaitTicks:        "ticks",
	WaitForcedAction: "forced_action",
}

func (r WaitReason) String() string {
	if name, ok := waitReasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("wait(%d)", int(r))
}

// WaitDescriptor names the predicate a suspended interpreter waits on.
type WaitDescriptor struct {
	Reason    WaitReason
	Target    int // movement and animation target
	Remaining int // ticks left for WaitTicks

	resume int
}

// waiting evaluates the wait predicate once. It is called exactly once per
// tick while a wait is set; WaitTicks counts down as a side effect.
func (in *Interpreter) waiting() bool {
	env := in.rt.env
	w := in.wait
	switch w.Reason {
	case WaitMessage:
		return !env.Messages.IsIdle()
	case WaitTransfer:
		return env.Map.Transferring()
	case WaitMovement:
		return env.Map.Moving(w.Target)
	case WaitAnimation:
		return env.Map.Animating(w.Target)
	case WaitTicks:
		w.Remaining--
		return w.Remaining > 0
	case WaitForcedAction:
		return env.Battle.ActionForced()
	default:
		return false
	}
}
