package engine

import (
	"context"

	"github.com/roach88/evscript/internal/ir"
)

// choicePending marks a choice set that has not been answered yet.
const choicePending = -3

// handleShowMessage enqueues text and waits for the queue to drain. A busy
// queue is retried next tick.
func handleShowMessage(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	text, err := cmd.Params.String(0)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return Continue()
	}
	mq := in.rt.env.Messages
	if !mq.IsIdle() {
		return Suspend()
	}
	mq.Enqueue(ir.Message{Text: text})
	in.SetWait(WaitDescriptor{Reason: WaitMessage})
	return Suspend()
}

// handleShowChoices enqueues a choice set. The selected index is recorded at
// the command's indent for the when_choice and when_cancel markers.
func handleShowChoices(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	choices, err := cmd.Params.Strings(0)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return Continue()
	}
	mq := in.rt.env.Messages
	if !mq.IsIdle() {
		return Suspend()
	}

	indent := cmd.Indent
	in.choice[indent] = choicePending
	mq.Enqueue(ir.Message{
		Choices: choices,
		Cancel:  cmd.Params.IntOr(1, ir.ChoiceCancelDisallowed),
		OnChoice: func(index int) {
			in.choice[indent] = index
		},
	})
	in.SetWait(WaitDescriptor{Reason: WaitMessage})
	return Suspend()
}

// handleWhenChoice enters its block only if its index was chosen.
func handleWhenChoice(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	index, err := cmd.Params.Int(0)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return Redirect(skipBlock(in.list, in.pc+1, cmd.Indent))
	}
	if in.choice[cmd.Indent] != index {
		return Redirect(skipBlock(in.list, in.pc+1, cmd.Indent))
	}
	return Continue()
}

// handleWhenCancel enters its block only if the choice set was cancelled.
func handleWhenCancel(_ context.Context, in *Interpreter, cmd ir.Command) Outcome {
	if in.choice[cmd.Indent] != ir.ChoiceCancelBranch {
		return Redirect(skipBlock(in.list, in.pc+1, cmd.Indent))
	}
	return Continue()
}

// handleWaitMessage waits for the message queue to drain.
func handleWaitMessage(_ context.Context, in *Interpreter, _ ir.Command) Outcome {
	if in.rt.env.Messages.IsIdle() {
		return Continue()
	}
	in.SetWait(WaitDescriptor{Reason: WaitMessage})
	return Suspend()
}
