package testutil

import "github.com/roach88/evscript/internal/ir"

// MessageQueue is a scriptable message queue for the engine.
//
// In manual mode (the default) an enqueued message stays open until Advance
// is called. In auto-advance mode the open message closes the next time the
// queue is polled, which models a player who dismisses every message
// immediately.
type MessageQueue struct {
	// Messages holds every enqueued message in order.
	Messages []ir.Message

	auto    bool
	open    *ir.Message
	choices []int
}

// NewMessageQueue creates a manual-mode queue.
func NewMessageQueue() *MessageQueue {
	return &MessageQueue{}
}

// NewAutoMessageQueue creates an auto-advance queue.
func NewAutoMessageQueue() *MessageQueue {
	return &MessageQueue{auto: true}
}

// Choose scripts the answers to upcoming choice sets, consumed in order.
// When the script runs out, choice 0 is picked. Use
// ir.ChoiceCancelBranch to cancel.
func (q *MessageQueue) Choose(indexes ...int) {
	q.choices = append(q.choices, indexes...)
}

// Enqueue records msg and opens it.
func (q *MessageQueue) Enqueue(msg ir.Message) ir.MessageHandle {
	q.Messages = append(q.Messages, msg)
	q.open = &q.Messages[len(q.Messages)-1]
	return ir.MessageHandle(len(q.Messages))
}

// IsIdle reports whether no message is open. In auto-advance mode polling
// closes the open message.
func (q *MessageQueue) IsIdle() bool {
	if q.open != nil && q.auto {
		q.Advance()
	}
	return q.open == nil
}

// Advance closes the open message, answering it if it is a choice set.
// It is a no-op when the queue is idle.
func (q *MessageQueue) Advance() {
	if q.open == nil {
		return
	}
	msg := q.open
	q.open = nil
	if len(msg.Choices) == 0 || msg.OnChoice == nil {
		return
	}

	pick := 0
	if len(q.choices) > 0 {
		pick = q.choices[0]
		q.choices = q.choices[1:]
	}
	if pick == ir.ChoiceCancelBranch && msg.Cancel != ir.ChoiceCancelBranch {
		if msg.Cancel == ir.ChoiceCancelDisallowed {
			pick = 0
		} else {
			pick = msg.Cancel
		}
	}
	msg.OnChoice(pick)
}

// Texts returns the text of every plain message, in order.
func (q *MessageQueue) Texts() []string {
	var out []string
	for _, m := range q.Messages {
		if len(m.Choices) == 0 {
			out = append(out, m.Text)
		}
	}
	return out
}
