package engine

// Budget counts commands executed within one tick.
//
// The scheduler hands each interpreter a fresh Budget every frame: the
// foreground slot gets the large per-frame allowance, each background
// interpreter a small fixed one. A child interpreter draws from its
// parent's Budget, so a call cannot widen the frame's cost.
type Budget struct {
	limit int
	used  int
}

// NewBudget creates a budget allowing limit commands.
// A non-positive limit allows nothing.
func NewBudget(limit int) *Budget {
	if limit < 0 {
		limit = 0
	}
	return &Budget{limit: limit}
}

// Spend consumes one command. Returns false if the budget was already
// exhausted, in which case nothing is consumed.
func (b *Budget) Spend() bool {
	if b.used >= b.limit {
		return false
	}
	b.used++
	return true
}

// Remaining returns how many commands may still run.
func (b *Budget) Remaining() int {
	return b.limit - b.used
}

// Exhausted reports whether no commands may run.
func (b *Budget) Exhausted() bool {
	return b.used >= b.limit
}

// Used returns the number of commands consumed.
func (b *Budget) Used() int {
	return b.used
}

// Limit returns the budget's allowance.
func (b *Budget) Limit() int {
	return b.limit
}
