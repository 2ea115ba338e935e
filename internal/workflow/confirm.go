package workflow

// Confirmation is a single pending yes/no question about a target. It is
// not safe for concurrent use; owners guard it with their own lock.
type Confirmation[T any] struct {
	target  T
	prompt  string
	pending bool
}

// Open records target and the question to ask about it. Opening while a
// question is pending fails.
func (c *Confirmation[T]) Open(target T, prompt string) error {
	if c.pending {
		return transitionError("open confirmation", StatusConfirmPending)
	}
	c.target, c.prompt, c.pending = target, prompt, true
	return nil
}

// Pending reports the open target, if any.
func (c *Confirmation[T]) Pending() (T, bool) {
	return c.target, c.pending
}

// Prompt returns the open question, or "" when nothing is pending.
func (c *Confirmation[T]) Prompt() string {
	if !c.pending {
		return ""
	}
	return c.prompt
}

// Take consumes the pending target. Callers use it on confirm.
func (c *Confirmation[T]) Take() (T, bool) {
	target, ok := c.target, c.pending
	c.reset()
	return target, ok
}

// Cancel discards the pending target and reports whether one existed.
func (c *Confirmation[T]) Cancel() bool {
	ok := c.pending
	c.reset()
	return ok
}

func (c *Confirmation[T]) reset() {
	var zero T
	c.target, c.prompt, c.pending = zero, "", false
}
