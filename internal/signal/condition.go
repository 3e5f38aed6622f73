package signal

import "time"

// Condition gates a strategy's sell signals: once a signal has fired for
// a pair, the same signal is suppressed until the cooldown elapses. Each
// strategy owns its own Condition (and journal) — one strategy's exit and
// another's entry for the same pair are independent decisions.
type Condition struct {
	journal  *Journal
	cooldown time.Duration
	now      func() time.Time
}

// NewCondition creates a condition over its own journal.
func NewCondition(cooldown time.Duration) *Condition {
	return &Condition{
		journal:  NewJournal(),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// WorkedOutBefore reports whether the pair's sell signal already fired
// within the cooldown window. An entry whose cooldown has elapsed is
// evicted and no longer suppresses.
func (c *Condition) WorkedOutBefore(pair string) bool {
	return c.journal.check(pair, c.cooldown, c.now())
}

// MarkWorkedOut records that the strategy acted on the pair's sell
// signal, starting the cooldown.
func (c *Condition) MarkWorkedOut(pair string) {
	c.journal.Mark(pair, c.now())
}

// Journal exposes the underlying journal for snapshot and restore.
func (c *Condition) Journal() *Journal {
	return c.journal
}
