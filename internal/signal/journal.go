package signal

import (
	"sync"
	"time"
)

// Journal records, per trading pair, the last time a sell signal fired.
// One entry per pair, last write wins. Entries are only evicted lazily,
// when a cooldown check finds them expired — the journal is bounded by
// the tradable-pair universe, so no background sweeper is needed.
type Journal struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{entries: make(map[string]time.Time)}
}

// Mark records that a sell signal fired for the pair at t, overwriting
// any previous entry.
func (j *Journal) Mark(pair string, t time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[pair] = t
}

// check reports whether the pair has an entry younger than cooldown as
// of now. An expired entry is evicted on the way out.
func (j *Journal) check(pair string, cooldown time.Duration, now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	t, ok := j.entries[pair]
	if !ok {
		return false
	}
	if now.Sub(t) < cooldown {
		return true
	}
	delete(j.entries, pair)
	return false
}

// Entry is an exported snapshot of one journal record, used by the
// persistence collaborator.
type Entry struct {
	Pair     string
	SignalAt time.Time
}

// Entries returns a snapshot of all journal records.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]Entry, 0, len(j.entries))
	for pair, t := range j.entries {
		out = append(out, Entry{Pair: pair, SignalAt: t})
	}
	return out
}

// Load bulk-loads restored entries on restart. Live entries win.
func (j *Journal) Load(entries []Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, e := range entries {
		if _, ok := j.entries[e.Pair]; ok {
			continue
		}
		j.entries[e.Pair] = e.SignalAt
	}
}
