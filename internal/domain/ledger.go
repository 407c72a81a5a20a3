package domain

// Ledger is the append-only, ordered record of one tracker's activities.
//
// A Ledger is owned by a single tracker and is not safe for concurrent writers;
// stores serialise appends per tracker.
type Ledger struct {
	entries []Activity
}

// NewLedger builds a ledger holding entries in the order given.
func NewLedger(entries ...Activity) *Ledger {
	l := &Ledger{entries: make([]Activity, 0, len(entries))}
	l.entries = append(l.entries, entries...)
	return l
}

// Append adds an activity to the end of the ledger and returns its 1-based position.
func (l *Ledger) Append(activity Activity) int64 {
	l.entries = append(l.entries, activity)
	return int64(len(l.entries))
}

// Len returns the number of recorded activities.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Empty reports whether nothing has been recorded yet.
func (l *Ledger) Empty() bool {
	return l.Len() == 0
}

// All returns a copy of the full chronological sequence.
func (l *Ledger) All() []Activity {
	if l == nil {
		return []Activity{}
	}
	out := make([]Activity, len(l.entries))
	copy(out, l.entries)
	return out
}

// Recent returns up to n of the latest activities, newest first.
func (l *Ledger) Recent(n int) []Activity {
	if n <= 0 || l.Len() == 0 {
		return []Activity{}
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Activity, 0, n)
	for i := len(l.entries) - 1; i >= len(l.entries)-n; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// Last returns the most recent activity.
func (l *Ledger) Last() (Activity, bool) {
	if l.Len() == 0 {
		return Activity{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Score runs the scoring engine over the ledger.
func (l *Ledger) Score() Result {
	if l == nil {
		return Score(nil)
	}
	return Score(l.entries)
}
