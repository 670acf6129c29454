package transcript

import "time"

// Transcript is the ordered list of turns for one session. The zero value is
// an empty transcript. It is not safe for concurrent use; the Controller
// guards it.
type Transcript struct {
	turns []Turn
	now   func() time.Time
}

func newTranscript(now func() time.Time) *Transcript {
	if now == nil {
		now = time.Now
	}
	return &Transcript{now: now}
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// Turns returns a copy of the turns in display order.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Last returns the most recent turn, if any.
func (t *Transcript) Last() (Turn, bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

func (t *Transcript) append(role Role, content string) int {
	t.turns = append(t.turns, Turn{
		Role:      role,
		Content:   content,
		CreatedAt: t.now(),
	})
	return len(t.turns) - 1
}

// setContent replaces the content of the turn at idx wholesale.
func (t *Transcript) setContent(idx int, content string) {
	if idx < 0 || idx >= len(t.turns) {
		return
	}
	t.turns[idx].Content = content
}

// removeAt drops the turn at idx only if it is still the last turn and still
// carries the given role. It reports whether a turn was removed.
func (t *Transcript) removeAt(idx int, role Role) bool {
	if idx < 0 || idx != len(t.turns)-1 || t.turns[idx].Role != role {
		return false
	}
	t.turns = t.turns[:idx]
	return true
}

func (t *Transcript) clear() {
	t.turns = nil
}
