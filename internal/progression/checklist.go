package progression

import (
	"fmt"

	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/samber/lo"
)

// Checklist tracks independently ticked steps.
type Checklist struct {
	order []string
	done  map[string]bool
}

func newChecklist(steps []domain.Step) *Checklist {
	c := &Checklist{
		order: lo.Map(steps, func(s domain.Step, _ int) string { return s.ID }),
		done:  make(map[string]bool, len(steps)),
	}
	for _, id := range c.order {
		c.done[id] = false
	}
	return c
}

// Progress returns round(100*k/M) for k ticked of M steps. An empty
// checklist is complete.
func (c *Checklist) Progress() int {
	total := len(c.order)
	if total == 0 {
		return 100
	}
	k := c.Count()
	return (200*k + total) / (2 * total)
}

// Count returns the number of ticked steps.
func (c *Checklist) Count() int {
	return lo.CountBy(c.order, func(id string) bool { return c.done[id] })
}

// Full reports whether every step is ticked.
func (c *Checklist) Full() bool { return c.Count() == len(c.order) }

// Completed returns ticked step ids in step order.
func (c *Checklist) Completed() []string {
	return lo.Filter(c.order, func(id string, _ int) bool { return c.done[id] })
}

// IsDone reports whether the step is ticked.
func (c *Checklist) IsDone(stepID string) bool { return c.done[stepID] }

func (c *Checklist) toggle(stepID string) (bool, error) {
	state, ok := c.done[stepID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownStep, stepID)
	}
	c.done[stepID] = !state
	return !state, nil
}

// Toggle flips the completion of a step in checklist mode and returns its new
// state.
func (a *Attempt) Toggle(stepID string) (bool, error) {
	if err := a.requireMode(ModeChecklist); err != nil {
		return false, err
	}
	return a.checklist.toggle(stepID)
}

// Checklist returns the active checklist.
func (a *Attempt) Checklist() (*Checklist, bool) {
	return a.checklist, a.checklist != nil
}

// Progress returns checklist progress, the mentored cursor's share of steps
// passed, or 100 once completed.
func (a *Attempt) Progress() int {
	switch {
	case a.stage == StageCompleted:
		return 100
	case a.checklist != nil:
		return a.checklist.Progress()
	case a.cursor != nil && len(a.steps) > 0:
		return 100 * a.cursor.Index / len(a.steps)
	}
	return 0
}

// CanComplete reports whether the checklist completion action is unlocked.
// Rounding can show 100% on very long lists, so the unlock counts steps.
func (a *Attempt) CanComplete() bool {
	return a.checklist != nil && a.checklist.Full()
}

// Complete finishes a checklist attempt once every step is ticked.
func (a *Attempt) Complete() (Transition, error) {
	if a.stage == StageCompleted {
		return Transition{Event: EventCompleted, Index: -1}, nil
	}
	if err := a.requireMode(ModeChecklist); err != nil {
		return Transition{Event: EventNone, Index: -1}, err
	}
	if !a.CanComplete() {
		return Transition{Event: EventNone, Index: -1}, fmt.Errorf("%w: %d%%", ErrChecklistIncomplete, a.checklist.Progress())
	}
	a.finish()
	return Transition{Event: EventCompleted, Index: -1}, nil
}
