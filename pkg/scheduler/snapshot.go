package scheduler

import "sort"

// Snapshot returns a point-in-time view of all active events, in
// registration order.
func (s *Scheduler) Snapshot() []EventInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	items := make([]EventInfo, 0, len(s.events))
	for _, ev := range s.events {
		remaining := ev.next.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		items = append(items, EventInfo{
			ID:            Handle(ev.id),
			Label:         ev.label,
			Kind:          ev.kind,
			NextTrigger:   ev.next,
			TimeRemaining: remaining,
			Recurring:     ev.recurring(),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}
