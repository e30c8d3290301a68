package scheduler

import (
	"container/heap"
	"time"
)

// triggerHeap is a min-heap of pending trigger times, keyed by
// (at, id) so equal trigger times pop in registration order.
//
// Entries are lazily deleted: Cancel and Reschedule leave the old item
// in place and the loop discards items whose generation no longer
// matches the live event. This keeps mutations O(log n) without
// needing heap.Fix bookkeeping.
type triggerItem struct {
	at  time.Time
	id  uint64
	gen uint64
}

type triggerHeap []triggerItem

func (h triggerHeap) Len() int { return len(h) }

func (h triggerHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].id < h[j].id
	}
	return h[i].at.Before(h[j].at)
}

func (h triggerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *triggerHeap) Push(x any) { *h = append(*h, x.(triggerItem)) }

func (h *triggerHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

func (h *triggerHeap) push(it triggerItem) { heap.Push(h, it) }

func (h *triggerHeap) pop() triggerItem { return heap.Pop(h).(triggerItem) }

func (h triggerHeap) peek() (triggerItem, bool) {
	if len(h) == 0 {
		return triggerItem{}, false
	}
	return h[0], true
}
