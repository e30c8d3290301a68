// Package tick delivers the periodic signal that drives all time-based
// advancement in the toolkit.
//
// The period is not guaranteed: consumers must tolerate jitter and
// variable intervals, and model waiting by re-polling on the next tick
// rather than sleeping.
package tick

import (
	"sync"
	"sync/atomic"
	"time"
)

// Func receives the tick timestamp.
//
// Contract:
//   - Funcs run on the goroutine delivering the tick.
//   - A Func must not block; long work belongs on its own goroutine.
//   - Unsubscribing during delivery is safe; the current pass uses a
//     snapshot of the subscriber list.
type Func func(now time.Time)

// Handle identifies a subscription for removal.
type Handle uint64

// Source is a tick signal components can attach to.
type Source interface {
	Subscribe(fn Func) Handle
	// Unsubscribe detaches a subscription. It returns false for an
	// unknown or already-removed handle.
	Unsubscribe(h Handle) bool
}

// Bus is an in-memory fanout Source. The zero value is not usable;
// call NewBus.
type Bus struct {
	mu   sync.RWMutex
	subs map[Handle]Func
	seq  atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{subs: map[Handle]Func{}}
}

func (b *Bus) Subscribe(fn Func) Handle {
	h := Handle(b.seq.Add(1))
	b.mu.Lock()
	b.subs[h] = fn
	b.mu.Unlock()
	return h
}

func (b *Bus) Unsubscribe(h Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[h]; !ok {
		return false
	}
	delete(b.subs, h)
	return true
}

// SubscriberCount reports the number of attached subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers one tick to every subscriber.
//
// The subscriber list is snapshotted first so handlers may subscribe
// or unsubscribe (themselves included) mid-pass without corrupting the
// iteration.
func (b *Bus) Publish(now time.Time) {
	b.mu.RLock()
	fns := make([]Func, 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		if fn != nil {
			fn(now)
		}
	}
}
