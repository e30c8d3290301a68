package timer

// CallbackHandle identifies a registered callback for removal. Handles
// stay valid, and removable, even while callbacks are executing.
type CallbackHandle uint64

type cbEntry[T any] struct {
	h  CallbackHandle
	fn T
}

// callbacks is an insertion-ordered callback list. It is not
// self-locking; the owning Timer guards it with its own mutex and
// snapshots before iterating, so removal mid-fire never corrupts the
// pass in flight.
type callbacks[T any] struct {
	seq     CallbackHandle
	entries []cbEntry[T]
}

func (c *callbacks[T]) add(fn T) CallbackHandle {
	c.seq++
	c.entries = append(c.entries, cbEntry[T]{h: c.seq, fn: fn})
	return c.seq
}

func (c *callbacks[T]) remove(h CallbackHandle) bool {
	for i, e := range c.entries {
		if e.h == h {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (c *callbacks[T]) snapshot() []T {
	if len(c.entries) == 0 {
		return nil
	}
	out := make([]T, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.fn
	}
	return out
}
