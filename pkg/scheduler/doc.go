// Package scheduler fires callbacks at future times, driven by an
// external tick source.
//
// A Scheduler only holds a tick subscription while at least one active
// event exists, so idle schedulers cost nothing. Events due in the
// same pass fire in registration order on a dispatch goroutine off the
// tick loop, each with panic isolation so one bad callback cannot
// stall the loop or its siblings.
package scheduler
