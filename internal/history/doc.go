// Package history journals completed event firings.
//
// It records when each callback was scheduled, when it actually fired,
// how far behind it ran, and whether it panicked. This is
// observability, not schedule persistence: nothing in here is read
// back to rebuild schedules after a restart.
package history
