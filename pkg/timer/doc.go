// Package timer provides countdown/countup timers and single-action
// cooldowns.
//
// Both compute elapsed time lazily from the clock at query time; a
// Timer additionally subscribes to the tick source while running to
// deliver rate-limited tick notifications and detect countdown
// completion. Neither requires the scheduler.
package timer
