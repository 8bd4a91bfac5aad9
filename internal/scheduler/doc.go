// Package scheduler paces the host's main loop at a fixed tick rate.
//
// A LoopTimer brackets every iteration with Start and End. End advances an
// absolute deadline by one period and sleeps until it, so the loop keeps its
// rate over time instead of drifting by the cost of each tick. A tick that
// runs long is absorbed by shortening the following waits, up to one period
// of lag. Beyond that the deadline is moved to the present and the backlog is
// forgotten.
//
// The timer is owned by a single loop goroutine and is not safe for
// concurrent use.
package scheduler
