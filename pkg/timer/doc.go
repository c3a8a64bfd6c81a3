// Package timer implements the countdown timers used by observation reporting.
//
// Every report handler owns two timers, one for the minimum reporting period
// (pmin) and one for the maximum reporting period (pmax). Handlers only see the
// Service and Timer interfaces; the concrete implementation decides how expiry
// is delivered.
//
// # Timer Lifecycle
//
// A timer is created stopped. Start arms it for a duration, replacing any
// previous countdown. Stop disarms it without calling the expiry callback.
// An expiry that raced with Stop or a restart is discarded, so a stopped
// timer never fires.
//
// # Dispatch
//
// Manager uses time.AfterFunc, which fires on its own goroutine. The resource
// tree is single-threaded, so Manager hands every expiry to a dispatch
// function. The device service passes a function that posts onto its event
// loop; the expiry callback then runs on the same goroutine as request
// handling.
//
// # Manual Clock
//
// Manual is a deterministic Service for tests. Time only moves when Advance
// is called, and expiries run synchronously in deadline order.
package timer
