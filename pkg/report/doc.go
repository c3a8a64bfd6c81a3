// Package report decides when an observed node must send a notification.
//
// A Handler is owned by exactly one observable node. It is fed sampled values
// (SetValue) and structural change signals (TriggerObjectNotification), and
// asks its Observer to send a notification when the write attributes allow it.
//
// # Write Attributes
//
// Attributes arrive as a URI query such as "pmin=5&pmax=60&gt=20.5":
//   - pmin: minimum seconds between two notifications
//   - pmax: maximum seconds without a notification
//   - gt, lt: report when the value is above gt or below lt
//   - st: report when the value moved by at least st from the baseline
//   - cancel: clear every attribute and end observation
//
// The value thresholds are only accepted for resource targets. A query is
// applied atomically: either every token parses and the merged set is valid,
// or nothing changes.
//
// # States
//
//	Idle           not observed, no timers
//	WaitingPmin    observed, pmin running, nothing pending
//	ReadyToReport  observed, pmin running, a notification is pending
//	Observing      observed, pmin elapsed, the next qualifying sample is sent at once
//
// A pmax expiry always sends a notification. Every notification restarts both
// timers, which moves the handler back to WaitingPmin when pmin is set.
//
// # Thresholds
//
// When none of gt, lt and st is set, any change from the baseline qualifies.
// Otherwise a sample qualifies when it is above gt, below lt, or at least st
// away from the baseline. The StepPolicy decides whether the baseline follows
// every sample or only the last reported value.
package report
