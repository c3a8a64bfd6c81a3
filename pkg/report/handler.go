package report

import (
	"log/slog"
	"time"

	"github.com/mash-protocol/lwm2m-go/pkg/timer"
)

// State is the observation state of a handler.
type State uint8

const (
	StateIdle State = iota
	StateWaitingPmin
	StateReadyToReport
	StateObserving
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateWaitingPmin:
		return "WAITING_PMIN"
	case StateReadyToReport:
		return "READY_TO_REPORT"
	case StateObserving:
		return "OBSERVING"
	default:
		return "UNKNOWN"
	}
}

// StepPolicy selects the baseline used by the step threshold.
type StepPolicy uint8

const (
	// StepFromLastSample moves the baseline on every sample.
	StepFromLastSample StepPolicy = iota

	// StepFromLastReport moves the baseline only when a notification is sent.
	StepFromLastReport
)

// String returns the policy name.
func (p StepPolicy) String() string {
	switch p {
	case StepFromLastSample:
		return "LAST_SAMPLE"
	case StepFromLastReport:
		return "LAST_REPORT"
	default:
		return "UNKNOWN"
	}
}

// Observer is told when a notification must be sent.
type Observer interface {
	ObservationToBeSent()
}

// Config configures a Handler.
type Config struct {
	// StepPolicy selects the step baseline.
	StepPolicy StepPolicy

	// Target is the tree level the handler belongs to.
	// Value thresholds are only accepted for TargetResource.
	Target Target

	// Logger for debug output (optional)
	Logger *slog.Logger
}

// DefaultConfig returns the configuration for a resource handler.
func DefaultConfig() Config {
	return Config{
		StepPolicy: StepFromLastSample,
		Target:     TargetResource,
	}
}

// Handler schedules notifications for one observed node. It is not safe for
// concurrent use; timer expiries must be delivered on the owner's goroutine.
type Handler struct {
	observer Observer
	timers   timer.Service
	config   Config

	attrs Attributes
	state State

	// Timers exist only while observed
	pminTimer timer.Timer
	pmaxTimer timer.Timer

	current     float64
	last        float64
	hasBaseline bool
	highStep    float64
	lowStep     float64
	notify      bool
}

// NewHandler creates an idle handler.
func NewHandler(observer Observer, timers timer.Service, config Config) *Handler {
	if config.Target == 0 {
		config.Target = TargetResource
	}
	return &Handler{
		observer: observer,
		timers:   timers,
		config:   config,
	}
}

// State returns the current state.
func (h *Handler) State() State {
	return h.state
}

// IsObserving returns true while the node is under observation.
func (h *Handler) IsObserving() bool {
	return h.state != StateIdle
}

// Attributes returns the active write attributes.
func (h *Handler) Attributes() Attributes {
	return h.attrs
}

// Notify returns the result of the most recent threshold evaluation.
func (h *Handler) Notify() bool {
	return h.notify
}

// CurrentValue returns the latest sample.
func (h *Handler) CurrentValue() float64 {
	return h.current
}

// LastValue returns the step baseline.
func (h *Handler) LastValue() float64 {
	return h.last
}

// Steps returns the high and low step bounds derived from the baseline.
func (h *Handler) Steps() (high, low float64) {
	return h.highStep, h.lowStep
}

// SetUnderObservation starts or stops observation. Starting arms the timers
// of the current attributes; stopping disarms them and keeps the attributes.
func (h *Handler) SetUnderObservation(observed bool) {
	if observed == h.IsObserving() {
		return
	}
	if !observed {
		h.stopTimers()
		h.state = StateIdle
		h.notify = false
		h.debug("observation stopped")
		return
	}

	h.pminTimer = h.timers.NewTimer(timer.KindPmin, h.TimerExpired)
	h.pmaxTimer = h.timers.NewTimer(timer.KindPmax, h.TimerExpired)
	h.state = StateObserving
	h.handleTimers()
	h.debug("observation started", "attributes", h.attrs.Query())
}

// ParseNotificationAttribute applies a write-attribute query. It returns false
// and leaves the handler unchanged if any token is unknown, malformed, not
// allowed on the handler's target, or if the merged set is invalid.
func (h *Handler) ParseNotificationAttribute(query string) bool {
	return h.ApplyQuery(query) == nil
}

// ApplyQuery is ParseNotificationAttribute with the failure reason.
func (h *Handler) ApplyQuery(query string) error {
	attrs, cancel, err := ParseAttributes(query, h.config.Target, h.attrs)
	if err != nil {
		h.debug("attribute query rejected", "query", query, "error", err)
		return err
	}
	if cancel {
		h.Cancel()
		return nil
	}

	h.attrs = attrs
	h.updateSteps()
	if h.IsObserving() {
		h.handleTimers()
	}
	h.debug("attributes applied", "attributes", h.attrs.Query())
	return nil
}

// CheckAttributeValidity reports whether the active attributes are consistent.
func (h *Handler) CheckAttributeValidity() bool {
	return h.attrs.CheckValidity() == nil
}

// Cancel clears every attribute, stops both timers and ends observation.
func (h *Handler) Cancel() {
	h.stopTimers()
	h.attrs = Attributes{}
	h.state = StateIdle
	h.notify = false
	h.hasBaseline = false
	h.debug("observation cancelled")
}

// Seed sets the baseline without evaluating it, typically with the value
// returned in the response that started observation.
func (h *Handler) Seed(v float64) {
	h.current = v
	h.setBaseline(v)
}

// SetValue feeds a new sample.
func (h *Handler) SetValue(v float64) {
	h.current = v
	if !h.IsObserving() {
		return
	}
	h.scheduleReport(v)
}

// ValueChanged feeds a change of a value that has no numeric form. It
// qualifies only when no value threshold is set.
func (h *Handler) ValueChanged() {
	if !h.IsObserving() {
		return
	}
	h.notify = !h.attrs.HasThresholds()
	h.gate(h.notify)
}

// TriggerObjectNotification signals a structural change. It is gated by
// pmin and pmax only.
func (h *Handler) TriggerObjectNotification() {
	if !h.IsObserving() {
		return
	}
	h.notify = true
	h.gate(true)
}

// TimerExpired is the timer callback.
func (h *Handler) TimerExpired(kind timer.Kind) {
	if !h.IsObserving() {
		return
	}
	switch kind {
	case timer.KindPmin:
		switch h.state {
		case StateReadyToReport:
			h.report()
		case StateWaitingPmin:
			h.state = StateObserving
		}
	case timer.KindPmax:
		h.debug("pmax elapsed")
		h.report()
	}
}

// Close stops both timers. The handler must not be used afterwards.
func (h *Handler) Close() {
	h.stopTimers()
	h.state = StateIdle
}

func (h *Handler) scheduleReport(v float64) {
	h.notify = h.checkThresholdValues(v)
	h.gate(h.notify)

	if !h.notify && h.config.StepPolicy == StepFromLastSample {
		h.setBaseline(v)
	}
}

// gate applies pmin gating to a qualifying event.
func (h *Handler) gate(qualifies bool) {
	if !qualifies {
		return
	}
	switch h.state {
	case StateWaitingPmin, StateReadyToReport:
		h.state = StateReadyToReport
	case StateObserving:
		h.report()
	}
}

func (h *Handler) checkThresholdValues(v float64) bool {
	if !h.hasBaseline {
		return true
	}
	if !h.attrs.HasThresholds() {
		return v != h.last
	}
	return h.checkGtLtParams(v) || h.checkStep(v)
}

func (h *Handler) checkGtLtParams(v float64) bool {
	if h.attrs.Has(AttrGt) && v > h.attrs.Gt {
		return true
	}
	if h.attrs.Has(AttrLt) && v < h.attrs.Lt {
		return true
	}
	return false
}

func (h *Handler) checkStep(v float64) bool {
	if !h.attrs.Has(AttrSt) {
		return false
	}
	return v >= h.highStep || v <= h.lowStep
}

func (h *Handler) report() {
	h.debug("notification due", "value", h.current, "state", h.state)
	h.setBaseline(h.current)
	h.notify = false
	h.state = StateObserving
	h.handleTimers()
	if h.observer != nil {
		h.observer.ObservationToBeSent()
	}
}

func (h *Handler) setBaseline(v float64) {
	h.last = v
	h.hasBaseline = true
	h.updateSteps()
}

func (h *Handler) updateSteps() {
	h.highStep = h.last + h.attrs.St
	h.lowStep = h.last - h.attrs.St
}

// handleTimers restarts both timers from the current attributes.
func (h *Handler) handleTimers() {
	if h.pminTimer == nil || h.pmaxTimer == nil {
		return
	}

	if h.attrs.Has(AttrPmin) && h.attrs.Pmin > 0 {
		h.pminTimer.Start(seconds(h.attrs.Pmin))
		if h.state != StateReadyToReport {
			h.state = StateWaitingPmin
		}
	} else {
		h.pminTimer.Stop()
		if h.state == StateReadyToReport {
			// pmin no longer holds back the pending report.
			h.report()
			return
		}
		h.state = StateObserving
	}

	if h.attrs.Has(AttrPmax) && h.attrs.Pmax > 0 {
		h.pmaxTimer.Start(seconds(h.attrs.Pmax))
	} else {
		h.pmaxTimer.Stop()
	}
}

func (h *Handler) stopTimers() {
	if h.pminTimer != nil {
		h.pminTimer.Stop()
		h.pminTimer = nil
	}
	if h.pmaxTimer != nil {
		h.pmaxTimer.Stop()
		h.pmaxTimer = nil
	}
}

func (h *Handler) debug(msg string, args ...any) {
	if h.config.Logger != nil {
		h.config.Logger.Debug(msg, args...)
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
