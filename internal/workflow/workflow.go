// Package workflow holds the bed assignment and deassignment state machines.
// Each machine advances only through named events (Select, OpenForm, Submit,
// Request, Confirm, Cancel) and knows nothing about rendering. After a
// successful mutation the machine asks its Refresher to re-read the bed list;
// it never edits bed state itself.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kingrea/wardboard/internal/notify"
	"github.com/kingrea/wardboard/internal/ward"
)

var (
	// ErrBusy is returned when an event arrives while a request is in flight.
	ErrBusy = errors.New("workflow: request already in flight")
	// ErrInvalidTransition is returned for events the current state does not accept.
	ErrInvalidTransition = errors.New("workflow: invalid transition")
	// ErrBedOccupied is returned when selecting an occupied bed for assignment.
	ErrBedOccupied = errors.New("workflow: bed is occupied")
	// ErrBedVacant is returned when requesting deassignment of an empty bed.
	ErrBedVacant = errors.New("workflow: bed has no patient")
)

// Notification texts shown to the nurse.
const (
	MsgAssigned       = "Bed assigned successfully."
	MsgAssignFailed   = "Error assigning bed."
	MsgAssignRejected = "The server rejected the patient details."
	MsgDeassigned     = "Patient successfully removed from the bed."
	MsgDeassignFailed = "Failed to remove the patient from the bed. Please try again."
	MsgSessionExpired = "Your session has expired. Please log in again."
)

// Status names a state of either machine.
type Status string

const (
	StatusIdle           Status = "idle"
	StatusBedSelected    Status = "bed_selected"
	StatusFormOpen       Status = "form_open"
	StatusValidating     Status = "validating"
	StatusSubmitting     Status = "submitting"
	StatusConfirmPending Status = "confirm_pending"
)

// Assigner submits an intake for a bed.
type Assigner interface {
	Assign(ctx context.Context, bedID ward.ID, intake ward.PatientIntake) error
}

// Deassigner removes the patient from a bed.
type Deassigner interface {
	Deassign(ctx context.Context, bedID ward.ID) error
}

// Refresher re-reads the authoritative bed list.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) error

// Refresh calls f.
func (f RefresherFunc) Refresh(ctx context.Context) error { return f(ctx) }

// Option customizes a workflow.
type Option func(*hooks)

// WithNotifier routes user-facing messages to sink.
func WithNotifier(sink notify.Sink) Option {
	return func(h *hooks) {
		if sink != nil {
			h.sink = sink
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *hooks) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithAuthExpired replaces the default reaction to an expired session, which
// is only a notification.
func WithAuthExpired(fn func(ctx context.Context)) Option {
	return func(h *hooks) {
		if fn != nil {
			h.authExpired = fn
		}
	}
}

type hooks struct {
	sink        notify.Sink
	logger      *zap.Logger
	authExpired func(ctx context.Context)
}

func newHooks(opts []Option) hooks {
	h := hooks{
		sink:   notify.SinkFunc(func(string, notify.Kind) {}),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&h)
		}
	}
	if h.authExpired == nil {
		sink := h.sink
		h.authExpired = func(context.Context) { sink.Notify(MsgSessionExpired, notify.KindError) }
	}
	return h
}

func (h hooks) success(message string) { h.sink.Notify(message, notify.KindSuccess) }

func (h hooks) failure(message string) { h.sink.Notify(message, notify.KindError) }

// reconcile refreshes after a successful mutation. The mutation already
// happened, so a failed refresh is logged rather than returned.
func (h hooks) reconcile(ctx context.Context, refresher Refresher, op string) {
	if err := refresher.Refresh(ctx); err != nil {
		h.logger.Warn("Bed list refresh failed", zap.String("op", op), zap.Error(err))
	}
}

func transitionError(event string, from Status) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, from)
}
