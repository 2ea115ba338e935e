package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kingrea/wardboard/internal/ward"
)

// Assignment walks a nurse from picking a vacant bed to a confirmed
// admission: Idle, BedSelected, FormOpen, Validating, Submitting and back to
// Idle on success or FormOpen on failure.
type Assignment struct {
	beds      Assigner
	refresher Refresher
	hooks

	mu     sync.Mutex
	status Status
	bed    ward.Bed
	form   ward.IntakeForm
	err    error
}

// AssignmentSnapshot is a copy of the machine's state for rendering.
type AssignmentSnapshot struct {
	Status Status
	Bed    ward.Bed
	Form   ward.IntakeForm
	// Err is the last failure reported while the form was open.
	Err error
}

// NewAssignment wires the machine to the bed service and the refresher.
func NewAssignment(beds Assigner, refresher Refresher, opts ...Option) (*Assignment, error) {
	if beds == nil {
		return nil, fmt.Errorf("workflow: assigner is required")
	}
	if refresher == nil {
		return nil, fmt.Errorf("workflow: refresher is required")
	}
	return &Assignment{
		beds:      beds,
		refresher: refresher,
		hooks:     newHooks(opts),
		status:    StatusIdle,
		form:      ward.NewIntakeForm(),
	}, nil
}

// Status reports the current state.
func (a *Assignment) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Snapshot copies the current state.
func (a *Assignment) Snapshot() AssignmentSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AssignmentSnapshot{Status: a.status, Bed: a.bed, Form: a.form.Clone(), Err: a.err}
}

// Title is the dialog heading for the selected bed.
func (a *Assignment) Title() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status == StatusIdle {
		return ""
	}
	return "Assign Patient to " + a.bed.BedNumber
}

// Select picks a vacant bed.
func (a *Assignment) Select(bed ward.Bed) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != StatusIdle {
		return transitionError("select", a.status)
	}
	if bed.Occupied() {
		return fmt.Errorf("%w: %s", ErrBedOccupied, bed.Label())
	}
	a.bed = bed
	a.status = StatusBedSelected
	return nil
}

// OpenForm shows an empty intake form for the selected bed.
func (a *Assignment) OpenForm() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != StatusBedSelected {
		return transitionError("open form", a.status)
	}
	a.form = ward.NewIntakeForm()
	a.err = nil
	a.status = StatusFormOpen
	return nil
}

// SetField edits one intake value while the form is open.
func (a *Assignment) SetField(field ward.Field, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status == StatusSubmitting || a.status == StatusValidating {
		return ErrBusy
	}
	if a.status != StatusFormOpen {
		return transitionError("set field", a.status)
	}
	return a.form.Set(field, value)
}

// Submit validates the form and, when it is complete, sends it. Validation
// failures never reach the network. On success the selection is cleared and
// the bed list refreshed once; on failure the form stays open with its data.
func (a *Assignment) Submit(ctx context.Context) error {
	a.mu.Lock()
	switch a.status {
	case StatusFormOpen:
	case StatusValidating, StatusSubmitting:
		a.mu.Unlock()
		return ErrBusy
	default:
		status := a.status
		a.mu.Unlock()
		return transitionError("submit", status)
	}
	a.status = StatusValidating
	intake, err := a.form.Intake()
	if err != nil {
		a.status = StatusFormOpen
		a.err = err
		a.mu.Unlock()
		a.failure(validationMessage(err))
		return err
	}
	a.status = StatusSubmitting
	bed := a.bed
	a.mu.Unlock()

	err = a.beds.Assign(ctx, bed.ID, intake)

	a.mu.Lock()
	if err != nil {
		a.status = StatusFormOpen
		a.err = err
		a.mu.Unlock()
		a.logger.Error("Bed assignment failed", zap.String("bed", bed.Label()), zap.Error(err))
		a.reportFailure(ctx, err)
		return err
	}
	a.reset()
	a.mu.Unlock()

	a.logger.Info("Bed assigned", zap.String("bed", bed.Label()))
	a.success(MsgAssigned)
	a.reconcile(ctx, a.refresher, "assign")
	return nil
}

// Cancel abandons the selection and any typed intake.
func (a *Assignment) Cancel() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.status {
	case StatusValidating, StatusSubmitting:
		return ErrBusy
	}
	a.reset()
	return nil
}

func (a *Assignment) reset() {
	a.status = StatusIdle
	a.bed = ward.Bed{}
	a.form = ward.NewIntakeForm()
	a.err = nil
}

func (a *Assignment) reportFailure(ctx context.Context, err error) {
	switch {
	case errors.Is(err, ward.ErrAuth):
		a.authExpired(ctx)
	case errors.Is(err, ward.ErrValidation):
		a.failure(MsgAssignRejected)
	default:
		a.failure(MsgAssignFailed)
	}
}

func validationMessage(err error) string {
	var verr *ward.ValidationError
	if errors.As(err, &verr) {
		return verr.Message()
	}
	return err.Error()
}
