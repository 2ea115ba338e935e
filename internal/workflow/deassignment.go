package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kingrea/wardboard/internal/ward"
)

// Deassignment discharges the patient of an occupied bed after an explicit
// confirmation: Idle, ConfirmPending, Submitting, Idle.
type Deassignment struct {
	beds      Deassigner
	refresher Refresher
	hooks

	mu      sync.Mutex
	confirm Confirmation[ward.Bed]
	busy    bool
}

// NewDeassignment wires the machine to the bed service and the refresher.
func NewDeassignment(beds Deassigner, refresher Refresher, opts ...Option) (*Deassignment, error) {
	if beds == nil {
		return nil, fmt.Errorf("workflow: deassigner is required")
	}
	if refresher == nil {
		return nil, fmt.Errorf("workflow: refresher is required")
	}
	return &Deassignment{beds: beds, refresher: refresher, hooks: newHooks(opts)}, nil
}

// Status reports the current state.
func (d *Deassignment) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.statusLocked()
}

func (d *Deassignment) statusLocked() Status {
	if d.busy {
		return StatusSubmitting
	}
	if _, ok := d.confirm.Pending(); ok {
		return StatusConfirmPending
	}
	return StatusIdle
}

// Target returns the bed awaiting confirmation.
func (d *Deassignment) Target() (ward.Bed, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.confirm.Pending()
}

// Prompt is the confirmation question for the pending bed.
func (d *Deassignment) Prompt() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.confirm.Prompt()
}

// Request asks for confirmation to deassign bed.
func (d *Deassignment) Request(bed ward.Bed) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if status := d.statusLocked(); status != StatusIdle {
		return transitionError("request", status)
	}
	if !bed.Occupied() {
		return fmt.Errorf("%w: %s", ErrBedVacant, bed.Label())
	}
	prompt := fmt.Sprintf("Are you sure you want to deassign this bed from Patient ID %s?", bed.Patient())
	return d.confirm.Open(bed, prompt)
}

// Cancel drops the pending request.
func (d *Deassignment) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		return ErrBusy
	}
	d.confirm.Cancel()
	return nil
}

// Confirm sends the deassignment. The target is consumed whatever the
// outcome; only success refreshes the bed list.
func (d *Deassignment) Confirm(ctx context.Context) error {
	d.mu.Lock()
	if d.busy {
		d.mu.Unlock()
		return ErrBusy
	}
	bed, ok := d.confirm.Take()
	if !ok {
		d.mu.Unlock()
		return transitionError("confirm", StatusIdle)
	}
	d.busy = true
	d.mu.Unlock()

	err := d.beds.Deassign(ctx, bed.ID)

	d.mu.Lock()
	d.busy = false
	d.mu.Unlock()

	if err != nil {
		d.logger.Error("Bed deassignment failed", zap.String("bed", bed.Label()), zap.Error(err))
		if errors.Is(err, ward.ErrAuth) {
			d.authExpired(ctx)
		} else {
			d.failure(MsgDeassignFailed)
		}
		return err
	}
	d.logger.Info("Bed deassigned", zap.String("bed", bed.Label()), zap.String("patient_id", bed.Patient()))
	d.success(MsgDeassigned)
	d.reconcile(ctx, d.refresher, "deassign")
	return nil
}
