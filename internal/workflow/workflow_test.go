package workflow

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/kingrea/wardboard/internal/notify"
	"github.com/kingrea/wardboard/internal/ward"
)

type fakeBeds struct {
	mu          sync.Mutex
	assigns     []assignCall
	deassigns   []ward.ID
	assignErr   error
	deassignErr error
	gate        chan struct{}
	entered     chan struct{}
}

type assignCall struct {
	bedID  ward.ID
	intake ward.PatientIntake
}

func (f *fakeBeds) wait() {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeBeds) Assign(ctx context.Context, bedID ward.ID, intake ward.PatientIntake) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigns = append(f.assigns, assignCall{bedID: bedID, intake: intake})
	return f.assignErr
}

func (f *fakeBeds) Deassign(ctx context.Context, bedID ward.ID) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deassigns = append(f.deassigns, bedID)
	return f.deassignErr
}

func (f *fakeBeds) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.assigns), len(f.deassigns)
}

type countingRefresher struct {
	mu    sync.Mutex
	count int
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return nil
}

func (r *countingRefresher) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

type recordedToast struct {
	message string
	kind    notify.Kind
}

type recorder struct {
	mu     sync.Mutex
	toasts []recordedToast
}

func (r *recorder) Notify(message string, kind notify.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, recordedToast{message, kind})
}

func (r *recorder) last(t *testing.T) recordedToast {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		t.Fatalf("expected a notification")
	}
	return r.toasts[len(r.toasts)-1]
}

func vacantBed() ward.Bed {
	return ward.Bed{ID: ward.NumericID(5), BedNumber: "B5"}
}

func occupiedBed() ward.Bed {
	pid := ward.StringID("P9")
	return ward.Bed{ID: ward.NumericID(7), BedNumber: "B7", PatientID: &pid}
}

func fillJaneDoe(t *testing.T, a *Assignment, skip ...ward.Field) {
	t.Helper()
	values := map[ward.Field]string{
		ward.FieldFullName:         "Jane Doe",
		ward.FieldAge:              "34",
		ward.FieldBirthDate:        "1990-01-01",
		ward.FieldSex:              "Female",
		ward.FieldCondition:        "Fever",
		ward.FieldContactDetails:   "555-1234",
		ward.FieldFrequencyMeasure: "Green",
	}
	for _, field := range skip {
		delete(values, field)
	}
	for field, value := range values {
		if err := a.SetField(field, value); err != nil {
			t.Fatalf("set %s: %v", field, err)
		}
	}
}

func newAssignment(t *testing.T, beds *fakeBeds) (*Assignment, *countingRefresher, *recorder) {
	t.Helper()
	refresher := &countingRefresher{}
	rec := &recorder{}
	a, err := NewAssignment(beds, refresher, WithNotifier(rec))
	if err != nil {
		t.Fatalf("new assignment: %v", err)
	}
	return a, refresher, rec
}

func openForm(t *testing.T, a *Assignment, bed ward.Bed) {
	t.Helper()
	if err := a.Select(bed); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := a.OpenForm(); err != nil {
		t.Fatalf("open form: %v", err)
	}
}

func TestAssignmentSubmitsCompleteIntake(t *testing.T) {
	beds := &fakeBeds{}
	a, refresher, rec := newAssignment(t, beds)
	openForm(t, a, vacantBed())
	if got := a.Title(); got != "Assign Patient to B5" {
		t.Fatalf("title = %q", got)
	}
	fillJaneDoe(t, a)

	if err := a.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(beds.assigns) != 1 {
		t.Fatalf("expected one assign call, got %d", len(beds.assigns))
	}
	call := beds.assigns[0]
	if call.bedID.String() != "5" || call.intake.FullName != "Jane Doe" || call.intake.Age != 34 {
		t.Fatalf("unexpected assign call: %+v", call)
	}
	if call.intake.AdmitDateTime != "" {
		t.Fatalf("admit time must stay blank")
	}
	if got := rec.last(t); got.message != MsgAssigned || got.kind != notify.KindSuccess {
		t.Fatalf("unexpected toast %+v", got)
	}
	if refresher.Count() != 1 {
		t.Fatalf("expected exactly one refresh, got %d", refresher.Count())
	}
	snap := a.Snapshot()
	if snap.Status != StatusIdle || !snap.Bed.ID.IsZero() {
		t.Fatalf("expected idle with no selection, got %+v", snap)
	}
}

func TestAssignmentMissingFieldsStayInForm(t *testing.T) {
	beds := &fakeBeds{}
	a, refresher, rec := newAssignment(t, beds)
	openForm(t, a, vacantBed())
	fillJaneDoe(t, a, ward.FieldCondition, ward.FieldContactDetails)
	if err := a.SetField(ward.FieldFullName, "   "); err != nil {
		t.Fatalf("set: %v", err)
	}

	err := a.Submit(context.Background())
	if !errors.Is(err, ward.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var verr *ward.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ward.ValidationError, got %T", err)
	}
	want := []string{"Full Name", "Condition", "Contact Details"}
	if !reflect.DeepEqual(verr.Missing, want) {
		t.Fatalf("missing = %v, want %v", verr.Missing, want)
	}
	if assigns, _ := beds.calls(); assigns != 0 {
		t.Fatalf("validation failures must not reach the network")
	}
	if refresher.Count() != 0 {
		t.Fatalf("no refresh on validation failure")
	}
	toast := rec.last(t)
	if toast.kind != notify.KindError || toast.message != "Please fill in the following required fields:\n\nFull Name\nCondition\nContact Details" {
		t.Fatalf("unexpected toast %q", toast.message)
	}
	snap := a.Snapshot()
	if snap.Status != StatusFormOpen || snap.Form.Get(ward.FieldAge) != "34" {
		t.Fatalf("form must stay open with data, got %+v", snap)
	}
}

func TestAssignmentScenarioMissingConditionAndContact(t *testing.T) {
	beds := &fakeBeds{}
	a, _, _ := newAssignment(t, beds)
	openForm(t, a, vacantBed())
	fillJaneDoe(t, a, ward.FieldCondition, ward.FieldContactDetails)

	var verr *ward.ValidationError
	if err := a.Submit(context.Background()); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !reflect.DeepEqual(verr.Missing, []string{"Condition", "Contact Details"}) {
		t.Fatalf("missing = %v", verr.Missing)
	}
	if assigns, _ := beds.calls(); assigns != 0 {
		t.Fatalf("expected zero network calls")
	}
}

func TestAssignmentServerFailureKeepsForm(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		message string
	}{
		{"network", ward.ErrNetwork, MsgAssignFailed},
		{"rejected", ward.ErrValidation, MsgAssignRejected},
		{"auth", ward.ErrAuth, MsgSessionExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			beds := &fakeBeds{assignErr: tc.err}
			a, refresher, rec := newAssignment(t, beds)
			openForm(t, a, vacantBed())
			fillJaneDoe(t, a)

			if err := a.Submit(context.Background()); !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
			if got := rec.last(t); got.message != tc.message || got.kind != notify.KindError {
				t.Fatalf("unexpected toast %+v", got)
			}
			if refresher.Count() != 0 {
				t.Fatalf("failed submit must not refresh")
			}
			snap := a.Snapshot()
			if snap.Status != StatusFormOpen || snap.Form.Get(ward.FieldFullName) != "Jane Doe" || snap.Bed.BedNumber != "B5" {
				t.Fatalf("form must stay intact, got %+v", snap)
			}
		})
	}
}

func TestAssignmentAuthHook(t *testing.T) {
	beds := &fakeBeds{assignErr: ward.ErrAuth}
	expired := 0
	a, err := NewAssignment(beds, &countingRefresher{}, WithAuthExpired(func(context.Context) { expired++ }))
	if err != nil {
		t.Fatalf("new assignment: %v", err)
	}
	openForm(t, a, vacantBed())
	fillJaneDoe(t, a)
	_ = a.Submit(context.Background())
	if expired != 1 {
		t.Fatalf("expected auth hook once, got %d", expired)
	}
}

func TestAssignmentRejectsOccupiedAndOutOfOrderEvents(t *testing.T) {
	a, _, _ := newAssignment(t, &fakeBeds{})
	if err := a.Select(occupiedBed()); !errors.Is(err, ErrBedOccupied) {
		t.Fatalf("expected ErrBedOccupied, got %v", err)
	}
	if err := a.OpenForm(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("open form from idle: %v", err)
	}
	if err := a.Submit(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("submit from idle: %v", err)
	}
	if err := a.SetField(ward.FieldAge, "1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("set field from idle: %v", err)
	}
	if err := a.Select(vacantBed()); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := a.Select(vacantBed()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second select: %v", err)
	}
}

func TestAssignmentCancelNeverCallsNetwork(t *testing.T) {
	beds := &fakeBeds{}
	a, refresher, _ := newAssignment(t, beds)

	if err := a.Select(vacantBed()); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := a.Cancel(); err != nil || a.Status() != StatusIdle {
		t.Fatalf("cancel from bed selected: %v %s", err, a.Status())
	}

	openForm(t, a, vacantBed())
	fillJaneDoe(t, a)
	if err := a.Cancel(); err != nil || a.Status() != StatusIdle {
		t.Fatalf("cancel from form: %v %s", err, a.Status())
	}
	openForm(t, a, vacantBed())
	if got := a.Snapshot().Form.Get(ward.FieldFullName); got != "" {
		t.Fatalf("cancel must discard intake, got %q", got)
	}
	if assigns, deassigns := beds.calls(); assigns+deassigns != 0 || refresher.Count() != 0 {
		t.Fatalf("cancel must be local only")
	}
}

func TestAssignmentDuplicateSubmitIsBusy(t *testing.T) {
	beds := &fakeBeds{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	a, refresher, _ := newAssignment(t, beds)
	openForm(t, a, vacantBed())
	fillJaneDoe(t, a)

	done := make(chan error, 1)
	go func() { done <- a.Submit(context.Background()) }()
	<-beds.entered

	if a.Status() != StatusSubmitting {
		t.Fatalf("expected submitting, got %s", a.Status())
	}
	if err := a.Submit(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := a.Cancel(); !errors.Is(err, ErrBusy) {
		t.Fatalf("cancel while submitting: %v", err)
	}
	close(beds.gate)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if assigns, _ := beds.calls(); assigns != 1 {
		t.Fatalf("expected one assign call, got %d", assigns)
	}
	if refresher.Count() != 1 {
		t.Fatalf("expected one refresh, got %d", refresher.Count())
	}
}

func newDeassignment(t *testing.T, beds *fakeBeds) (*Deassignment, *countingRefresher, *recorder) {
	t.Helper()
	refresher := &countingRefresher{}
	rec := &recorder{}
	d, err := NewDeassignment(beds, refresher, WithNotifier(rec))
	if err != nil {
		t.Fatalf("new deassignment: %v", err)
	}
	return d, refresher, rec
}

func TestDeassignmentSuccess(t *testing.T) {
	beds := &fakeBeds{}
	d, refresher, rec := newDeassignment(t, beds)
	if err := d.Request(occupiedBed()); err != nil {
		t.Fatalf("request: %v", err)
	}
	if d.Status() != StatusConfirmPending {
		t.Fatalf("expected confirm pending, got %s", d.Status())
	}
	if got := d.Prompt(); got != "Are you sure you want to deassign this bed from Patient ID P9?" {
		t.Fatalf("prompt = %q", got)
	}
	if err := d.Confirm(context.Background()); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, deassigns := beds.calls(); deassigns != 1 || beds.deassigns[0].String() != "7" {
		t.Fatalf("expected one DELETE for bed 7, got %v", beds.deassigns)
	}
	if refresher.Count() != 1 {
		t.Fatalf("expected one refresh, got %d", refresher.Count())
	}
	if got := rec.last(t); got.message != MsgDeassigned {
		t.Fatalf("unexpected toast %+v", got)
	}
	if d.Status() != StatusIdle {
		t.Fatalf("expected idle, got %s", d.Status())
	}
}

func TestDeassignmentFailureScenario(t *testing.T) {
	beds := &fakeBeds{deassignErr: ward.ErrNetwork}
	d, refresher, rec := newDeassignment(t, beds)
	if err := d.Request(occupiedBed()); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := d.Confirm(context.Background()); !errors.Is(err, ward.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if got := rec.last(t); got.message != MsgDeassignFailed || got.kind != notify.KindError {
		t.Fatalf("unexpected toast %+v", got)
	}
	if refresher.Count() != 0 {
		t.Fatalf("failed deassign must not refresh")
	}
	if _, ok := d.Target(); ok {
		t.Fatalf("target must be cleared")
	}
	if d.Status() != StatusIdle || d.Prompt() != "" {
		t.Fatalf("expected idle without prompt")
	}
}

func TestDeassignmentCancelAndGuards(t *testing.T) {
	beds := &fakeBeds{}
	d, refresher, _ := newDeassignment(t, beds)

	if err := d.Request(vacantBed()); !errors.Is(err, ErrBedVacant) {
		t.Fatalf("expected ErrBedVacant, got %v", err)
	}
	if err := d.Confirm(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("confirm from idle: %v", err)
	}
	if err := d.Request(occupiedBed()); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := d.Request(occupiedBed()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second request: %v", err)
	}
	if err := d.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, ok := d.Target(); ok || d.Status() != StatusIdle {
		t.Fatalf("cancel must discard the target")
	}
	if _, deassigns := beds.calls(); deassigns != 0 || refresher.Count() != 0 {
		t.Fatalf("cancel must be local only")
	}
}

func TestDeassignmentDuplicateConfirmIsBusy(t *testing.T) {
	beds := &fakeBeds{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	d, _, _ := newDeassignment(t, beds)
	if err := d.Request(occupiedBed()); err != nil {
		t.Fatalf("request: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- d.Confirm(context.Background()) }()
	<-beds.entered

	if d.Status() != StatusSubmitting {
		t.Fatalf("expected submitting, got %s", d.Status())
	}
	if err := d.Confirm(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := d.Request(occupiedBed()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("request while submitting: %v", err)
	}
	close(beds.gate)
	if err := <-done; err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, deassigns := beds.calls(); deassigns != 1 {
		t.Fatalf("expected exactly one DELETE, got %d", deassigns)
	}
}

func TestConfirmation(t *testing.T) {
	var c Confirmation[string]
	if _, ok := c.Pending(); ok || c.Prompt() != "" {
		t.Fatalf("zero confirmation must be empty")
	}
	if err := c.Open("logout", "Are you sure you want to log out?"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := c.Open("again", "?"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double open: %v", err)
	}
	if !strings.Contains(c.Prompt(), "log out") {
		t.Fatalf("prompt = %q", c.Prompt())
	}
	target, ok := c.Take()
	if !ok || target != "logout" {
		t.Fatalf("take = %q %v", target, ok)
	}
	if c.Cancel() {
		t.Fatalf("nothing pending after take")
	}
}

func TestConstructorsRequireCollaborators(t *testing.T) {
	if _, err := NewAssignment(nil, &countingRefresher{}); err == nil {
		t.Fatalf("expected error without assigner")
	}
	if _, err := NewDeassignment(&fakeBeds{}, nil); err == nil {
		t.Fatalf("expected error without refresher")
	}
}
