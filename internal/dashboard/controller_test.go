package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kingrea/wardboard/internal/notify"
	"github.com/kingrea/wardboard/internal/ward"
	"github.com/kingrea/wardboard/internal/workflow"
)

type fakeService struct {
	mu          sync.Mutex
	beds        []ward.Bed
	listErr     error
	deassignErr error
	lists       int
	assigns     int
	deassigns   int
}

func (f *fakeService) ListBeds(context.Context) ([]ward.Bed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]ward.Bed, len(f.beds))
	copy(out, f.beds)
	return out, nil
}

func (f *fakeService) Assign(_ context.Context, bedID ward.ID, _ ward.PatientIntake) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigns++
	for i := range f.beds {
		if f.beds[i].ID == bedID {
			pid := ward.StringID(fmt.Sprintf("P%d", f.assigns))
			f.beds[i].PatientID = &pid
		}
	}
	return nil
}

func (f *fakeService) Deassign(_ context.Context, bedID ward.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deassigns++
	if f.deassignErr != nil {
		return f.deassignErr
	}
	for i := range f.beds {
		if f.beds[i].ID == bedID {
			f.beds[i].PatientID = nil
		}
	}
	return nil
}

func (f *fakeService) counts() (lists, assigns, deassigns int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists, f.assigns, f.deassigns
}

type fakeCredentials struct {
	cleared int
}

func (f *fakeCredentials) Clear(context.Context) error {
	f.cleared++
	return nil
}

func ward12() []ward.Bed {
	beds := make([]ward.Bed, 12)
	for i := range beds {
		beds[i] = ward.Bed{ID: ward.NumericID(int64(i + 1)), BedNumber: fmt.Sprintf("B%d", i+1)}
	}
	pid := ward.StringID("P9")
	beds[6].PatientID = &pid
	return beds
}

type harness struct {
	svc    *fakeService
	creds  *fakeCredentials
	routes []string
	toasts []string
	ctrl   *Controller
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{svc: &fakeService{beds: ward12()}, creds: &fakeCredentials{}}
	base := []Option{
		WithCredentials(h.creds),
		WithNavigator(NavigatorFunc(func(route string) { h.routes = append(h.routes, route) })),
		WithNotifier(notify.SinkFunc(func(message string, _ notify.Kind) { h.toasts = append(h.toasts, message) })),
	}
	ctrl, err := New(h.svc, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	h.ctrl = ctrl
	return h
}

func TestMountLoadsOnceAndCaps(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.ctrl.Mount(ctx); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if err := h.ctrl.Mount(ctx); err != nil {
		t.Fatalf("second mount: %v", err)
	}
	if lists, _, _ := h.svc.counts(); lists != 1 {
		t.Fatalf("mount must fetch once, got %d", lists)
	}
	if got := len(h.ctrl.Beds()); got != DefaultDisplayCap {
		t.Fatalf("expected %d displayed beds, got %d", DefaultDisplayCap, got)
	}
	if got := len(h.ctrl.AllBeds()); got != 12 {
		t.Fatalf("expected 12 fetched beds, got %d", got)
	}
	if occ := h.ctrl.Occupancy(); occ.Occupied != 1 || occ.Total != 12 {
		t.Fatalf("unexpected occupancy %+v", occ)
	}
	if h.ctrl.Loading() || h.ctrl.Err() != nil {
		t.Fatalf("expected settled state")
	}
}

func TestDisplayCapOption(t *testing.T) {
	h := newHarness(t, WithDisplayCap(3))
	if err := h.ctrl.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := len(h.ctrl.Beds()); got != 3 {
		t.Fatalf("expected 3 beds, got %d", got)
	}
}

func TestRefreshFailureKeepsList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.ctrl.Mount(ctx); err != nil {
		t.Fatalf("mount: %v", err)
	}
	h.svc.listErr = ward.ErrNetwork
	if err := h.ctrl.Refresh(ctx); !errors.Is(err, ward.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if !errors.Is(h.ctrl.Err(), ward.ErrNetwork) || len(h.ctrl.AllBeds()) != 12 {
		t.Fatalf("failed refresh must keep the previous list and record the error")
	}
	if len(h.routes) != 0 {
		t.Fatalf("network errors must not navigate")
	}
}

func TestAssignmentReconcilesThroughController(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.ctrl.Mount(ctx); err != nil {
		t.Fatalf("mount: %v", err)
	}
	bed := h.ctrl.Beds()[4]
	a := h.ctrl.Assignment()
	if err := a.Select(bed); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := a.OpenForm(); err != nil {
		t.Fatalf("open form: %v", err)
	}
	for field, value := range map[ward.Field]string{
		ward.FieldFullName: "Jane Doe", ward.FieldAge: "34", ward.FieldBirthDate: "1990-01-01",
		ward.FieldSex: "Female", ward.FieldCondition: "Fever", ward.FieldContactDetails: "555-1234",
		ward.FieldFrequencyMeasure: "Green",
	} {
		if err := a.SetField(field, value); err != nil {
			t.Fatalf("set %s: %v", field, err)
		}
	}
	if err := a.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	lists, assigns, _ := h.svc.counts()
	if assigns != 1 || lists != 2 {
		t.Fatalf("expected one assign and one refresh after mount, got assigns=%d lists=%d", assigns, lists)
	}
	if !h.ctrl.Beds()[4].Occupied() {
		t.Fatalf("list must reflect the server after reconciliation")
	}
	if occ := h.ctrl.Occupancy(); occ.Occupied != 2 {
		t.Fatalf("expected 2 occupied, got %+v", occ)
	}
}

func TestDeassignFailureDoesNotRefresh(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.ctrl.Mount(ctx); err != nil {
		t.Fatalf("mount: %v", err)
	}
	h.svc.deassignErr = ward.ErrNetwork
	d := h.ctrl.Deassignment()
	if err := d.Request(h.ctrl.Beds()[6]); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := d.Confirm(ctx); !errors.Is(err, ward.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	lists, _, deassigns := h.svc.counts()
	if lists != 1 || deassigns != 1 {
		t.Fatalf("expected no refresh and one DELETE, got lists=%d deassigns=%d", lists, deassigns)
	}
	if h.toasts[len(h.toasts)-1] != workflow.MsgDeassignFailed {
		t.Fatalf("unexpected toasts %v", h.toasts)
	}
	if !h.ctrl.Beds()[6].Occupied() {
		t.Fatalf("occupancy must not change locally")
	}
}

func TestLogoutConfirmation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.ctrl.ConfirmLogout(ctx); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Fatalf("confirm without request: %v", err)
	}
	if err := h.ctrl.RequestLogout(); err != nil {
		t.Fatalf("request logout: %v", err)
	}
	if got := h.ctrl.LogoutPrompt(); got != "Are you sure you want to log out?" {
		t.Fatalf("prompt = %q", got)
	}
	h.ctrl.CancelLogout()
	if h.ctrl.LogoutPrompt() != "" || h.creds.cleared != 0 || len(h.routes) != 0 {
		t.Fatalf("cancel must leave the session alone")
	}

	if err := h.ctrl.RequestLogout(); err != nil {
		t.Fatalf("request logout: %v", err)
	}
	if err := h.ctrl.ConfirmLogout(ctx); err != nil {
		t.Fatalf("confirm logout: %v", err)
	}
	if h.creds.cleared != 1 || len(h.routes) != 1 || h.routes[0] != RouteLanding {
		t.Fatalf("expected cleared session and landing route, got cleared=%d routes=%v", h.creds.cleared, h.routes)
	}
	if lists, assigns, deassigns := h.svc.counts(); lists+assigns+deassigns != 0 {
		t.Fatalf("logout must not call the bed service")
	}
}

func TestExpiredSessionRoutesToLogin(t *testing.T) {
	h := newHarness(t)
	h.svc.listErr = ward.ErrAuth
	if err := h.ctrl.Mount(context.Background()); !errors.Is(err, ward.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if h.creds.cleared != 1 || len(h.routes) != 1 || h.routes[0] != RouteLogin {
		t.Fatalf("expected re-authentication, got cleared=%d routes=%v", h.creds.cleared, h.routes)
	}
	if len(h.toasts) != 1 || h.toasts[0] != workflow.MsgSessionExpired {
		t.Fatalf("unexpected toasts %v", h.toasts)
	}
}

func TestNewRequiresRepository(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatalf("expected error without repository")
	}
}
