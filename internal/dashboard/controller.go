// Package dashboard composes the bed workflows over the bed service and owns
// the bed list they reconcile against.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kingrea/wardboard/internal/notify"
	"github.com/kingrea/wardboard/internal/repository"
	"github.com/kingrea/wardboard/internal/ward"
	"github.com/kingrea/wardboard/internal/workflow"
)

const (
	// RouteLanding is where a confirmed logout goes.
	RouteLanding = "/landing"
	// RouteLogin is where an expired session goes.
	RouteLogin = "/login"
	// DefaultDisplayCap bounds how many beds the dashboard renders.
	DefaultDisplayCap = 10

	logoutPrompt = "Are you sure you want to log out?"
)

// Navigator moves the user to another screen.
type Navigator interface {
	GoTo(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

// GoTo calls f.
func (f NavigatorFunc) GoTo(route string) { f(route) }

// Credentials is the part of the session store the dashboard needs.
type Credentials interface {
	Clear(ctx context.Context) error
}

// Occupancy summarizes the fetched bed list.
type Occupancy struct {
	Occupied int
	Total    int
}

// Controller owns the bed list and the workflows that mutate it.
type Controller struct {
	beds       repository.Beds
	creds      Credentials
	nav        Navigator
	sink       notify.Sink
	logger     *zap.Logger
	displayCap int

	assignment   *workflow.Assignment
	deassignment *workflow.Deassignment

	mu      sync.RWMutex
	list    []ward.Bed
	loading bool
	mounted bool
	err     error
	logout  workflow.Confirmation[struct{}]
}

// Option customizes a Controller.
type Option func(*Controller)

// WithDisplayCap limits Beds to n entries. Values below one are ignored.
func WithDisplayCap(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.displayCap = n
		}
	}
}

// WithNotifier routes user-facing messages to sink.
func WithNotifier(sink notify.Sink) Option {
	return func(c *Controller) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithNavigator sets where logout and session expiry send the user.
func WithNavigator(nav Navigator) Option {
	return func(c *Controller) {
		if nav != nil {
			c.nav = nav
		}
	}
}

// WithCredentials sets the session the controller clears on logout.
func WithCredentials(creds Credentials) Option {
	return func(c *Controller) {
		if creds != nil {
			c.creds = creds
		}
	}
}

// New builds a controller and its workflows over beds.
func New(beds repository.Beds, opts ...Option) (*Controller, error) {
	if beds == nil {
		return nil, fmt.Errorf("dashboard: bed repository is required")
	}
	c := &Controller{
		beds:       beds,
		nav:        NavigatorFunc(func(string) {}),
		sink:       notify.SinkFunc(func(string, notify.Kind) {}),
		logger:     zap.NewNop(),
		displayCap: DefaultDisplayCap,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	wfOpts := []workflow.Option{
		workflow.WithNotifier(c.sink),
		workflow.WithLogger(c.logger),
		workflow.WithAuthExpired(c.expireSession),
	}
	var err error
	if c.assignment, err = workflow.NewAssignment(beds, c, wfOpts...); err != nil {
		return nil, err
	}
	if c.deassignment, err = workflow.NewDeassignment(beds, c, wfOpts...); err != nil {
		return nil, err
	}
	return c, nil
}

// Assignment exposes the assignment workflow.
func (c *Controller) Assignment() *workflow.Assignment { return c.assignment }

// Deassignment exposes the deassignment workflow.
func (c *Controller) Deassignment() *workflow.Deassignment { return c.deassignment }

// Mount loads the bed list the first time it is called. Later calls do
// nothing; use Refresh to reload.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return nil
	}
	c.mounted = true
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Refresh replaces the bed list with the service's current view. On failure
// the previous list is kept and the error recorded.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	beds, err := c.beds.ListBeds(ctx)

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.err = err
	} else {
		c.list = beds
		c.err = nil
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("Bed list fetch failed", zap.Error(err))
		if errors.Is(err, ward.ErrAuth) {
			c.expireSession(ctx)
		}
		return err
	}
	c.logger.Debug("Bed list refreshed", zap.Int("bed_count", len(beds)))
	return nil
}

// Loading reports whether a fetch is in flight.
func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Err is the last fetch failure, cleared by the next successful fetch.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Beds returns at most the display cap of beds, in service order.
func (c *Controller) Beds() []ward.Bed {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := len(c.list)
	if n > c.displayCap {
		n = c.displayCap
	}
	out := make([]ward.Bed, n)
	copy(out, c.list[:n])
	return out
}

// AllBeds returns every fetched bed.
func (c *Controller) AllBeds() []ward.Bed {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ward.Bed, len(c.list))
	copy(out, c.list)
	return out
}

// Occupancy counts occupied beds in the fetched list.
func (c *Controller) Occupancy() Occupancy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	occ := Occupancy{Total: len(c.list)}
	for _, bed := range c.list {
		if bed.Occupied() {
			occ.Occupied++
		}
	}
	return occ
}

// RequestLogout asks for logout confirmation.
func (c *Controller) RequestLogout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logout.Open(struct{}{}, logoutPrompt)
}

// LogoutPrompt is the pending logout question, or "".
func (c *Controller) LogoutPrompt() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logout.Prompt()
}

// CancelLogout dismisses the logout question.
func (c *Controller) CancelLogout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logout.Cancel()
}

// ConfirmLogout clears the session credential and leaves for the landing
// page. It never calls the bed service.
func (c *Controller) ConfirmLogout(ctx context.Context) error {
	c.mu.Lock()
	_, ok := c.logout.Take()
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: logout was not requested", workflow.ErrInvalidTransition)
	}
	err := c.clearCredentials(ctx)
	c.logger.Info("Nurse logged out")
	c.nav.GoTo(RouteLanding)
	return err
}

func (c *Controller) expireSession(ctx context.Context) {
	c.logger.Warn("Session expired; returning to login")
	_ = c.clearCredentials(ctx)
	c.sink.Notify(workflow.MsgSessionExpired, notify.KindError)
	c.nav.GoTo(RouteLogin)
}

func (c *Controller) clearCredentials(ctx context.Context) error {
	if c.creds == nil {
		return nil
	}
	if err := c.creds.Clear(ctx); err != nil {
		c.logger.Error("Session could not be cleared", zap.Error(err))
		return fmt.Errorf("dashboard: clear session: %w", err)
	}
	return nil
}
