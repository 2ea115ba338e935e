// internal/tui/app.go
//
// This is the terminal dashboard for wardboard.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: the dashboard state (selection, open dialog, toasts)
// 2. Update: reacts to keys and to finished bed service calls
// 3. View: renders the bed grid and dialogs
//
// Bed service calls never run inside Update. They are wrapped in tea.Cmds
// and report back with a *DoneMsg, so the UI stays responsive and the
// workflows' in-flight guards see concurrent presses.

package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/wardboard/internal/config"
	"github.com/kingrea/wardboard/internal/dashboard"
	"github.com/kingrea/wardboard/internal/logbook"
	"github.com/kingrea/wardboard/internal/notify"
	"github.com/kingrea/wardboard/internal/repository"
	"github.com/kingrea/wardboard/internal/session"
	"github.com/kingrea/wardboard/internal/ward"
	"github.com/kingrea/wardboard/internal/workflow"
)

// appState represents which "screen" we're on
type appState int

const (
	stateBoard            appState = iota // Bed grid
	stateAssignForm                       // Intake dialog for a vacant bed
	stateConfirmDeassign                  // Yes/no before discharging a patient
	stateConfirmLogout                    // Yes/no before clearing the session
	stateLanding                          // Logged out
	stateLogin                            // Session expired
)

const (
	toastInterval = time.Second
	logPanelLines = 6
)

type bedsLoadedMsg struct{ err error }

type assignDoneMsg struct{ err error }

type deassignDoneMsg struct{ err error }

type logoutDoneMsg struct{ err error }

type toastTickMsg time.Time

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithBedService replaces the resty repository built from config.
func WithBedService(beds repository.Beds) AppOption {
	return func(a *App) {
		if beds != nil {
			a.beds = beds
		}
	}
}

// WithSessionStore replaces the store selected by session.backend.
func WithSessionStore(store session.Store) AppOption {
	return func(a *App) {
		if store != nil {
			a.session = store
		}
	}
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state   appState
	config  *config.Config
	logbook *logbook.Logbook
	session session.Store
	beds    repository.Beds
	ctrl    *dashboard.Controller
	router  *Router
	toasts  *notify.Queue
	ctx     context.Context

	// ownsSession is set when NewApp built the store from config.
	ownsSession bool

	selection  int
	form       *intakeForm
	spinner    spinner.Model
	submitting bool
	statusMsg  string

	// Window size (we get this from bubbletea)
	width  int
	height int
}

// NewApp loads the ward directory under projectDir and wires the dashboard.
func NewApp(projectDir string, opts ...AppOption) (*App, error) {
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	lb, err := logbook.New(cfg.JourneyLogPath(), cfg.Project.Logging.Level)
	if err != nil {
		return nil, err
	}
	lb.Info("Dashboard opened · bed service %s", cfg.Project.API.BaseURL)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	app := &App{
		state:   stateBoard,
		config:  cfg,
		logbook: lb,
		router:  &Router{},
		toasts:  notify.NewQueue(notify.DefaultTTL, 3),
		ctx:     context.Background(),
		spinner: sp,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	if app.session == nil {
		if app.session, err = session.FromConfig(cfg); err != nil {
			_ = lb.Close()
			return nil, err
		}
		app.ownsSession = true
	}
	if app.beds == nil {
		app.beds = repository.New(cfg.Project.API.BaseURL, app.session,
			repository.WithLogger(lb.Logger()),
			repository.WithTimeout(cfg.Project.API.Timeout),
			repository.WithRetries(cfg.Project.API.Retries),
		)
	}
	ctrl, err := dashboard.New(app.beds,
		dashboard.WithDisplayCap(cfg.DisplayCap()),
		dashboard.WithNotifier(notify.Multi{app.toasts, notify.NewJournal(lb)}),
		dashboard.WithLogger(lb.Logger()),
		dashboard.WithNavigator(app.router),
		dashboard.WithCredentials(app.session),
	)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.ctrl = ctrl
	return app, nil
}

// Close releases the logbook and any session store NewApp opened itself.
func (a *App) Close() error {
	var errs []error
	if a.ownsSession {
		if closer, ok := a.session.(interface{ Close() error }); ok {
			errs = append(errs, closer.Close())
		}
	}
	errs = append(errs, a.logbook.Close())
	return errors.Join(errs...)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.mountBeds(), a.spinner.Tick, scheduleToastTick())
}

func scheduleToastTick() tea.Cmd {
	return tea.Tick(toastInterval, func(t time.Time) tea.Msg { return toastTickMsg(t) })
}

func (a *App) mountBeds() tea.Cmd {
	return func() tea.Msg {
		return bedsLoadedMsg{err: a.ctrl.Mount(a.ctx)}
	}
}

func (a *App) refreshBeds() tea.Cmd {
	return func() tea.Msg {
		return bedsLoadedMsg{err: a.ctrl.Refresh(a.ctx)}
	}
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case toastTickMsg:
		return a, scheduleToastTick()

	case bedsLoadedMsg:
		if msg.err != nil {
			a.statusMsg = "Could not load beds. Press r to retry."
		} else {
			a.statusMsg = ""
			a.clampSelection()
		}
		a.followRoute()
		return a, nil

	case assignDoneMsg:
		a.submitting = false
		if msg.err == nil {
			a.form = nil
			a.state = stateBoard
			a.clampSelection()
		}
		a.followRoute()
		return a, nil

	case deassignDoneMsg:
		a.submitting = false
		a.state = stateBoard
		a.clampSelection()
		a.followRoute()
		return a, nil

	case logoutDoneMsg:
		if msg.err != nil {
			a.statusMsg = msg.err.Error()
		}
		a.followRoute()
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.state {
		case stateBoard:
			return a.handleBoardKey(msg)
		case stateAssignForm:
			return a.handleFormKey(msg)
		case stateConfirmDeassign:
			return a.handleDeassignKey(msg)
		case stateConfirmLogout:
			return a.handleLogoutKey(msg)
		case stateLanding, stateLogin:
			switch msg.String() {
			case "q", "enter", "esc":
				return a, tea.Quit
			}
		}
	}
	return a, nil
}

func (a *App) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "r":
		a.statusMsg = "Refreshing beds..."
		return a, a.refreshBeds()
	case "left", "h":
		a.moveSelection(-1)
	case "right", "l":
		a.moveSelection(1)
	case "up", "k":
		a.moveSelection(-a.columns())
	case "down", "j":
		a.moveSelection(a.columns())
	case "a":
		return a.beginAssign()
	case "d":
		return a.beginDeassign()
	case "enter":
		if bed, ok := a.selectedBed(); ok && bed.Occupied() {
			return a.beginDeassign()
		}
		return a.beginAssign()
	case "L":
		if err := a.ctrl.RequestLogout(); err != nil {
			a.statusMsg = err.Error()
			return a, nil
		}
		a.state = stateConfirmLogout
	}
	return a, nil
}

func (a *App) beginAssign() (tea.Model, tea.Cmd) {
	bed, ok := a.selectedBed()
	if !ok {
		return a, nil
	}
	wf := a.ctrl.Assignment()
	if err := wf.Select(bed); err != nil {
		if errors.Is(err, workflow.ErrBedOccupied) {
			a.statusMsg = fmt.Sprintf("%s is occupied. Press d to deassign it.", bed.Label())
		} else {
			a.statusMsg = err.Error()
		}
		return a, nil
	}
	if err := wf.OpenForm(); err != nil {
		_ = wf.Cancel()
		a.statusMsg = err.Error()
		return a, nil
	}
	a.statusMsg = ""
	a.form = newIntakeForm()
	a.state = stateAssignForm
	return a, nil
}

func (a *App) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.submitting {
		return a, nil
	}
	switch msg.String() {
	case "esc":
		if err := a.ctrl.Assignment().Cancel(); err != nil {
			return a, nil
		}
		a.form = nil
		a.state = stateBoard
		return a, nil
	case "tab", "down":
		return a, a.form.next()
	case "shift+tab", "up":
		return a, a.form.prev()
	case "ctrl+s":
		return a, a.submitAssignment()
	case "enter":
		if a.form.onLast() {
			return a, a.submitAssignment()
		}
		return a, a.form.next()
	}
	return a, a.form.update(msg)
}

func (a *App) submitAssignment() tea.Cmd {
	wf := a.ctrl.Assignment()
	for field, value := range a.form.values() {
		if err := wf.SetField(field, value); err != nil {
			a.statusMsg = err.Error()
			return nil
		}
	}
	a.submitting = true
	return func() tea.Msg {
		return assignDoneMsg{err: wf.Submit(a.ctx)}
	}
}

func (a *App) beginDeassign() (tea.Model, tea.Cmd) {
	bed, ok := a.selectedBed()
	if !ok {
		return a, nil
	}
	if err := a.ctrl.Deassignment().Request(bed); err != nil {
		if errors.Is(err, workflow.ErrBedVacant) {
			a.statusMsg = fmt.Sprintf("%s has no patient to remove.", bed.Label())
		} else {
			a.statusMsg = err.Error()
		}
		return a, nil
	}
	a.statusMsg = ""
	a.state = stateConfirmDeassign
	return a, nil
}

func (a *App) handleDeassignKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.submitting {
		return a, nil
	}
	wf := a.ctrl.Deassignment()
	switch msg.String() {
	case "y", "enter":
		a.submitting = true
		return a, func() tea.Msg {
			return deassignDoneMsg{err: wf.Confirm(a.ctx)}
		}
	case "n", "esc":
		_ = wf.Cancel()
		a.state = stateBoard
	}
	return a, nil
}

func (a *App) handleLogoutKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		return a, func() tea.Msg {
			return logoutDoneMsg{err: a.ctrl.ConfirmLogout(a.ctx)}
		}
	case "n", "esc":
		a.ctrl.CancelLogout()
		a.state = stateBoard
	}
	return a, nil
}

// followRoute leaves the board once the dashboard has navigated away.
func (a *App) followRoute() {
	switch a.router.Route() {
	case dashboard.RouteLanding:
		a.state = stateLanding
	case dashboard.RouteLogin:
		_ = a.ctrl.Assignment().Cancel()
		_ = a.ctrl.Deassignment().Cancel()
		a.form = nil
		a.state = stateLogin
	}
}

func (a *App) selectedBed() (ward.Bed, bool) {
	beds := a.ctrl.Beds()
	if a.selection < 0 || a.selection >= len(beds) {
		return ward.Bed{}, false
	}
	return beds[a.selection], true
}

func (a *App) moveSelection(delta int) {
	n := len(a.ctrl.Beds())
	if n == 0 {
		a.selection = 0
		return
	}
	next := a.selection + delta
	if next < 0 || next >= n {
		return
	}
	a.selection = next
}

func (a *App) clampSelection() {
	n := len(a.ctrl.Beds())
	if a.selection >= n {
		a.selection = max(0, n-1)
	}
}
