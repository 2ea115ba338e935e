package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/wardboard/internal/notify"
	"github.com/kingrea/wardboard/internal/ward"
)

const cardWidth = 24

var (
	colorAccent   = lipgloss.Color("#5B8DEF")
	colorBrand    = lipgloss.Color("#FF6B6B")
	colorMuted    = lipgloss.Color("#888888")
	colorBorder   = lipgloss.Color("#444444")
	colorOccupied = lipgloss.Color("#E06C75")
	colorVacant   = lipgloss.Color("#98C379")
)

func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	var content string
	switch a.state {
	case stateBoard:
		content = a.renderBoard(width)
	case stateAssignForm:
		busy := ""
		if a.submitting {
			busy = a.spinner.View()
		}
		content = a.form.view(a.ctrl.Assignment().Title(), width, busy)
	case stateConfirmDeassign:
		content = a.renderConfirm(a.ctrl.Deassignment().Prompt(), "Removing patient...", width)
	case stateConfirmLogout:
		content = a.renderConfirm(a.ctrl.LogoutPrompt(), "", width)
	case stateLanding:
		content = "You have been logged out.\n\nPress q to quit."
	case stateLogin:
		content = "Your session has expired. Please log in again.\n\nRun wardboard -token <jwt> to start a new session. Press q to quit."
	}
	sections := []string{a.renderHeader(), content}
	if toasts := a.renderToasts(); toasts != "" {
		sections = append(sections, toasts)
	}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	sections = append(sections, a.renderFooter())
	return strings.Join(sections, "\n")
}

func (a *App) renderHeader() string {
	brand := lipgloss.NewStyle().Bold(true).Foreground(colorBrand).Render("⬡ WARDBOARD")
	occ := a.ctrl.Occupancy()
	summary := fmt.Sprintf("Occupied %d/%d", occ.Occupied, occ.Total)
	if shown := len(a.ctrl.Beds()); shown < occ.Total {
		summary += fmt.Sprintf(" · showing %d", shown)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, brand, "  ",
		lipgloss.NewStyle().Foreground(colorMuted).Render(summary))
}

func (a *App) columns() int {
	width := a.width
	if width <= 0 {
		width = 100
	}
	return max(1, (width-2)/(cardWidth+2))
}

func (a *App) renderBoard(width int) string {
	beds := a.ctrl.Beds()
	if len(beds) == 0 {
		switch {
		case a.ctrl.Loading():
			return fmt.Sprintf("%s Loading beds...", a.spinner.View())
		case a.ctrl.Err() != nil:
			return lipgloss.NewStyle().Foreground(colorOccupied).Render("⚠ Could not load beds.")
		default:
			return "No beds reported by the bed service."
		}
	}
	cols := a.columns()
	var rows []string
	for start := 0; start < len(beds); start += cols {
		end := min(start+cols, len(beds))
		var cards []string
		for i := start; i < end; i++ {
			cards = append(cards, renderBedCard(beds[i], i == a.selection))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	board := lipgloss.JoinVertical(lipgloss.Left, rows...)
	if err := a.ctrl.Err(); err != nil {
		board += "\n" + lipgloss.NewStyle().Foreground(colorOccupied).Render("⚠ Showing the last loaded beds.")
	}
	return lipgloss.NewStyle().Width(width).Render(board)
}

func renderBedCard(bed ward.Bed, selected bool) string {
	status := lipgloss.NewStyle().Foreground(colorVacant).Render("Available")
	patient := "No patient assigned"
	if bed.Occupied() {
		status = lipgloss.NewStyle().Foreground(colorOccupied).Render("Occupied")
		patient = "Patient ID: " + bed.Patient()
	}
	border := colorBorder
	if selected {
		border = colorAccent
	}
	title := lipgloss.NewStyle().Bold(true).Render("Bed " + bed.Label())
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Width(cardWidth).
		Render(strings.Join([]string{title, status, patient}, "\n"))
}

func (a *App) renderConfirm(prompt, busyText string, width int) string {
	hint := "y confirm · n cancel"
	if a.submitting && busyText != "" {
		hint = fmt.Sprintf("%s %s", a.spinner.View(), busyText)
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Render(prompt),
		"",
		lipgloss.NewStyle().Foreground(colorMuted).Render(hint),
	)
	return dialogStyle(width).Render(body)
}

func (a *App) renderToasts() string {
	var lines []string
	for _, t := range a.toasts.Active() {
		style := lipgloss.NewStyle().Foreground(colorVacant)
		mark := "✓"
		if t.Kind == notify.KindError {
			style = lipgloss.NewStyle().Foreground(colorOccupied)
			mark = "✗"
		}
		lines = append(lines, style.Render(mark+" "+t.Message))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorAccent).
		Render(fmt.Sprintf("LOG · %s (%d lines)", fileName, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

func (a *App) renderFooter() string {
	hint := ""
	if a.state == stateBoard {
		hint = "←↑↓→ move · a assign · d deassign · r refresh · L log out · q quit"
	}
	parts := []string{}
	if a.statusMsg != "" {
		parts = append(parts, a.statusMsg)
	}
	if hint != "" {
		parts = append(parts, hint)
	}
	return lipgloss.NewStyle().
		Foreground(colorMuted).
		MarginTop(1).
		Render(strings.Join(parts, "\n"))
}
