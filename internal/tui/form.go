package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/wardboard/internal/ward"
)

var fieldPlaceholders = map[ward.Field]string{
	ward.FieldFullName:         "Jane Doe",
	ward.FieldAge:              "34",
	ward.FieldBirthDate:        "YYYY-MM-DD",
	ward.FieldSex:              "Male / Female",
	ward.FieldCondition:        "Fever",
	ward.FieldAdmitDateTime:    "YYYY-MM-DDTHH:MM (optional)",
	ward.FieldContactDetails:   "555-1234",
	ward.FieldFrequencyMeasure: "Red / Green / Blue / Yellow / Brown",
}

// intakeForm is the text-input rendition of ward.IntakeForm.
type intakeForm struct {
	specs  []ward.FieldSpec
	inputs []textinput.Model
	focus  int
}

func newIntakeForm() *intakeForm {
	specs := ward.IntakeFields()
	f := &intakeForm{specs: specs, inputs: make([]textinput.Model, len(specs))}
	for i, spec := range specs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = fieldPlaceholders[spec.Field]
		ti.CharLimit = 120
		ti.Width = 36
		f.inputs[i] = ti
	}
	f.inputs[0].Focus()
	return f
}

func (f *intakeForm) setFocus(idx int) tea.Cmd {
	if idx < 0 {
		idx = len(f.inputs) - 1
	}
	if idx >= len(f.inputs) {
		idx = 0
	}
	f.inputs[f.focus].Blur()
	f.focus = idx
	return f.inputs[f.focus].Focus()
}

func (f *intakeForm) next() tea.Cmd { return f.setFocus(f.focus + 1) }

func (f *intakeForm) prev() tea.Cmd { return f.setFocus(f.focus - 1) }

func (f *intakeForm) onLast() bool { return f.focus == len(f.inputs)-1 }

func (f *intakeForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

// set fills the input for field, used by tests and resumed dialogs.
func (f *intakeForm) set(field ward.Field, value string) {
	for i, spec := range f.specs {
		if spec.Field == field {
			f.inputs[i].SetValue(value)
			return
		}
	}
}

func (f *intakeForm) values() map[ward.Field]string {
	out := make(map[ward.Field]string, len(f.specs))
	for i, spec := range f.specs {
		out[spec.Field] = f.inputs[i].Value()
	}
	return out
}

func (f *intakeForm) view(title string, width int, busy string) string {
	labelStyle := lipgloss.NewStyle().Width(20).Foreground(lipgloss.Color("#AAAAAA"))
	focusStyle := labelStyle.Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	rows := []string{lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).Render(title), ""}
	for i, spec := range f.specs {
		label := spec.Label
		if spec.Required {
			label += " *"
		}
		style := labelStyle
		if i == f.focus {
			style = focusStyle
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, style.Render(label), f.inputs[i].View()))
	}
	hint := "Tab next · Shift+Tab back · Ctrl+S submit · Esc cancel"
	if busy != "" {
		hint = fmt.Sprintf("%s Assigning bed...", busy)
	}
	rows = append(rows, "", lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render(hint))
	return dialogStyle(width).Render(strings.Join(rows, "\n"))
}

func dialogStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#5B8DEF")).
		Padding(1, 2).
		Width(max(40, min(width-4, 72)))
}
