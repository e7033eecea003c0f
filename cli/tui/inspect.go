package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/tagrelay/cli/reader"
)

// listWidth is the width of the record list column.
const listWidth = 48

// InspectModel browses published records: a list on the left and the
// selected record's JSON on the right.
type InspectModel struct {
	viewType string
	data     *reader.InspectRecordsResponse
	cursor   int
	detail   viewport.Model
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	resp, _ := data.(*reader.InspectRecordsResponse)
	m := InspectModel{
		viewType: viewType,
		data:     resp,
		detail:   viewport.New(60, 20),
	}
	m.detail.SetContent(m.detailContent())
	return m
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.detail.Width = max(msg.Width-listWidth-8, 20)
		m.detail.Height = max(msg.Height-8, 5)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.detail.SetContent(m.detailContent())
				m.detail.GotoTop()
			}
			return m, nil
		case key.Matches(msg, keys.Down):
			if m.data != nil && m.cursor < len(m.data.Records)-1 {
				m.cursor++
				m.detail.SetContent(m.detailContent())
				m.detail.GotoTop()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}
	if m.data == nil {
		return fmt.Sprintf("Invalid data type for %s", m.viewType)
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Records: %s", m.data.Source)))
	b.WriteString("\n")

	if len(m.data.Records) == 0 {
		b.WriteString(ValueStyle.Render("(no records)"))
	} else {
		list := lipgloss.NewStyle().Width(listWidth).Render(m.renderList())
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, list, BoxStyle.Render(m.detail.View())))
	}

	if m.data.Skipped > 0 {
		b.WriteString("\n")
		b.WriteString(WarningStyle.Render(fmt.Sprintf("%d undecodable entries skipped", m.data.Skipped)))
	}

	help := HelpStyle.Render("↑/k ↓/j select • pgup/pgdn scroll • q quit")
	return b.String() + "\n" + help
}

func (m InspectModel) renderList() string {
	var b strings.Builder
	for i, r := range m.data.Records {
		id := r.TransmissionID
		if len(id) > 8 {
			id = id[:8]
		}
		line := fmt.Sprintf("%s %-16s %s", id, truncate(r.Event, 16), StatusStyle(r.Status).Render(fmt.Sprintf("%d", r.Status)))
		if i == m.cursor {
			line = SelectedStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m InspectModel) detailContent() string {
	if m.data == nil || len(m.data.Records) == 0 {
		return ""
	}
	r := m.data.Records[m.cursor]

	var b strings.Builder
	rows := [][]string{
		{"Transmission", r.TransmissionID},
		{"Queue", r.Queue},
		{"Event", r.Event},
		{"Timestamp", r.Timestamp},
	}
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render(row[0]+":"), ValueStyle.Render(row[1])))
	}
	if res := m.resultFor(r.TransmissionID); res != nil {
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Outcome:"), OutcomeStyle(res.Outcome).Render(res.Outcome)))
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Protocol:"), ValueStyle.Render(res.Protocol)))
	}
	b.WriteString("\n")

	body, err := json.MarshalIndent(r.Record, "", "  ")
	if err != nil {
		body = []byte(err.Error())
	}
	b.Write(body)
	return b.String()
}

func (m InspectModel) resultFor(id string) *reader.ResultRow {
	for i := range m.data.Results {
		if m.data.Results[i].TransmissionID == id {
			return &m.data.Results[i]
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
	Up   key.Binding
	Down key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "previous record"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "next record"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
