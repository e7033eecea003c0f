package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/tagrelay/cli/reader"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewStatsRecords:
		content = m.renderStatsRecords()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsRecords() string {
	data, ok := m.data.(*reader.RecordStats)
	if !ok {
		return "Invalid data type for stats_records"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Record Statistics"))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Records", data.Records, highlightColor),
		m.renderStatBox("Results", data.Results, highlightColor),
		m.renderStatBox("Non-2xx", data.Non2xx, errorColor),
		m.renderStatBox("Skipped", data.Skipped, warningColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	b.WriteString(renderCounts("By queue", data.ByQueue, nil))
	b.WriteString(renderCounts("By event", data.ByEvent, nil))
	b.WriteString(renderCounts("By outcome", data.ByOutcome, OutcomeStyle))

	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int, color lipgloss.Color) string {
	style := StatBoxStyle.BorderForeground(color)
	content := fmt.Sprintf("%s\n%s",
		StatLabelStyle.Render(label),
		StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value)))
	return style.Render(content)
}

// renderCounts renders a labelled count table with keys in sorted order.
func renderCounts(title string, counts map[string]int, style func(string) lipgloss.Style) string {
	if len(counts) == 0 {
		return ""
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n")
	for _, name := range names {
		labelStyle := ValueStyle
		if style != nil {
			labelStyle = style(name)
		}
		b.WriteString(fmt.Sprintf("  %-32s %s\n", labelStyle.Render(name), ValueStyle.Render(fmt.Sprintf("%d", counts[name]))))
	}
	return b.String()
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
