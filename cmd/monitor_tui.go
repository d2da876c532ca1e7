// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/photon/pkg/codec"
	"github.com/Thermoquad/photon/pkg/transport"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

type monitorOptions struct {
	connInfo  string
	protocol  string
	command   string
	listening bool
	interval  time.Duration
	stats     *transport.Statistics
	send      func(string) bool
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	monitorOptions

	readings   table.Model
	input      textinput.Model
	lastResult *codec.Result
	lastUpdate time.Time

	eventLog      []logEntry
	maxLogEntries int

	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

type resultMsg struct {
	command string
	adhoc   bool
	res     *codec.Result
	err     error
	elapsed time.Duration
}

type connectionLostMsg struct {
	err error
}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(opts monitorOptions) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "command, e.g. QPI"
	ti.CharLimit = 64
	ti.Width = 30

	t := table.New(
		table.WithColumns(readingColumns(80)),
		table.WithHeight(10),
		table.WithFocused(true),
	)

	return monitorModel{
		monitorOptions: opts,
		readings:       t,
		input:          ti,
		eventLog:       make([]logEntry, 0),
		maxLogEntries:  100,
		width:          80,
		height:         24,
	}
}

// readingColumns splits width between the name, value and unit columns
func readingColumns(width int) []table.Column {
	nameWidth := width * 2 / 5
	unitWidth := 8
	valueWidth := width - nameWidth - unitWidth - 10
	if valueWidth < 10 {
		valueWidth = 10
	}
	return []table.Column{
		{Title: "Reading", Width: nameWidth},
		{Title: "Value", Width: valueWidth},
		{Title: "Unit", Width: unitWidth},
	}
}

// readingRows converts a result into table rows. Values that failed to
// decode are marked with a trailing "!".
func readingRows(res *codec.Result) []table.Row {
	rows := make([]table.Row, 0, len(res.Readings))
	for _, rd := range res.Readings {
		value := strings.ReplaceAll(rd.Value.String(), "\n", ", ")
		if rd.Err != nil {
			value += " !"
		}
		rows = append(rows, table.Row{rd.Name, value, rd.Unit})
	}
	return rows
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.readings.SetColumns(readingColumns(m.width - 6))
		m.readings.SetHeight(m.tableHeight())

	case monitorTickMsg:
		// redraw so rates and ages stay current
		return m, monitorTickCmd()

	case resultMsg:
		m.processResult(msg)

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry(fmt.Sprintf("Connection lost (%v) - reconnecting...", msg.err), true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected", false)

	default:
		// cursor blink
		if m.input.Focused() {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		if m.listening {
			return m, nil
		}
		if m.input.Focused() {
			m.input.Blur()
			m.readings.Focus()
			return m, nil
		}
		m.readings.Blur()
		return m, m.input.Focus()

	case "enter":
		if m.input.Focused() {
			m.submitInput()
			return m, nil
		}

	case "q":
		if !m.input.Focused() {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	if m.input.Focused() {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.readings, cmd = m.readings.Update(msg)
	}
	return m, cmd
}

func (m *monitorModel) submitInput() {
	text := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if text == "" {
		return
	}
	if m.send == nil || !m.send(text) {
		m.addLogEntry(fmt.Sprintf("%s: command queue full", text), true)
		return
	}
	m.addLogEntry(fmt.Sprintf("%s: sent", text), false)
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *monitorModel) processResult(msg resultMsg) {
	if msg.res == nil {
		m.addLogEntry(fmt.Sprintf("%s: %v", msg.command, msg.err), true)
		return
	}

	res := msg.res
	if !res.Valid {
		m.addLogEntry(fmt.Sprintf("%s: %s", msg.command, strings.Join(res.Errors, "; ")), true)
		return
	}

	if n := res.FieldErrors(); n > 0 {
		m.addLogEntry(fmt.Sprintf("%s: %d fields failed to decode", msg.command, n), true)
	}

	if msg.adhoc {
		m.addLogEntry(fmt.Sprintf("%s: %s (%d readings, %s)",
			msg.command, adhocSummary(res), len(res.Readings), msg.elapsed.Round(time.Millisecond)), false)
		if len(res.Readings) == 0 {
			return
		}
	}

	m.lastResult = res
	m.lastUpdate = time.Now()
	m.readings.SetRows(readingRows(res))
}

// adhocSummary renders the first readings of a result on one line
func adhocSummary(res *codec.Result) string {
	const maxShown = 3
	parts := make([]string, 0, maxShown)
	for i, rd := range res.Readings {
		if i == maxShown {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprintf("%s=%s", rd.Name, rd.Value))
	}
	if len(parts) == 0 {
		return "OK"
	}
	return strings.Join(parts, ", ")
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) tableHeight() int {
	h := m.height - 20
	if h < 5 {
		h = 5
	}
	return h
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	focusedBoxStyle = boxStyle.
			BorderForeground(lipgloss.Color("12"))
)

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Header
	helpText := "q=quit Tab=command"
	if m.listening {
		helpText = "q=quit"
	}
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(titleStyle.Render("PHOTON MONITOR"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s | %s", connStatus, m.protocol, helpText)))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatistics())
	s.WriteString("\n")
	s.WriteString(m.renderReadings())
	s.WriteString("\n")
	if !m.listening {
		s.WriteString(m.renderInput())
		s.WriteString("\n")
	}
	s.WriteString(m.renderEventLog())

	return s.String()
}

func (m monitorModel) renderStatistics() string {
	snap := m.stats.Snapshot()

	errorText := statsValueStyle.Render("0")
	if failed := snap.Failed(); failed > 0 {
		errorText = errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", failed, 100-snap.SuccessRate()))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s\n%s %d  %s %d  %s %d  %s %d",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.TotalExchanges)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", snap.SuccessRate())),
		statsLabelStyle.Render("Errors:"), errorText,
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.2f exch/s", snap.ExchangeRate)),
		headerStyle.Render("timeouts"), snap.NoResponse,
		headerStyle.Render("NAK"), snap.Rejected,
		headerStyle.Render("checksum"), snap.ChecksumErrors,
		headerStyle.Render("frame"), snap.FrameErrors,
	)
	return boxStyle.Width(m.width - 4).Render(content)
}

func (m monitorModel) renderReadings() string {
	var s strings.Builder

	title := fmt.Sprintf("%s every %s", m.command, m.interval)
	if m.listening {
		title = fmt.Sprintf("%s (listening)", m.command)
	}
	s.WriteString(statsLabelStyle.Render(title))
	if m.lastResult != nil {
		s.WriteString(headerStyle.Render(fmt.Sprintf("  %s, updated %s ago",
			m.lastResult.Command, time.Since(m.lastUpdate).Round(time.Second))))
	}
	s.WriteString("\n")

	if m.lastResult == nil {
		s.WriteString(warningStyle.Render("Waiting for first response..."))
	} else {
		s.WriteString(m.readings.View())
	}

	style := boxStyle
	if !m.input.Focused() {
		style = focusedBoxStyle
	}
	return style.Width(m.width - 4).Render(s.String())
}

func (m monitorModel) renderInput() string {
	style := boxStyle
	if m.input.Focused() {
		style = focusedBoxStyle
	}
	return style.Width(m.width - 4).Render(statsLabelStyle.Render("Send: ") + m.input.View())
}

func (m monitorModel) renderEventLog() string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 6
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}
