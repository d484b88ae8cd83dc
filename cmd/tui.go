// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/grblhost/grblhost/pkg/driver"
	"github.com/grblhost/grblhost/pkg/grbl"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Full-screen live view of firmware state and job progress",
	Long: `A full-screen dashboard showing machine mode, position, feed, RX buffer
fill, job progress, and a rolling log of errors/alarms/boot events. Press
p to pause, r to resume, x to soft-reset, q to quit.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

type tuiLogEntry struct {
	at   time.Time
	text string
	bad  bool
}

type guiModel struct {
	d *driver.Driver

	mode    grbl.Mode
	mpos    grbl.Position
	wpos    grbl.Position
	feed    float64
	rxFill  int
	percent int

	connLost bool
	log      []tuiLogEntry
	maxLog   int

	width, height int
	quitting      bool
}

func newGUIModel(d *driver.Driver) guiModel {
	return guiModel{d: d, maxLog: 12, width: 80, height: 24}
}

type guiEventMsg grbl.Event

func (m guiModel) Init() tea.Cmd {
	return nil
}

func (m guiModel) appendLog(text string, bad bool) guiModel {
	m.log = append(m.log, tuiLogEntry{at: time.Now(), text: text, bad: bad})
	if len(m.log) > m.maxLog {
		m.log = m.log[len(m.log)-m.maxLog:]
	}
	return m
}

func (m guiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "p":
			m.d.Pause()
		case "r":
			m.d.Resume()
		case "x":
			m.d.SoftReset()
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case guiEventMsg:
		e := grbl.Event(msg)
		switch e.Kind {
		case grbl.EventStatusUpdate:
			m.mode, m.mpos, m.wpos, m.feed = e.Mode, e.MPos, e.WPos, e.Feed
		case grbl.EventRxBufferPercent:
			m.rxFill = e.Percent
		case grbl.EventProgressPercent:
			m.percent = e.Percent
		case grbl.EventDisconnected:
			m.connLost = true
			m = m.appendLog("disconnected", true)
		case grbl.EventBoot:
			m.connLost = false
			m = m.appendLog(fmt.Sprintf("boot: %s", e.Version), false)
		case grbl.EventAlarm:
			m = m.appendLog(fmt.Sprintf("ALARM:%s", e.Code), true)
		case grbl.EventError:
			m = m.appendLog(fmt.Sprintf("error:%s (line %d)", e.Code, e.Index), true)
		case grbl.EventJobCompleted:
			m = m.appendLog("job completed", false)
		}
	}
	return m, nil
}

var (
	tuiTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Background(lipgloss.Color("235")).Padding(0, 1)
	tuiLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	tuiValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	tuiErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	tuiWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	tuiBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

func (m guiModel) View() string {
	if m.quitting {
		return "disconnecting...\n"
	}

	var s strings.Builder
	s.WriteString(tuiTitleStyle.Render("GRBLHOST"))
	if m.connLost {
		s.WriteString(" " + tuiWarnStyle.Render("RECONNECTING..."))
	}
	s.WriteString(" " + "q=quit p=pause r=resume x=reset\n\n")

	fmt.Fprintf(&s, "%s %s   %s %s   %s %s\n",
		tuiLabelStyle.Render("mode:"), tuiValueStyle.Render(m.mode.String()),
		tuiLabelStyle.Render("feed:"), tuiValueStyle.Render(fmt.Sprintf("%.1f", m.feed)),
		tuiLabelStyle.Render("rx fill:"), tuiValueStyle.Render(fmt.Sprintf("%d%%", m.rxFill)))

	fmt.Fprintf(&s, "%s %s\n%s %s\n",
		tuiLabelStyle.Render("mpos:"), tuiValueStyle.Render(m.mpos.String()),
		tuiLabelStyle.Render("wpos:"), tuiValueStyle.Render(m.wpos.String()))

	fmt.Fprintf(&s, "%s %d%%\n\n", tuiLabelStyle.Render("job progress:"), m.percent)

	var logBody strings.Builder
	for _, entry := range m.log {
		line := fmt.Sprintf("[%s] %s", entry.at.Format("15:04:05"), entry.text)
		if entry.bad {
			line = tuiErrStyle.Render(line)
		}
		logBody.WriteString(line + "\n")
	}
	s.WriteString(tuiBoxStyle.Render(logBody.String()))
	s.WriteString("\n")
	return s.String()
}

func runTUI(cmd *cobra.Command, args []string) error {
	d, err := connectFromFlags()
	if err != nil {
		return err
	}
	defer d.Disconnect()

	m := newGUIModel(d)
	p := tea.NewProgram(m, tea.WithAltScreen())

	d.SetHandler(func(e grbl.Event) { p.Send(guiEventMsg(e)) })
	d.PollStart()
	defer d.PollStop()

	_, err = p.Run()
	return err
}
