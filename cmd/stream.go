// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package cmd

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/spf13/cobra"

	"github.com/grblhost/grblhost/pkg/driver"
	"github.com/grblhost/grblhost/pkg/grbl"
)

var streamCmd = &cobra.Command{
	Use:   "stream <file>",
	Short: "Stream a G-Code file and show live progress",
	Long: `Streams the named file's lines through the flow controller and renders a
progress bar driven by on_progress_percent events. If the transport drops
mid-job, stream reconnects with exponential backoff and resumes from the
first line that was never acknowledged, rather than restarting the job.`,
	Args: cobra.ExactArgs(1),
	RunE: runStream,
}

func init() {
	rootCmd.AddCommand(streamCmd)
}

type progressMsg int
type lineResultMsg struct {
	isError bool
	code    string
	index   int
}
type jobCompletedMsg struct{}
type alarmMsg struct{ code string }
type disconnectedMsg struct{}
type reconnectedMsg struct{}
type reconnectFailedMsg struct{ err error }
type logLineMsg struct{ text string }

// streamManager owns the Driver across reconnects and tracks, purely from
// acknowledgement counts, which lines have not yet been confirmed sent.
type streamManager struct {
	mu          sync.Mutex
	d           *driver.Driver
	p           *tea.Program
	lines       []string
	acked       atomic.Int64
	done        chan struct{}
	reconnectMu sync.Mutex
	reconnecting bool
}

func newStreamManager(lines []string) *streamManager {
	return &streamManager{lines: lines, done: make(chan struct{})}
}

func (sm *streamManager) getDriver() *driver.Driver {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.d
}

func (sm *streamManager) setDriver(d *driver.Driver) {
	sm.mu.Lock()
	sm.d = d
	sm.mu.Unlock()
}

func (sm *streamManager) remaining() []string {
	acked := int(sm.acked.Load())
	if acked >= len(sm.lines) {
		return nil
	}
	return sm.lines[acked:]
}

// start opens the first connection and begins streaming; the caller must
// have already set sm.p.
func (sm *streamManager) start() error {
	d, err := connectFromFlags()
	if err != nil {
		return err
	}
	sm.setDriver(d)
	d.SetHandler(sm.handleEvent)
	d.PollStart()
	return d.StreamLines(sm.remaining())
}

func (sm *streamManager) handleEvent(e grbl.Event) {
	switch e.Kind {
	case grbl.EventProgressPercent:
		sm.p.Send(progressMsg(e.Percent))
	case grbl.EventProcessedCommand:
		sm.acked.Add(1)
		sm.p.Send(lineResultMsg{index: e.Index})
	case grbl.EventError:
		sm.acked.Add(1)
		sm.p.Send(lineResultMsg{isError: true, code: e.Code, index: e.Index})
	case grbl.EventJobCompleted:
		sm.p.Send(jobCompletedMsg{})
	case grbl.EventAlarm:
		sm.p.Send(alarmMsg{code: e.Code})
	case grbl.EventDisconnected:
		sm.p.Send(disconnectedMsg{})
	case grbl.EventLog:
		sm.p.Send(logLineMsg{text: e.Text})
	}
}

// reconnect retries connectFromFlags with exponential backoff, grounded on
// the teacher's connectionManager.reconnect, then resumes streaming from
// the first unacknowledged line.
func (sm *streamManager) reconnect() {
	sm.reconnectMu.Lock()
	if sm.reconnecting {
		sm.reconnectMu.Unlock()
		return
	}
	sm.reconnecting = true
	sm.reconnectMu.Unlock()
	defer func() {
		sm.reconnectMu.Lock()
		sm.reconnecting = false
		sm.reconnectMu.Unlock()
	}()

	if old := sm.getDriver(); old != nil {
		old.Disconnect()
	}

	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-sm.done:
			return
		case <-time.After(backoff):
		}

		d, err := connectFromFlags()
		if err != nil {
			sm.p.Send(reconnectFailedMsg{err: err})
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		sm.setDriver(d)
		d.SetHandler(sm.handleEvent)
		d.PollStart()
		if err := d.StreamLines(sm.remaining()); err != nil {
			sm.p.Send(reconnectFailedMsg{err: err})
			d.Disconnect()
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		sm.p.Send(reconnectedMsg{})
		return
	}
}

func (sm *streamManager) shutdown() {
	close(sm.done)
	if d := sm.getDriver(); d != nil {
		d.Disconnect()
	}
}

type streamModel struct {
	sm       *streamManager
	bar      progress.Model
	percent  int
	total    int
	status   string
	errs     []lineResultMsg
	quitting bool
}

func newStreamModel(sm *streamManager) streamModel {
	return streamModel{
		sm:     sm,
		bar:    progress.New(progress.WithDefaultGradient()),
		total:  len(sm.lines),
		status: "streaming",
	}
}

func (m streamModel) Init() tea.Cmd {
	return nil
}

func (m streamModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.sm.shutdown()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 4

	case progressMsg:
		m.percent = int(msg)
		cmd := m.bar.SetPercent(float64(m.percent) / 100)
		return m, cmd

	case progress.FrameMsg:
		newModel, cmd := m.bar.Update(msg)
		m.bar = newModel.(progress.Model)
		return m, cmd

	case lineResultMsg:
		if msg.isError {
			m.errs = append(m.errs, msg)
			m.status = fmt.Sprintf("error:%s at line %d", msg.code, msg.index)
		}

	case alarmMsg:
		m.status = fmt.Sprintf("ALARM:%s", msg.code)

	case disconnectedMsg:
		m.status = "connection lost, reconnecting..."
		go m.sm.reconnect()

	case reconnectFailedMsg:
		m.status = fmt.Sprintf("reconnect failed: %v, retrying...", msg.err)

	case reconnectedMsg:
		m.status = "reconnected, resuming"

	case jobCompletedMsg:
		m.status = "job completed"
		m.quitting = true
		m.sm.shutdown()
		return m, tea.Quit

	case logLineMsg:
		m.status = msg.text
	}

	return m, nil
}

func (m streamModel) View() string {
	if m.quitting {
		return fmt.Sprintf("%s\n", m.status)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "streaming %d lines\n\n", m.total)
	b.WriteString(m.bar.View())
	fmt.Fprintf(&b, "\n\n%s\n", m.status)
	if len(m.errs) > 0 {
		fmt.Fprintf(&b, "\n%d line(s) reported errors\n", len(m.errs))
	}
	b.WriteString("\n(q to quit)\n")
	return b.String()
}

func runStream(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")

	sm := newStreamManager(lines)
	m := newStreamModel(sm)
	p := tea.NewProgram(m)
	sm.p = p

	if err := sm.start(); err != nil {
		return fmt.Errorf("stream: %w", err)
	}

	if _, err := p.Run(); err != nil {
		sm.shutdown()
		return fmt.Errorf("stream: tui: %w", err)
	}
	return nil
}
