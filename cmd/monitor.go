// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/grblhost/grblhost/pkg/grbl"
)

var (
	monitorStatsInterval int
	monitorUseTUI        bool
	monitorShowAll       bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live error/alarm dashboard with periodic statistics",
	Long: `Connects and tracks errors, alarms, and status reports as they arrive.
Errors and alarms are printed immediately; a statistics summary is printed
on a fixed interval (or rendered continuously with --tui).`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 10, "Statistics summary interval, in seconds")
	monitorCmd.Flags().BoolVar(&monitorUseTUI, "tui", false, "Render statistics as a live terminal UI instead of periodic text dumps")
	monitorCmd.Flags().BoolVar(&monitorShowAll, "show-all", false, "Also print every status update, not just errors/alarms")
}

// monitorStats accumulates counters under a mutex, since events arrive on
// the dispatcher goroutine while a ticker (or the TUI's Update) reads them
// from a different goroutine.
type monitorStats struct {
	mu sync.Mutex

	statusUpdates  int
	errors         int
	alarms         int
	jobsCompleted  int
	bytesRxPercent int
	lastMode       grbl.Mode
	lastFeed       float64
	started        time.Time
}

func newMonitorStats() *monitorStats {
	return &monitorStats{started: time.Now()}
}

func (s *monitorStats) update(e grbl.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch e.Kind {
	case grbl.EventStatusUpdate:
		s.statusUpdates++
		s.lastMode = e.Mode
		s.lastFeed = e.Feed
	case grbl.EventRxBufferPercent:
		s.bytesRxPercent = e.Percent
	case grbl.EventError:
		s.errors++
	case grbl.EventAlarm:
		s.alarms++
	case grbl.EventJobCompleted:
		s.jobsCompleted++
	}
}

func (s *monitorStats) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	uptime := time.Since(s.started).Round(time.Second)
	return fmt.Sprintf(
		"uptime=%s status_updates=%d errors=%d alarms=%d jobs_completed=%d rx_fill=%d%% mode=%s feed=%.1f",
		uptime, s.statusUpdates, s.errors, s.alarms, s.jobsCompleted, s.bytesRxPercent, s.lastMode, s.lastFeed,
	)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	d, err := connectFromFlags()
	if err != nil {
		return err
	}
	defer d.Disconnect()

	stats := newMonitorStats()
	d.SetHandler(func(e grbl.Event) {
		stats.update(e)
		switch e.Kind {
		case grbl.EventError:
			fmt.Printf("[%s] \033[1;31mERROR\033[0m %s\n", time.Now().Format("15:04:05.000"), grbl.FormatEvent(e))
		case grbl.EventAlarm:
			fmt.Printf("[%s] \033[1;31mALARM\033[0m %s\n", time.Now().Format("15:04:05.000"), grbl.FormatEvent(e))
		case grbl.EventStatusUpdate:
			if monitorShowAll {
				fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), grbl.FormatEvent(e))
			}
		}
	})
	d.PollStart()
	defer d.PollStop()

	if monitorUseTUI {
		return runMonitorTUI(stats)
	}
	return runMonitorText(stats)
}

func runMonitorText(stats *monitorStats) error {
	fmt.Fprintln(os.Stderr, "press Ctrl+C to exit")
	ticker := time.NewTicker(time.Duration(monitorStatsInterval) * time.Second)
	defer ticker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	for {
		select {
		case <-ticker.C:
			fmt.Println(stats.String())
		case <-sig:
			return nil
		}
	}
}

type monitorTickMsg time.Time

type monitorModel struct {
	stats *monitorStats
}

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return monitorTickMsg(t) })
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case monitorTickMsg:
		return m, monitorTickCmd()
	}
	return m, nil
}

func (m monitorModel) View() string {
	return fmt.Sprintf("grblhost monitor\n\n%s\n\n(q to quit)\n", m.stats.String())
}

func runMonitorTUI(stats *monitorStats) error {
	p := tea.NewProgram(monitorModel{stats: stats})
	_, err := p.Run()
	return err
}
