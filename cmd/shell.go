// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/grblhost/grblhost/pkg/driver"
	"github.com/grblhost/grblhost/pkg/grbl"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive line-oriented console",
	Long: `Reads one command per line from stdin and sends it on the
PriorityQueue, tagging each with a CommandID and printing the sent/ack
correlation once the firmware responds. Lines that aren't one of the
built-in verbs (pause, resume, halt, unstash, reset, settings, hash,
parserstate, feed, quit) are sent verbatim as raw G-Code.`,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

// shellSession correlates each sent command with its CommandID purely from
// ordering: exactly one command is in flight at a time, so the next
// on_line_sent names its InflightLog Index and the following
// on_processed_command/on_error with that Index is its result. The
// correlation lives entirely here; pkg/driver never sees a CommandID.
type shellSession struct {
	lineSent chan grbl.Event
	result   chan grbl.Event
}

func newShellSession() *shellSession {
	return &shellSession{
		lineSent: make(chan grbl.Event, 8),
		result:   make(chan grbl.Event, 8),
	}
}

func (s *shellSession) handle(e grbl.Event) {
	switch e.Kind {
	case grbl.EventLineSent:
		s.lineSent <- e
	case grbl.EventProcessedCommand, grbl.EventError:
		s.result <- e
	case grbl.EventAlarm, grbl.EventBoot:
		fmt.Fprintf(os.Stderr, "\n%s\n", grbl.FormatEvent(e))
	case grbl.EventLog:
		fmt.Fprintf(os.Stderr, "\nlog: %s\n", e.Text)
	}
}

// sendAndWait sends line on the PriorityQueue and blocks until the matching
// on_line_sent/on_processed_command (or on_error) pair is observed.
func (s *shellSession) sendAndWait(d *driver.Driver, line string) error {
	id := uuid.New()
	if err := d.SendImmediately(line); err != nil {
		return err
	}

	var sent grbl.Event
	select {
	case sent = <-s.lineSent:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("[%s] timed out waiting for send", id)
	}

	select {
	case res := <-s.result:
		if res.Kind == grbl.EventError {
			fmt.Printf("[%s] idx=%d error:%s\n", id, sent.Index, res.Code)
		} else {
			fmt.Printf("[%s] idx=%d ok\n", id, sent.Index)
		}
	case <-time.After(10 * time.Second):
		return fmt.Errorf("[%s] idx=%d timed out waiting for acknowledgement", id, sent.Index)
	}
	return nil
}

// dispatchBuiltin handles the shell's meta-verbs. It reports handled=true
// if tokens named a built-in (whether or not it succeeded) so the caller
// knows not to fall through to raw G-Code, and quit=true on "quit"/"exit".
func dispatchBuiltin(d *driver.Driver, tokens []string) (handled bool, quit bool) {
	verb := strings.ToLower(tokens[0])
	switch verb {
	case "quit", "exit":
		return true, true

	case "pause":
		reportErr(d.Pause())
	case "resume":
		reportErr(d.Resume())
	case "halt":
		reportErr(d.Halt())
	case "unstash":
		reportErr(d.Unstash())
	case "reset":
		reportErr(d.SoftReset())
	case "settings":
		reportErr(d.RequestSettings())
	case "hash":
		reportErr(d.RequestHashState())
	case "parserstate":
		reportErr(d.RequestGCodeParserState())
	case "feed":
		if len(tokens) < 2 {
			fmt.Fprintln(os.Stderr, "usage: feed <value>|off")
			return true, false
		}
		if tokens[1] == "off" {
			d.SetFeedOverride(false)
			return true, false
		}
		v, err := strconv.ParseFloat(tokens[1], 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "feed: %v\n", err)
			return true, false
		}
		d.SetFeedOverride(true)
		d.RequestFeed(v)
	default:
		return false, false
	}
	return true, false
}

func reportErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

func runShell(cmd *cobra.Command, args []string) error {
	d, err := connectFromFlags()
	if err != nil {
		return err
	}
	defer d.Disconnect()

	sess := newShellSession()
	d.SetHandler(sess.handle)
	d.PollStart()
	defer d.PollStop()

	fmt.Fprintln(os.Stderr, "grblhost shell: type a verb (pause/resume/halt/unstash/reset/settings/hash/parserstate/feed <n>/quit) or raw G-Code. Ctrl+D to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		tokens, err := shlex.Split(line)
		if err != nil || len(tokens) == 0 {
			fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
			continue
		}

		handled, quit := dispatchBuiltin(d, tokens)
		if quit {
			break
		}
		if handled {
			continue
		}

		if err := sess.sendAndWait(d, line); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return scanner.Err()
}
