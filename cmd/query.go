// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/grblhost/grblhost/pkg/driver"
	"github.com/grblhost/grblhost/pkg/grbl"
)

var queryTimeout time.Duration

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a single one-shot diagnostic request and exit",
}

var querySettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Dump the firmware's $$ settings table",
	RunE:  runQuerySettings,
}

var queryHashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Dump the firmware's $# work-offset table",
	RunE:  runQueryHash,
}

var queryParserStateCmd = &cobra.Command{
	Use:   "parserstate",
	Short: "Print the firmware's $G parser state",
	RunE:  runQueryParserState,
}

var queryPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send a status query and print the first status report",
	RunE:  runQueryPing,
}

func init() {
	queryCmd.PersistentFlags().DurationVar(&queryTimeout, "timeout", 5*time.Second, "How long to wait for a response")
	queryCmd.AddCommand(querySettingsCmd, queryHashCmd, queryParserStateCmd, queryPingCmd)
	rootCmd.AddCommand(queryCmd)
}

// waitForKind connects, arms one of the request funcs, and blocks until an
// event of kind arrives or the timeout elapses.
func waitForKind(kind grbl.EventKind, request func(*driver.Driver) error) (grbl.Event, error) {
	d, err := connectFromFlags()
	if err != nil {
		return grbl.Event{}, err
	}
	defer d.Disconnect()

	result := make(chan grbl.Event, 1)
	d.SetHandler(func(e grbl.Event) {
		if e.Kind == kind {
			select {
			case result <- e:
			default:
			}
		}
	})

	if err := request(d); err != nil {
		return grbl.Event{}, err
	}

	select {
	case e := <-result:
		return e, nil
	case <-time.After(queryTimeout):
		return grbl.Event{}, fmt.Errorf("query: timed out after %s waiting for %s", queryTimeout, kind)
	}
}

func runQuerySettings(cmd *cobra.Command, args []string) error {
	e, err := waitForKind(grbl.EventSettingsDownloaded, func(d *driver.Driver) error { return d.RequestSettings() })
	if err != nil {
		return err
	}
	fmt.Print(grbl.FormatSettings(e.Settings))
	return nil
}

func runQueryHash(cmd *cobra.Command, args []string) error {
	e, err := waitForKind(grbl.EventHashStateUpdate, func(d *driver.Driver) error { return d.RequestHashState() })
	if err != nil {
		return err
	}
	fmt.Print(grbl.FormatHashState(e.HashState))
	return nil
}

func runQueryParserState(cmd *cobra.Command, args []string) error {
	e, err := waitForKind(grbl.EventGcodeParserStateUpdate, func(d *driver.Driver) error { return d.RequestGCodeParserState() })
	if err != nil {
		return err
	}
	for _, line := range e.ParserState {
		fmt.Println(line)
	}
	return nil
}

func runQueryPing(cmd *cobra.Command, args []string) error {
	e, err := waitForKind(grbl.EventStatusUpdate, func(d *driver.Driver) error { d.PollStart(); return nil })
	if err != nil {
		return err
	}
	fmt.Println(grbl.FormatEvent(e))
	return nil
}
