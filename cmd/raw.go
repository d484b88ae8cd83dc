// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/grblhost/grblhost/pkg/grbl"
)

var rawCmd = &cobra.Command{
	Use:   "raw",
	Short: "Print every classified event as it arrives",
	Long: `Connects and prints each dispatched event on its own line, formatted the
way grbl.FormatEvent renders it for a human reader. Useful for diagnosing
wire-protocol issues without the noise of a full TUI.`,
	RunE: runRaw,
}

func init() {
	rootCmd.AddCommand(rawCmd)
}

func runRaw(cmd *cobra.Command, args []string) error {
	d, err := connectFromFlags()
	if err != nil {
		return err
	}
	defer d.Disconnect()

	d.SetHandler(func(e grbl.Event) {
		fmt.Println(grbl.FormatEvent(e))
	})

	d.PollStart()
	defer d.PollStop()

	fmt.Fprintln(os.Stderr, "press Ctrl+C to exit")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	return nil
}
