// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/grblhost/grblhost/internal/config"
	"github.com/grblhost/grblhost/internal/logging"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Streaming flags
	capacity      int
	streamingMode string
	pollInterval  string

	// Config/logging flags
	configFile string
	logLevel   string
	logJSON    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "grblhost",
	Short: "A host-side driver for streaming G-Code to grbl",
	Long: `grblhost streams G-Code to a grbl CNC controller over a serial link or a
WebSocket bridge, tracks the firmware's asynchronous state, and exposes the
stream, shell, monitor, query, tui, and raw subcommands for driving it.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the GRBLHOST_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell
history.`,
	Version:           "0.1.0",
	PersistentPreRunE: setupLogger,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (serial only)")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().IntVar(&capacity, "capacity", 0, "Firmware receive buffer size in bytes")
	rootCmd.PersistentFlags().StringVar(&streamingMode, "mode", "", "Streaming discipline: incremental or character-counting")
	rootCmd.PersistentFlags().StringVar(&pollInterval, "poll-interval", "", "Status poll interval, e.g. 200ms")

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit structured JSON logs instead of console output")
}

func setupLogger(cmd *cobra.Command, args []string) error {
	cfg := config.LoggingConfig{Level: logLevel, JSON: logJSON}
	l, err := logging.New(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	logger = l
	return nil
}

// Execute runs the root command.
func Execute() error {
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()
	return rootCmd.Execute()
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
