// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/grblhost/grblhost/internal/config"
	"github.com/grblhost/grblhost/internal/transport"
	"github.com/grblhost/grblhost/pkg/driver"
	"github.com/grblhost/grblhost/pkg/grbl"
)

// resolveOptions layers flags over an optional config file, matching the
// teacher's viper.AutomaticEnv precedence (env over file, flags override
// both since a flag that was actually set always wins here).
func resolveOptions() (driver.Options, error) {
	cfg := config.Defaults()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return driver.Options{}, err
		}
		cfg = loaded
	}

	opts := driver.Options{
		Capacity:      cfg.Streaming.Capacity,
		StreamingMode: modeFromString(cfg.Streaming.Mode),
		PollInterval:  cfg.Streaming.PollInterval,
		AllowEEPROM:   cfg.Streaming.AllowEEPROM,
	}

	if portName == "" {
		portName = cfg.Device.Port
	}
	if baudRate == 0 {
		baudRate = cfg.Device.Baud
	}
	if wsURL == "" {
		wsURL = cfg.Bridge.URL
	}
	if wsUsername == "" {
		wsUsername = cfg.Bridge.Username
	}
	if !wsNoSSLVerify {
		wsNoSSLVerify = cfg.Bridge.SkipSSLVerify
	}

	if capacity != 0 {
		opts.Capacity = capacity
	}
	if streamingMode != "" {
		opts.StreamingMode = modeFromString(streamingMode)
	}
	if pollInterval != "" {
		if d, err := time.ParseDuration(pollInterval); err == nil {
			opts.PollInterval = d
		}
	}

	return opts, nil
}

func modeFromString(s string) grbl.StreamingMode {
	if s == "character-counting" || s == "character_counting" {
		return grbl.StreamingCharacterCounting
	}
	return grbl.StreamingIncremental
}

// connectFromFlags opens a Driver over whichever endpoint the persistent
// flags/config describe, mirroring the teacher's OpenConnection dispatcher:
// WebSocket if --url is set, else serial if --port is set, else an error.
func connectFromFlags() (*driver.Driver, error) {
	opts, err := resolveOptions()
	if err != nil {
		return nil, err
	}

	d := driver.New(logger)

	switch {
	case wsURL != "":
		password := ""
		if wsUsername != "" {
			password, err = transport.PasswordFromEnvOrPrompt()
			if err != nil {
				return nil, err
			}
		}
		if err := d.ConnectWebSocket(wsURL, wsUsername, password, wsNoSSLVerify, opts); err != nil {
			return nil, fmt.Errorf("connect websocket %s: %w", wsURL, err)
		}
		fmt.Fprintf(os.Stderr, "connected: websocket %s\n", wsURL)

	case portName != "":
		if err := d.Connect(portName, baudRate, opts); err != nil {
			return nil, fmt.Errorf("connect serial %s: %w", portName, err)
		}
		fmt.Fprintf(os.Stderr, "connected: serial %s @ %d baud\n", portName, baudRate)

	default:
		return nil, fmt.Errorf("either --port or --url must be specified (or set one in --config)")
	}

	return d, nil
}
