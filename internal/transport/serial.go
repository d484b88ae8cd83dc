// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package transport

import (
	"context"
	"fmt"
	"sync"

	"go.bug.st/serial"

	"github.com/grblhost/grblhost/pkg/grbl"
)

// SerialTransport drives a grbl controller over a real serial port,
// grounded on the teacher's SerialConnection/OpenSerialConnection.
type SerialTransport struct {
	port serial.Port
	name string
	baud int

	wm *writeMutex
	lr *lineReader

	closeOnce sync.Once
	closeErr  error
}

// OpenSerial opens portName at baudRate with grbl's standard 8-N-1 framing.
func OpenSerial(portName string, baudRate int) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}

	return &SerialTransport{
		port: port,
		name: portName,
		baud: baudRate,
		wm:   &writeMutex{w: port},
		lr:   newLineReader(port),
	}, nil
}

func (s *SerialTransport) ReadLine(ctx context.Context) (string, error) {
	return s.lr.readLine(ctx)
}

func (s *SerialTransport) WriteLine(l grbl.Line) error {
	return wrapWriteErr("serial line", s.wm.writeLine(l))
}

func (s *SerialTransport) WriteRealtime(b byte) error {
	return wrapWriteErr("serial realtime", s.wm.writeRealtime(b))
}

func (s *SerialTransport) Describe() string {
	return fmt.Sprintf("serial:%s@%d", s.name, s.baud)
}

func (s *SerialTransport) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.port.Close()
	})
	return s.closeErr
}
