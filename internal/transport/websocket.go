// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"

	"github.com/grblhost/grblhost/pkg/grbl"
)

// ErrConnectionClosed is returned once the WebSocket peer has closed or a
// prior read/write has already failed.
var ErrConnectionClosed = errors.New("transport: websocket connection closed")

// WebSocketTransport bridges to a grbl controller exposed behind a
// WebSocket relay (an ESP3D-style network bridge), grounded on the
// teacher's WebSocketConnection/OpenWebSocketConnection/GetPassword, but
// carrying text lines instead of binary frames since grbl's wire grammar
// is ASCII.
type WebSocketTransport struct {
	conn *websocket.Conn
	url  string

	wmu sync.Mutex

	rmu    sync.Mutex
	pend   *bufio.Reader
	pr     *io.PipeReader
	pw     *io.PipeWriter
	closed bool

	closeOnce sync.Once
	closeErr  error
}

// OpenWebSocket dials wsURL, optionally with HTTP Basic auth, and returns a
// transport that reads/writes whole text lines over binary WebSocket
// messages (one message may carry one or more newline-terminated lines, or
// a partial line continued by the next message).
func OpenWebSocket(wsURL, username, password string, skipSSLVerify bool) (*WebSocketTransport, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported websocket scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipSSLVerify}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+creds)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}

	pr, pw := io.Pipe()
	t := &WebSocketTransport{
		conn: conn,
		url:  wsURL,
		pend: bufio.NewReaderSize(pr, 4096),
		pr:   pr,
		pw:   pw,
	}
	go t.pumpMessages()
	return t, nil
}

// pumpMessages copies each inbound WebSocket message into the pipe that
// feeds the line reader, so ReadLine sees one continuous byte stream
// regardless of message boundaries.
func (t *WebSocketTransport) pumpMessages() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.rmu.Lock()
			t.closed = true
			t.rmu.Unlock()
			t.pw.CloseWithError(err)
			return
		}
		if _, err := t.pw.Write(data); err != nil {
			return
		}
	}
}

func (t *WebSocketTransport) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := t.pend.ReadString('\n')
	if err != nil {
		if line != "" {
			return trimTerminator(line), nil
		}
		return "", ErrConnectionClosed
	}
	return trimTerminator(line), nil
}

func (t *WebSocketTransport) WriteLine(l grbl.Line) error {
	return wrapWriteErr("websocket line", t.write(l.WireBytes()))
}

func (t *WebSocketTransport) WriteRealtime(b byte) error {
	return wrapWriteErr("websocket realtime", t.write([]byte{b}))
}

func (t *WebSocketTransport) write(p []byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, p)
}

func (t *WebSocketTransport) Describe() string {
	return fmt.Sprintf("websocket:%s", t.url)
}

func (t *WebSocketTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
		t.pw.Close()
	})
	return t.closeErr
}

// PasswordFromEnvOrPrompt resolves a WebSocket bridge password from
// GRBLHOST_PASSWORD, falling back to an interactive, echo-suppressed
// terminal prompt.
func PasswordFromEnvOrPrompt() (string, error) {
	if pw := os.Getenv("GRBLHOST_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		reader := bufio.NewReader(os.Stdin)
		password, readErr := reader.ReadString('\n')
		if readErr != nil {
			return "", fmt.Errorf("read password: %w", readErr)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}
	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}
