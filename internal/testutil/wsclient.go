// Package testutil provides shared helpers for integration tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient is a simple websocket test client for integration testing.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials the given HTTP test server URL and returns a
// connected client.
//
// Precondition: serverURL must be an http:// URL with a websocket
// endpoint at path.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, serverURL, path string) *WSClient {
	t.Helper()
	start := time.Now()

	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v [%s]", wsURL, err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	return &WSClient{conn: conn, t: t}
}

// Send marshals the given payload and writes it as one text frame.
//
// Postcondition: The frame is written, or the test fails.
func (c *WSClient) Send(payload any) {
	c.t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		c.t.Fatalf("marshalling %v: %v", payload, err)
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Fatalf("sending %s: %v", data, err)
	}
}

// SendRaw writes the given bytes as one text frame without validation.
func (c *WSClient) SendRaw(data []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Fatalf("sending %s: %v", data, err)
	}
}

// Read returns the next frame decoded into a generic map.
//
// Postcondition: Returns the decoded frame, or fails on timeout.
func (c *WSClient) Read(timeout time.Duration) map[string]any {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		c.t.Fatalf("decoding frame %s: %v", data, err)
	}
	return m
}

// ReadMethod reads frames until one with the given method arrives.
// Frames for other methods are discarded.
//
// Precondition: method must be non-empty.
// Postcondition: Returns the matching frame, or fails on timeout.
func (c *WSClient) ReadMethod(method string, timeout time.Duration) map[string]any {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	var seen []string
	for time.Now().Before(deadline) {
		_ = c.conn.SetReadDeadline(deadline)
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("reading until method %q: saw %v, error: %v", method, seen, err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			c.t.Fatalf("decoding frame %s: %v", data, err)
		}
		got, _ := m["method"].(string)
		if got == method {
			return m
		}
		seen = append(seen, got)
	}
	c.t.Fatalf("no %q frame within %s, saw %v", method, timeout, seen)
	return nil
}

// ExpectClosed asserts that the server closes the connection.
func (c *WSClient) ExpectClosed(timeout time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close closes the underlying connection.
func (c *WSClient) Close() {
	c.conn.Close()
}

// Frame builds a message map for Send, merging extra fields over the
// method.
func Frame(method string, fields map[string]any) map[string]any {
	m := map[string]any{"method": method}
	for k, v := range fields {
		m[k] = v
	}
	return m
}

// FrameJSON renders a frame as a JSON string, for table-driven tests.
func FrameJSON(method string, fields map[string]any) string {
	data, err := json.Marshal(Frame(method, fields))
	if err != nil {
		panic(fmt.Sprintf("marshalling frame: %v", err))
	}
	return string(data)
}
