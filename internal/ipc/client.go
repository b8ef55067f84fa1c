package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
)

// Client reads envelopes from a running panel.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", socketPath, err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Client{conn: conn, scanner: scanner}, nil
}

// Next blocks until the next envelope arrives.
func (c *Client) Next() (Envelope, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Envelope{}, err
		}
		return Envelope{}, net.ErrClosed
	}
	var env Envelope
	if err := json.Unmarshal(c.scanner.Bytes(), &env); err != nil {
		return Envelope{}, fmt.Errorf("invalid message: %w", err)
	}
	return env, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
