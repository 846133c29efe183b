// Package routeros polls a MikroTik router over the RouterOS API.
package routeros

import (
	"context"
	"fmt"
	"time"

	"github.com/go-routeros/routeros/v3"

	"github.com/andys/netcollector/device"
)

// API is the part of a RouterOS session the extraction routines use. Every
// reply sentence is returned as its attribute map.
type API interface {
	Run(sentence ...string) ([]map[string]string, error)
	Close() error
}

// Client is an API backed by a live RouterOS connection
type Client struct {
	conn *routeros.Client
}

// Dial logs in to the router at address
func Dial(ctx context.Context, address, username, password string, timeout time.Duration) (*Client, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	conn, err := routeros.DialTimeout(address, username, password, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", device.ErrConnect, address, err)
	}
	return &Client{conn: conn}, nil
}

// Run executes one command and returns the !re sentences of the reply
func (c *Client) Run(sentence ...string) ([]map[string]string, error) {
	reply, err := c.conn.Run(sentence...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", device.ErrProtocol, sentence[0], err)
	}
	out := make([]map[string]string, 0, len(reply.Re))
	for _, re := range reply.Re {
		out = append(out, re.Map)
	}
	return out, nil
}

// Close ends the API session
func (c *Client) Close() error {
	return c.conn.Close()
}
