// Package apc reads the status of an APC UPS through its network management
// card's telnet console.
package apc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ziutek/telnet"

	"github.com/andys/netcollector/device"
)

const (
	prompt         = "> "
	userPrompt     = "User Name : "
	passwordPrompt = "Password  : "
)

// Terminal is a logged in console session positioned on the UPS status screen
type Terminal interface {
	Status() (string, error)
	Close() error
}

// Console is a Terminal over a telnet connection
type Console struct {
	conn    *telnet.Conn
	timeout time.Duration
}

// Dial connects to the management card, logs in and opens the status screen
func Dial(ctx context.Context, address, username, password string, timeout time.Duration) (*Console, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	conn, err := telnet.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", device.ErrConnect, address, err)
	}
	conn.SetUnixWriteMode(true)

	c := &Console{conn: conn, timeout: timeout}
	if err := c.login(username, password); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %s: %w", device.ErrConnect, address, err)
	}
	return c, nil
}

// login answers the login prompts and walks the menu to the UPS screen.
// Some cards skip the user name and open on the password prompt.
func (c *Console) login(username, password string) error {
	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	first, err := c.conn.SkipUntilIndex(userPrompt, passwordPrompt)
	if err != nil {
		return fmt.Errorf("waiting for login prompt: %w", err)
	}
	if first == 0 {
		if err := c.send(username); err != nil {
			return err
		}
		if err := c.expect(passwordPrompt); err != nil {
			return err
		}
	}
	if err := c.send(password); err != nil {
		return err
	}

	// Main menu, then "Device Manager" and the UPS entry.
	for i := 0; i < 2; i++ {
		if err := c.expect(prompt); err != nil {
			return err
		}
		if err := c.send("1"); err != nil {
			return err
		}
	}
	return c.expect(prompt)
}

func (c *Console) expect(delim string) error {
	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	if err := c.conn.SkipUntil(delim); err != nil {
		return fmt.Errorf("waiting for %q: %w", delim, err)
	}
	return nil
}

func (c *Console) send(line string) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if _, err := c.conn.Write([]byte(line + "\r")); err != nil {
		return fmt.Errorf("sending %q: %w", line, err)
	}
	return nil
}

// Status redraws the status screen and returns the "Status of UPS" value. An
// empty string means the screen had no status line.
func (c *Console) Status() (string, error) {
	if err := c.send(""); err != nil {
		return "", fmt.Errorf("%w: %w", device.ErrProtocol, err)
	}
	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	screen, err := c.conn.ReadUntil(prompt)
	if err != nil {
		return "", fmt.Errorf("%w: reading status screen: %w", device.ErrProtocol, err)
	}
	status, _ := ParseStatus(string(screen))
	return status, nil
}

// Close drops the telnet session
func (c *Console) Close() error {
	return c.conn.Close()
}

// ParseStatus finds the "Status of UPS : ..." line in a console screen
func ParseStatus(screen string) (string, bool) {
	for _, line := range strings.Split(screen, "\n") {
		if !strings.Contains(line, "Status of UPS") {
			continue
		}
		_, value, found := strings.Cut(line, " : ")
		if !found {
			continue
		}
		return strings.TrimSpace(value), true
	}
	return "", false
}
