// Package device holds what the device adapters have in common.
package device

import "errors"

var (
	// ErrConnect is returned when a device session cannot be established.
	// Pollers treat it as transient and retry after a cooldown.
	ErrConnect = errors.New("failed to connect to device")

	// ErrProtocol is returned when a device answers with something that cannot
	// be parsed or a command fails on an established session.
	ErrProtocol = errors.New("unexpected device response")
)
