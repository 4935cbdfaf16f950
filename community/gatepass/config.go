// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package gatepass

import (
	"time"
)

// Config contains gate pass configuration.
type Config struct {
	PINDigits   int           `help:"number of digits of generated gate pass PINs" default:"6"`
	QRSize      int           `help:"size in pixels of rendered gate pass QR codes" default:"256"`
	MaxValidity time.Duration `help:"longest validity window a gate pass may be issued for" default:"168h"`

	Expiry ExpiryConfig
}

// ExpiryConfig contains configuration for the expiry chore.
type ExpiryConfig struct {
	Enabled   bool          `help:"persist the expired status of overdue gate passes" default:"true"`
	Interval  time.Duration `help:"how often overdue gate passes are swept" default:"5m" devDefault:"30s"`
	BatchSize int           `help:"maximum number of gate passes expired per sweep" default:"200"`
}
