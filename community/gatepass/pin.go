// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package gatepass

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// GeneratePIN returns a random numeric PIN with the given number of digits.
func GeneratePIN(digits int) (string, error) {
	if digits <= 0 {
		digits = 6
	}

	var pin strings.Builder
	pin.Grow(digits)
	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", Error.Wrap(err)
		}
		pin.WriteByte(byte('0' + n.Int64()))
	}
	return pin.String(), nil
}
