// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package gatepass

import (
	qrcode "github.com/skip2/go-qrcode"
)

// EncodeQR renders the payload as a PNG QR code of size pixels.
func EncodeQR(payload Payload, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(payload.Encode(), qrcode.Medium, size)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return png, nil
}
