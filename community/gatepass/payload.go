// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package gatepass

import (
	"encoding/json"
	"strings"

	"github.com/StorXNetwork/gatehouse/community"
)

// Payload is the content of a gate pass QR code.
type Payload struct {
	CommunityID string `json:"communityId"`
	PassID      string `json:"passId"`
}

// passKeys are the keys accepted for the pass reference, in order of preference.
var passKeys = []string{"passId", "gatePassId", "id"}

// ParsePayload decodes a scanned QR payload.
func ParsePayload(raw string) (Payload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Payload{}, community.ErrInvalidFormat.New("empty scan payload")
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Payload{}, community.ErrInvalidFormat.New("scan payload is not a JSON object")
	}

	communityID, ok := stringField(fields, "communityId")
	if !ok {
		return Payload{}, community.ErrInvalidFormat.New("scan payload has no communityId")
	}

	for _, key := range passKeys {
		if passID, ok := stringField(fields, key); ok {
			return Payload{CommunityID: communityID, PassID: passID}, nil
		}
	}
	return Payload{}, community.ErrInvalidFormat.New("scan payload has no pass reference")
}

func stringField(fields map[string]interface{}, key string) (string, bool) {
	value, ok := fields[key].(string)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// Encode returns the JSON form of the payload.
func (payload Payload) Encode() string {
	data, _ := json.Marshal(payload)
	return string(data)
}
