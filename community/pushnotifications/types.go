// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package pushnotifications

import (
	"github.com/StorXNetwork/gatehouse/community"
)

// Notification is a push notification to be sent to a set of tokens.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// SendResult is the outcome of a single token in a multicast.
type SendResult struct {
	Token     string
	MessageID string
	// Code is the provider error code of a failed send.
	Code string
	Err  error
}

// Success reports whether the token received the notification.
func (result SendResult) Success() bool { return result.Err == nil }

// UserDispatch is a request to notify every device of a single account.
type UserDispatch struct {
	CommunityID string
	UserID      string
	Title       string
	Body        string
	ExtraData   map[string]interface{}
}

// RoleDispatch is a request to notify every device of the accounts holding a role.
type RoleDispatch struct {
	CommunityID string
	Role        community.RoleMatcher
	Title       string
	Body        string
	// Reserved keys are written into the data map before ExtraData and
	// are never overwritten by it.
	Reserved  map[string]string
	ExtraData map[string]interface{}
}

// UserResult is the outcome of a user dispatch.
type UserResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Sent        int    `json:"sent"`
	Failed      int    `json:"failed"`
	Cleaned     int    `json:"cleaned"`
	TotalTokens int    `json:"totalTokens"`
}

// AccountDetail describes a matched account that holds tokens.
type AccountDetail struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TokenCount int    `json:"tokenCount"`
}

// RoleResult is the outcome of a role dispatch.
type RoleResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Sent        int    `json:"sent"`
	Failed      int    `json:"failed"`
	Cleaned     int    `json:"cleaned"`
	TotalTokens int    `json:"totalTokens"`

	MatchedCount    int             `json:"securityCount"`
	WithTokensCount int             `json:"securityWithTokens"`
	PassID          string          `json:"passId,omitempty"`
	Details         []AccountDetail `json:"securityDetails,omitempty"`
}
