// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package community

import (
	"context"
	"time"
)

// DB contains access to the community document collections.
//
// architecture: Database
type DB interface {
	// Accounts is a getter for Accounts repository.
	Accounts() Accounts
	// GatePasses is a getter for GatePasses repository.
	GatePasses() GatePasses
	// GatePassRequests is a getter for GatePassRequests repository.
	GatePassRequests() GatePassRequests
	// Visitors is a getter for the visitor log.
	Visitors() Visitors
	// Notices is a getter for Notices repository.
	Notices() Notices

	// Close releases the underlying client.
	Close() error
}

// Accounts exposes the user documents of communities.
//
// architecture: Database
type Accounts interface {
	// Get returns the account with its tokens read from the resolved token field.
	Get(ctx context.Context, communityID, userID string) (Account, error)
	// ListByRole returns the community accounts whose role matches.
	ListByRole(ctx context.Context, communityID string, matcher RoleMatcher) ([]Account, error)
	// RemoveTokens removes tokens from the given field with a single array-remove.
	RemoveTokens(ctx context.Context, communityID, userID string, field TokenField, tokens []string) error
	// AddToken adds a token to the account's resolved token field with an array-union.
	AddToken(ctx context.Context, communityID, userID, token string) error
}

// CheckIn describes the check-in of a gate pass.
type CheckIn struct {
	OperatorID   string
	OperatorName string
	At           time.Time
}

// GatePasses exposes the gate pass documents of communities.
//
// architecture: Database
type GatePasses interface {
	// Get returns a gate pass.
	Get(ctx context.Context, communityID, passID string) (GatePass, error)
	// Insert stores a new gate pass.
	Insert(ctx context.Context, pass GatePass) error
	// CheckIn re-classifies the pass and, only if it is still usable at checkIn.At,
	// marks it used and appends the CheckInEntry to the visitor log, all in one
	// transaction.
	CheckIn(ctx context.Context, communityID, passID string, checkIn CheckIn) (GatePass, VisitorLogEntry, error)
	// ListOverdue returns passes still stored as issued whose ValidTo is before now.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]GatePass, error)
	// MarkExpired persists the expired status if the pass is still issued and overdue.
	MarkExpired(ctx context.Context, communityID, passID string, now time.Time) (bool, error)
}

// ProcessRequest describes a decision on a gate pass request.
type ProcessRequest struct {
	Status       RequestStatus
	OperatorID   string
	OperatorName string
	At           time.Time
}

// GatePassRequests exposes the gate pass request documents of communities.
//
// architecture: Database
type GatePassRequests interface {
	// Get returns a request.
	Get(ctx context.Context, communityID, requestID string) (GatePassRequest, error)
	// Insert stores a new request.
	Insert(ctx context.Context, request GatePassRequest) error
	// Process transitions a pending request and appends its RequestEntry to the
	// visitor log in one transaction. A request that is not pending returns ErrAlreadyProcessed
	// without any write.
	Process(ctx context.Context, communityID, requestID string, process ProcessRequest) (GatePassRequest, VisitorLogEntry, error)
}

// Visitors exposes the append-only visitor log.
//
// architecture: Database
type Visitors interface {
	// ListByGatePass returns the entries linked to a gate pass.
	ListByGatePass(ctx context.Context, communityID, passID string) ([]VisitorLogEntry, error)
	// ListByRequest returns the entries linked to a gate pass request.
	ListByRequest(ctx context.Context, communityID, requestID string) ([]VisitorLogEntry, error)
}

// Notices exposes the notice documents of communities.
//
// architecture: Database
type Notices interface {
	// Get returns a notice.
	Get(ctx context.Context, communityID, noticeID string) (Notice, error)
	// Insert stores a new notice.
	Insert(ctx context.Context, notice Notice) error
	// Delete removes a notice document.
	Delete(ctx context.Context, communityID, noticeID string) error
}
