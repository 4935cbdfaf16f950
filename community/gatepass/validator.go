// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package gatepass

import (
	"context"
	"time"

	"github.com/StorXNetwork/gatehouse/community"
)

// Validator resolves scanned payloads into gate passes and classifies them.
// It never writes.
type Validator struct {
	passes community.GatePasses
	nowFn  func() time.Time
}

// NewValidator creates a new validator.
func NewValidator(passes community.GatePasses) *Validator {
	return &Validator{passes: passes, nowFn: time.Now}
}

// Resolve decodes raw, loads the referenced pass and classifies it. A payload
// of another community than communityID is rejected with ErrForbidden before
// anything is read. The pass is returned along with an ErrAlreadyUsed or
// ErrExpired classification so callers can show its details.
func (validator *Validator) Resolve(ctx context.Context, communityID, raw string) (_ community.GatePass, err error) {
	defer mon.Task()(&ctx)(&err)

	payload, err := ParsePayload(raw)
	if err != nil {
		return community.GatePass{}, err
	}
	if payload.CommunityID != communityID {
		return community.GatePass{}, community.ErrForbidden.New("gate pass belongs to another community")
	}

	pass, err := validator.passes.Get(ctx, payload.CommunityID, payload.PassID)
	if err != nil {
		return community.GatePass{}, community.Internal(err)
	}
	pass.ID, pass.CommunityID = payload.PassID, payload.CommunityID

	return pass, pass.Classify(validator.nowFn())
}

// TestSetNow sets the clock used for classification.
func (validator *Validator) TestSetNow(nowFn func() time.Time) {
	validator.nowFn = nowFn
}
