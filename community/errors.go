// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package community

import (
	"github.com/zeebo/errs"
)

var (
	// ErrInvalidArgument is returned when caller input is missing or malformed.
	ErrInvalidArgument = errs.Class("invalid-argument")
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errs.Class("not-found")
	// ErrInternal wraps every unexpected failure.
	ErrInternal = errs.Class("internal")

	// ErrInvalidFormat is returned when a scanned payload cannot be decoded.
	ErrInvalidFormat = errs.Class("invalid-format")
	// ErrAlreadyUsed is returned when a gate pass was already checked in.
	ErrAlreadyUsed = errs.Class("already-used")
	// ErrExpired is returned when a gate pass is past its validity window.
	ErrExpired = errs.Class("expired")
	// ErrAlreadyProcessed is returned when a gate pass request was already approved or rejected.
	ErrAlreadyProcessed = errs.Class("already-processed")

	// ErrUnauthorized is returned when a request carries no valid session.
	ErrUnauthorized = errs.Class("unauthorized")
	// ErrForbidden is returned when the session role may not perform the operation.
	ErrForbidden = errs.Class("forbidden")
	// ErrScanInProgress is returned when a device already holds an unfinished scan.
	ErrScanInProgress = errs.Class("scan-in-progress")
)

// IsClientError reports whether err belongs to a class that is surfaced to
// callers unchanged.
func IsClientError(err error) bool {
	return ErrInvalidArgument.Has(err) ||
		ErrNotFound.Has(err) ||
		ErrInvalidFormat.Has(err) ||
		ErrAlreadyUsed.Has(err) ||
		ErrExpired.Has(err) ||
		ErrAlreadyProcessed.Has(err) ||
		ErrUnauthorized.Has(err) ||
		ErrForbidden.Has(err) ||
		ErrScanInProgress.Has(err)
}

// Internal passes client errors through and wraps everything else as ErrInternal.
func Internal(err error) error {
	if err == nil || IsClientError(err) || ErrInternal.Has(err) {
		return err
	}
	return ErrInternal.Wrap(err)
}
