// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package communityweb

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/StorXNetwork/gatehouse/community"
)

// errorBody is the error envelope of every endpoint.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// classify returns the HTTP status and error code for err.
func classify(err error) (int, string) {
	switch {
	case community.ErrInvalidArgument.Has(err):
		return http.StatusBadRequest, "invalid-argument"
	case community.ErrNotFound.Has(err):
		return http.StatusNotFound, "not-found"
	case community.ErrInvalidFormat.Has(err):
		return http.StatusUnprocessableEntity, "invalid-format"
	case community.ErrExpired.Has(err):
		return http.StatusUnprocessableEntity, "expired"
	case community.ErrAlreadyUsed.Has(err):
		return http.StatusConflict, "already-used"
	case community.ErrAlreadyProcessed.Has(err):
		return http.StatusConflict, "already-processed"
	case community.ErrScanInProgress.Has(err):
		return http.StatusConflict, "scan-in-progress"
	case community.ErrUnauthorized.Has(err):
		return http.StatusUnauthorized, "unauthenticated"
	case community.ErrForbidden.Has(err):
		return http.StatusForbidden, "permission-denied"
	}
	return http.StatusInternalServerError, "internal"
}

// serveError writes err as JSON. Internal errors are logged and their
// message is replaced with a generic one.
func serveError(ctx context.Context, log *zap.Logger, w http.ResponseWriter, err error) {
	status, code := classify(err)

	var message string
	if status == http.StatusInternalServerError {
		log.Error("internal error", zap.Error(err))
		message = "internal error"
	} else {
		log.Debug("request failed", zap.String("code", code), zap.Error(err))
		message = unwrapMessage(err)
	}

	serveJSON(ctx, log, w, status, errorBody{Error: errorDetail{Status: code, Message: message}})
}

// unwrapMessage returns the innermost message of err, without class prefixes.
func unwrapMessage(err error) string {
	type unwrapper interface{ Unwrap() error }
	msg := err.Error()
	for {
		u, ok := err.(unwrapper)
		if !ok {
			break
		}
		inner := u.Unwrap()
		if inner == nil {
			break
		}
		err = inner
		msg = err.Error()
	}
	return msg
}

// serveJSON writes body as JSON with status.
func serveJSON(ctx context.Context, log *zap.Logger, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("failed to write json response", zap.Error(err))
	}
}
