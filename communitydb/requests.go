// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package communitydb

import (
	"context"

	"cloud.google.com/go/firestore"

	"github.com/StorXNetwork/gatehouse/community"
)

// ensures that gatePassRequests implements community.GatePassRequests.
var _ community.GatePassRequests = (*gatePassRequests)(nil)

type gatePassRequests struct {
	db *DB
}

func (r *gatePassRequests) request(communityID, requestID string) *firestore.DocumentRef {
	return r.db.collection(communityID, "gatePassRequests").Doc(requestID)
}

func requestFromSnapshot(snap *firestore.DocumentSnapshot) (community.GatePassRequest, error) {
	var request community.GatePassRequest
	if err := snap.DataTo(&request); err != nil {
		return community.GatePassRequest{}, err
	}
	request.ID = snap.Ref.ID
	request.CommunityID = communityOf(snap.Ref)
	return request, nil
}

// Get implements community.GatePassRequests.
func (r *gatePassRequests) Get(ctx context.Context, communityID, requestID string) (_ community.GatePassRequest, err error) {
	defer mon.Task()(&ctx)(&err)

	snap, err := r.request(communityID, requestID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return community.GatePassRequest{}, community.ErrNotFound.New("gate pass request %q not found", requestID)
		}
		return community.GatePassRequest{}, Error.Wrap(err)
	}

	request, err := requestFromSnapshot(snap)
	return request, Error.Wrap(err)
}

// Insert implements community.GatePassRequests.
func (r *gatePassRequests) Insert(ctx context.Context, request community.GatePassRequest) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = r.request(request.CommunityID, request.ID).Create(ctx, request)
	if isAlreadyExists(err) {
		return community.ErrInvalidArgument.New("gate pass request %q already exists", request.ID)
	}
	return Error.Wrap(err)
}

// Process implements community.GatePassRequests.
func (r *gatePassRequests) Process(ctx context.Context, communityID, requestID string, process community.ProcessRequest) (_ community.GatePassRequest, _ community.VisitorLogEntry, err error) {
	defer mon.Task()(&ctx)(&err)

	ref := r.request(communityID, requestID)
	var request community.GatePassRequest
	var entry community.VisitorLogEntry

	err = r.db.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return community.ErrNotFound.New("gate pass request %q not found", requestID)
			}
			return err
		}

		request, err = requestFromSnapshot(snap)
		if err != nil {
			return err
		}
		if request.Status != community.RequestPending {
			return community.ErrAlreadyProcessed.New("gate pass request %q is already %s", requestID, request.Status)
		}

		request.MarkProcessed(process)
		err = tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(request.Status)},
			{Path: "processedAt", Value: process.At},
			{Path: "processedBy", Value: process.OperatorID},
			{Path: "processedByName", Value: process.OperatorName},
		})
		if err != nil {
			return err
		}

		visitorRef := r.db.collection(communityID, "visitors").NewDoc()
		entry = community.RequestEntry(request, process)
		entry.ID = visitorRef.ID
		return tx.Create(visitorRef, entry)
	})
	if err != nil {
		if community.ErrAlreadyProcessed.Has(err) {
			return request, community.VisitorLogEntry{}, err
		}
		if community.IsClientError(err) {
			return community.GatePassRequest{}, community.VisitorLogEntry{}, err
		}
		return community.GatePassRequest{}, community.VisitorLogEntry{}, Error.Wrap(err)
	}
	return request, entry, nil
}
