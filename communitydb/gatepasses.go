// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package communitydb

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/StorXNetwork/gatehouse/community"
)

// ensures that gatePasses implements community.GatePasses.
var _ community.GatePasses = (*gatePasses)(nil)

type gatePasses struct {
	db *DB
}

func (g *gatePasses) pass(communityID, passID string) *firestore.DocumentRef {
	return g.db.collection(communityID, "gatePasses").Doc(passID)
}

func passFromSnapshot(snap *firestore.DocumentSnapshot) (community.GatePass, error) {
	var pass community.GatePass
	if err := snap.DataTo(&pass); err != nil {
		return community.GatePass{}, err
	}
	pass.ID = snap.Ref.ID
	pass.CommunityID = communityOf(snap.Ref)
	return pass, nil
}

// Get implements community.GatePasses.
func (g *gatePasses) Get(ctx context.Context, communityID, passID string) (_ community.GatePass, err error) {
	defer mon.Task()(&ctx)(&err)

	snap, err := g.pass(communityID, passID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return community.GatePass{}, community.ErrNotFound.New("gate pass %q not found", passID)
		}
		return community.GatePass{}, Error.Wrap(err)
	}

	pass, err := passFromSnapshot(snap)
	return pass, Error.Wrap(err)
}

// Insert implements community.GatePasses.
func (g *gatePasses) Insert(ctx context.Context, pass community.GatePass) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = g.pass(pass.CommunityID, pass.ID).Create(ctx, pass)
	if isAlreadyExists(err) {
		return community.ErrInvalidArgument.New("gate pass %q already exists", pass.ID)
	}
	return Error.Wrap(err)
}

// CheckIn implements community.GatePasses.
func (g *gatePasses) CheckIn(ctx context.Context, communityID, passID string, checkIn community.CheckIn) (_ community.GatePass, _ community.VisitorLogEntry, err error) {
	defer mon.Task()(&ctx)(&err)

	ref := g.pass(communityID, passID)
	var pass community.GatePass
	var entry community.VisitorLogEntry

	err = g.db.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return community.ErrNotFound.New("gate pass %q not found", passID)
			}
			return err
		}

		pass, err = passFromSnapshot(snap)
		if err != nil {
			return err
		}
		if err := pass.Classify(checkIn.At); err != nil {
			return err
		}

		pass.MarkUsed(checkIn)
		err = tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(pass.Status)},
			{Path: "updatedAt", Value: checkIn.At},
			{Path: "usedAt", Value: checkIn.At},
			{Path: "checkedInBy", Value: pass.CheckedInBy},
			{Path: "checkedInByName", Value: pass.CheckedInByName},
		})
		if err != nil {
			return err
		}

		visitorRef := g.db.collection(communityID, "visitors").NewDoc()
		entry = community.CheckInEntry(pass, checkIn)
		entry.ID = visitorRef.ID
		return tx.Create(visitorRef, entry)
	})
	if err != nil {
		if community.IsClientError(err) {
			return community.GatePass{}, community.VisitorLogEntry{}, err
		}
		return community.GatePass{}, community.VisitorLogEntry{}, Error.Wrap(err)
	}
	return pass, entry, nil
}

// ListOverdue implements community.GatePasses.
func (g *gatePasses) ListOverdue(ctx context.Context, now time.Time, limit int) (_ []community.GatePass, err error) {
	defer mon.Task()(&ctx)(&err)

	query := g.db.client.CollectionGroup("gatePasses").
		Where("status", "==", string(community.GatePassIssued)).
		Where("validTo", "<", now).
		OrderBy("validTo", firestore.Asc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var overdue []community.GatePass
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, Error.Wrap(err)
		}

		pass, err := passFromSnapshot(snap)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		overdue = append(overdue, pass)
	}
	return overdue, nil
}

// MarkExpired implements community.GatePasses.
func (g *gatePasses) MarkExpired(ctx context.Context, communityID, passID string, now time.Time) (changed bool, err error) {
	defer mon.Task()(&ctx)(&err)

	ref := g.pass(communityID, passID)
	err = g.db.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		changed = false

		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		pass, err := passFromSnapshot(snap)
		if err != nil {
			return err
		}
		if pass.Status != community.GatePassIssued || !pass.ValidTo.Before(now) {
			return nil
		}

		changed = true
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(community.GatePassExpired)},
			{Path: "updatedAt", Value: now},
		})
	})
	if err != nil {
		return false, Error.Wrap(err)
	}
	return changed, nil
}
