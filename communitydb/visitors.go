// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package communitydb

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/StorXNetwork/gatehouse/community"
)

// ensures that visitors implements community.Visitors.
var _ community.Visitors = (*visitors)(nil)

type visitors struct {
	db *DB
}

// ListByGatePass implements community.Visitors.
func (v *visitors) ListByGatePass(ctx context.Context, communityID, passID string) (_ []community.VisitorLogEntry, err error) {
	defer mon.Task()(&ctx)(&err)
	return v.list(ctx, communityID, v.db.collection(communityID, "visitors").Where("gatePassId", "==", passID))
}

// ListByRequest implements community.Visitors.
func (v *visitors) ListByRequest(ctx context.Context, communityID, requestID string) (_ []community.VisitorLogEntry, err error) {
	defer mon.Task()(&ctx)(&err)
	return v.list(ctx, communityID, v.db.collection(communityID, "visitors").Where("requestId", "==", requestID))
}

func (v *visitors) list(ctx context.Context, communityID string, query firestore.Query) ([]community.VisitorLogEntry, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var entries []community.VisitorLogEntry
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, Error.Wrap(err)
		}

		var entry community.VisitorLogEntry
		if err := snap.DataTo(&entry); err != nil {
			return nil, Error.Wrap(err)
		}
		entry.ID = snap.Ref.ID
		entry.CommunityID = communityID
		entries = append(entries, entry)
	}
	return entries, nil
}
