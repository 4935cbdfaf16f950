// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package communitydb

import (
	"context"

	"cloud.google.com/go/firestore"

	"github.com/StorXNetwork/gatehouse/community"
)

// ensures that notices implements community.Notices.
var _ community.Notices = (*notices)(nil)

type notices struct {
	db *DB
}

func (n *notices) notice(communityID, noticeID string) *firestore.DocumentRef {
	return n.db.collection(communityID, "notices").Doc(noticeID)
}

// Get implements community.Notices.
func (n *notices) Get(ctx context.Context, communityID, noticeID string) (_ community.Notice, err error) {
	defer mon.Task()(&ctx)(&err)

	snap, err := n.notice(communityID, noticeID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return community.Notice{}, community.ErrNotFound.New("notice %q not found", noticeID)
		}
		return community.Notice{}, Error.Wrap(err)
	}

	var notice community.Notice
	if err := snap.DataTo(&notice); err != nil {
		return community.Notice{}, Error.Wrap(err)
	}
	notice.ID = noticeID
	notice.CommunityID = communityID
	return notice, nil
}

// Insert implements community.Notices.
func (n *notices) Insert(ctx context.Context, notice community.Notice) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = n.notice(notice.CommunityID, notice.ID).Create(ctx, notice)
	if isAlreadyExists(err) {
		return community.ErrInvalidArgument.New("notice %q already exists", notice.ID)
	}
	return Error.Wrap(err)
}

// Delete implements community.Notices.
func (n *notices) Delete(ctx context.Context, communityID, noticeID string) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = n.notice(communityID, noticeID).Delete(ctx, firestore.Exists)
	if isNotFound(err) {
		return community.ErrNotFound.New("notice %q not found", noticeID)
	}
	return Error.Wrap(err)
}
