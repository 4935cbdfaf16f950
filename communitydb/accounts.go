// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package communitydb

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/StorXNetwork/gatehouse/community"
)

// ensures that accounts implements community.Accounts.
var _ community.Accounts = (*accounts)(nil)

// userDoc is the stored shape of communities/{c}/users/{u}.
type userDoc struct {
	Name      string   `firestore:"name"`
	Role      string   `firestore:"role"`
	Tokens    []string `firestore:"tokens"`
	FCMTokens []string `firestore:"fcmTokens"`
}

func (doc *userDoc) account(communityID, userID string) community.Account {
	field, tokens := community.ResolveTokenField(doc.Tokens, doc.FCMTokens)
	return community.Account{
		ID:          userID,
		CommunityID: communityID,
		Name:        doc.Name,
		Role:        doc.Role,
		Tokens:      tokens,
		TokenField:  field,
	}
}

type accounts struct {
	db *DB
}

func (a *accounts) user(communityID, userID string) *firestore.DocumentRef {
	return a.db.collection(communityID, "users").Doc(userID)
}

// Get implements community.Accounts.
func (a *accounts) Get(ctx context.Context, communityID, userID string) (_ community.Account, err error) {
	defer mon.Task()(&ctx)(&err)

	snap, err := a.user(communityID, userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return community.Account{}, community.ErrNotFound.New("user %q not found in community %q", userID, communityID)
		}
		return community.Account{}, Error.Wrap(err)
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return community.Account{}, Error.Wrap(err)
	}
	return doc.account(communityID, userID), nil
}

// ListByRole implements community.Accounts.
func (a *accounts) ListByRole(ctx context.Context, communityID string, matcher community.RoleMatcher) (_ []community.Account, err error) {
	defer mon.Task()(&ctx)(&err)

	iter := a.db.collection(communityID, "users").
		Where("role", "in", strings2interfaces(matcher.Variants())).
		Documents(ctx)
	defer iter.Stop()

	var list []community.Account
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, Error.Wrap(err)
		}

		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, Error.Wrap(err)
		}
		if matcher.Match(doc.Role) {
			list = append(list, doc.account(communityID, snap.Ref.ID))
		}
	}
	return list, nil
}

// RemoveTokens implements community.Accounts.
func (a *accounts) RemoveTokens(ctx context.Context, communityID, userID string, field community.TokenField, tokens []string) (err error) {
	defer mon.Task()(&ctx)(&err)

	if len(tokens) == 0 {
		return nil
	}
	_, err = a.user(communityID, userID).Update(ctx, []firestore.Update{
		{Path: field.Name(), Value: firestore.ArrayRemove(strings2interfaces(tokens)...)},
	})
	if isNotFound(err) {
		return community.ErrNotFound.New("user %q not found in community %q", userID, communityID)
	}
	return Error.Wrap(err)
}

// AddToken implements community.Accounts.
func (a *accounts) AddToken(ctx context.Context, communityID, userID, token string) (err error) {
	defer mon.Task()(&ctx)(&err)

	ref := a.user(communityID, userID)
	err = a.db.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return community.ErrNotFound.New("user %q not found in community %q", userID, communityID)
			}
			return err
		}

		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		field, _ := community.ResolveTokenField(doc.Tokens, doc.FCMTokens)

		return tx.Update(ref, []firestore.Update{
			{Path: field.Name(), Value: firestore.ArrayUnion(token)},
		})
	})
	if community.ErrNotFound.Has(err) {
		return err
	}
	return Error.Wrap(err)
}
