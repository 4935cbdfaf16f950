// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package pushnotifications

import (
	"context"
	"sync"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/StorXNetwork/gatehouse/community"
)

// ErrReconcile is the error class for token cleanup failures.
var ErrReconcile = errs.Class("token reconcile")

// OwnedToken is a device token together with the account field it was read from.
type OwnedToken struct {
	Token   string
	OwnerID string
	Field   community.TokenField
}

// Reconciler removes permanently invalid tokens from their owning accounts.
type Reconciler struct {
	log      *zap.Logger
	accounts community.Accounts
}

// NewReconciler creates a new token reconciler.
func NewReconciler(log *zap.Logger, accounts community.Accounts) *Reconciler {
	return &Reconciler{log: log, accounts: accounts}
}

// Invalid returns every owner of the tokens whose results carry a permanent
// error code. A token owned by several accounts appears once in results and
// once per owner in the returned list.
func (reconciler *Reconciler) Invalid(owned []OwnedToken, results []SendResult) []OwnedToken {
	owners := make(map[string][]OwnedToken, len(owned))
	for _, token := range owned {
		owners[token.Token] = append(owners[token.Token], token)
	}

	var invalid []OwnedToken
	for _, result := range results {
		if result.Success() {
			continue
		}
		if IsPermanent(result.Code) {
			invalid = append(invalid, owners[result.Token]...)
			delete(owners, result.Token)
			continue
		}
		reconciler.log.Debug("keeping token after transient failure",
			zap.String("token", tokenPreview(result.Token)),
			zap.String("code", result.Code),
			zap.Error(result.Err))
	}
	return invalid
}

// Cleanup removes invalid tokens with one array-remove per owning account,
// running the owners concurrently. It returns the combined error of every
// failed owner; removals of the other owners still happen.
func (reconciler *Reconciler) Cleanup(ctx context.Context, communityID string, invalid []OwnedToken) (err error) {
	defer mon.Task()(&ctx)(&err)

	type ownerKey struct {
		id    string
		field community.TokenField
	}

	grouped := make(map[ownerKey][]string)
	var order []ownerKey
	for _, token := range invalid {
		key := ownerKey{id: token.OwnerID, field: token.Field}
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], token.Token)
	}

	var mu sync.Mutex
	var group errs.Group

	var eg errgroup.Group
	for _, key := range order {
		key, tokens := key, grouped[key]
		eg.Go(func() error {
			err := reconciler.accounts.RemoveTokens(ctx, communityID, key.id, key.field, tokens)
			if err != nil {
				reconciler.log.Error("failed to remove invalid tokens",
					zap.String("community_id", communityID),
					zap.String("user_id", key.id),
					zap.Stringer("field", key.field),
					zap.Int("token_count", len(tokens)),
					zap.Error(err))

				mu.Lock()
				group.Add(ErrReconcile.New("user %q: %v", key.id, err))
				mu.Unlock()
				return nil
			}

			reconciler.log.Info("removed invalid tokens",
				zap.String("community_id", communityID),
				zap.String("user_id", key.id),
				zap.Stringer("field", key.field),
				zap.Strings("token_previews", tokenPreviews(tokens)))
			return nil
		})
	}
	_ = eg.Wait()

	return group.Err()
}
