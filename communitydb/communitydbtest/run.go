// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package communitydbtest runs tests against every community.DB implementation.
package communitydbtest

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/require"

	"storj.io/common/testcontext"
	"storj.io/common/uuid"

	"github.com/StorXNetwork/gatehouse/community"
	"github.com/StorXNetwork/gatehouse/communitydb"
	"github.com/StorXNetwork/gatehouse/communitydb/memdb"
)

// User is an account document written directly by tests.
type User struct {
	Name      string
	Role      string
	Tokens    []string
	FCMTokens []string
}

// Env gives a test a fresh community and a way to seed account documents,
// which the application only reads.
type Env struct {
	CommunityID string
	seed        func(ctx context.Context, communityID, userID string, user User) error
}

// SeedUser writes an account document into the test community.
func (env *Env) SeedUser(ctx context.Context, t *testing.T, userID string, user User) {
	require.NoError(t, env.seed(ctx, env.CommunityID, userID, user))
}

// Run runs test against the in-memory database and, when
// FIRESTORE_EMULATOR_HOST is set, against the Firestore emulator.
func Run(t *testing.T, test func(ctx *testcontext.Context, t *testing.T, db community.DB, env *Env)) {
	t.Run("memdb", func(t *testing.T) {
		ctx := testcontext.New(t)

		db := memdb.New()
		defer ctx.Check(db.Close)

		test(ctx, t, db, &Env{
			CommunityID: newCommunityID(t),
			seed: func(ctx context.Context, communityID, userID string, user User) error {
				db.PutUser(communityID, userID, memdb.UserDoc(user))
				return nil
			},
		})
	})

	t.Run("firestore", func(t *testing.T) {
		if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
			t.Skip("FIRESTORE_EMULATOR_HOST is not set")
		}
		ctx := testcontext.New(t)

		project := os.Getenv("FIRESTORE_PROJECT_ID")
		if project == "" {
			project = "gatehouse-test"
		}
		client, err := firestore.NewClient(ctx, project)
		require.NoError(t, err)

		db := communitydb.New(client)
		defer ctx.Check(db.Close)

		test(ctx, t, db, &Env{
			CommunityID: newCommunityID(t),
			seed: func(ctx context.Context, communityID, userID string, user User) error {
				doc := map[string]interface{}{
					"name": user.Name,
					"role": user.Role,
				}
				if user.Tokens != nil {
					doc["tokens"] = user.Tokens
				}
				if user.FCMTokens != nil {
					doc["fcmTokens"] = user.FCMTokens
				}
				_, err := client.Collection("communities").Doc(communityID).Collection("users").Doc(userID).Set(ctx, doc)
				return err
			},
		})
	})
}

func newCommunityID(t *testing.T) string {
	id, err := uuid.New()
	require.NoError(t, err)
	return "test-" + id.String()
}
