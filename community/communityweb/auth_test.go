// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package communityweb_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/StorXNetwork/gatehouse/community"
	"github.com/StorXNetwork/gatehouse/community/communityweb"
)

func TestAuthService(t *testing.T) {
	ctx := context.Background()

	_, err := communityweb.NewAuthService(communityweb.AuthConfig{})
	require.Error(t, err)

	auth, err := communityweb.NewAuthService(communityweb.AuthConfig{
		SecretKey:  "secret",
		Expiration: time.Hour,
		Issuer:     "gatehouse",
	})
	require.NoError(t, err)

	session := community.Session{CommunityID: "c1", UserID: "u1", Name: "Guard", Role: "Security", DeviceID: "d1"}
	token, err := auth.GenerateToken(ctx, session)
	require.NoError(t, err)

	validated, err := auth.ValidateToken(ctx, token)
	require.NoError(t, err)
	require.Equal(t, session, validated)

	t.Run("incomplete session", func(t *testing.T) {
		_, err := auth.GenerateToken(ctx, community.Session{UserID: "u1"})
		require.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		auth.TestSetNow(func() time.Time { return time.Now().Add(2 * time.Hour) })
		defer auth.TestSetNow(time.Now)

		_, err := auth.ValidateToken(ctx, token)
		require.True(t, community.ErrUnauthorized.Has(err), err)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := communityweb.NewAuthService(communityweb.AuthConfig{SecretKey: "other", Issuer: "gatehouse"})
		require.NoError(t, err)

		_, err = other.ValidateToken(ctx, token)
		require.True(t, community.ErrUnauthorized.Has(err), err)
	})

	t.Run("wrong token type", func(t *testing.T) {
		claims := communityweb.SessionClaims{
			CommunityID: "c1",
			TokenType:   "refresh",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject: "u1",
				Issuer:  "gatehouse",
			},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = auth.ValidateToken(ctx, signed)
		require.True(t, community.ErrUnauthorized.Has(err), err)
	})

	t.Run("context", func(t *testing.T) {
		_, err := communityweb.GetSession(ctx)
		require.True(t, community.ErrUnauthorized.Has(err))

		got, err := communityweb.GetSession(communityweb.WithSession(ctx, session))
		require.NoError(t, err)
		require.Equal(t, session, got)
	})
}
