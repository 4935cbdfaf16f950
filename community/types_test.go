// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package community_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/StorXNetwork/gatehouse/community"
)

func TestResolveTokenField(t *testing.T) {
	field, tokens := community.ResolveTokenField([]string{"a"}, []string{"b"})
	require.Equal(t, community.TokenFieldPrimary, field)
	require.Equal(t, []string{"a"}, tokens)
	require.Equal(t, "tokens", field.Name())

	field, tokens = community.ResolveTokenField(nil, []string{"b", "c"})
	require.Equal(t, community.TokenFieldLegacy, field)
	require.Equal(t, []string{"b", "c"}, tokens)
	require.Equal(t, "fcmTokens", field.Name())

	field, tokens = community.ResolveTokenField([]string{}, nil)
	require.Equal(t, community.TokenFieldPrimary, field)
	require.Empty(t, tokens)
}

func TestGatePassClassify(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	for _, tt := range []struct {
		name    string
		status  community.GatePassStatus
		validTo time.Time
		class   func(error) bool
	}{
		{"issued and valid", community.GatePassIssued, future, nil},
		{"valid until exactly now", community.GatePassIssued, now, nil},
		{"used within window", community.GatePassUsed, future, community.ErrAlreadyUsed.Has},
		{"used and overdue", community.GatePassUsed, past, community.ErrAlreadyUsed.Has},
		{"issued and overdue", community.GatePassIssued, past, community.ErrExpired.Has},
		{"stored expired", community.GatePassExpired, future, community.ErrExpired.Has},
		{"unknown status overdue", community.GatePassStatus("weird"), past, community.ErrExpired.Has},
	} {
		t.Run(tt.name, func(t *testing.T) {
			pass := community.GatePass{ID: "p1", Status: tt.status, ValidFrom: past.Add(-time.Hour), ValidTo: tt.validTo}

			first := pass.Classify(now)
			second := pass.Classify(now)
			if tt.class == nil {
				require.NoError(t, first)
				require.NoError(t, second)
				return
			}
			require.True(t, tt.class(first), first)
			require.True(t, tt.class(second), second)
		})
	}
}

func TestRoleMatcher(t *testing.T) {
	insensitive := community.RoleMatcher{Role: "Security"}
	require.True(t, insensitive.Match("Security"))
	require.True(t, insensitive.Match("security"))
	require.True(t, insensitive.Match("SECURITY"))
	require.False(t, insensitive.Match("Resident"))
	// only spellings a store query can filter on match.
	require.False(t, insensitive.Match("sEcurity"))
	require.False(t, insensitive.Match("Security "))
	for _, variant := range insensitive.Variants() {
		require.True(t, insensitive.Match(variant), variant)
	}
	require.ElementsMatch(t, []string{"Security", "security", "SECURITY"}, insensitive.Variants())

	sensitive := community.RoleMatcher{Role: "Security", CaseSensitive: true}
	require.True(t, sensitive.Match("Security"))
	require.False(t, sensitive.Match("security"))
	require.Equal(t, []string{"Security"}, sensitive.Variants())
}

func TestInternal(t *testing.T) {
	require.NoError(t, community.Internal(nil))

	notFound := community.ErrNotFound.New("missing")
	require.Equal(t, notFound, community.Internal(notFound))

	invalid := community.ErrInvalidArgument.New("bad")
	require.Equal(t, invalid, community.Internal(invalid))

	wrapped := community.Internal(errors.New("boom"))
	require.True(t, community.ErrInternal.Has(wrapped))
	require.Contains(t, wrapped.Error(), "boom")
	require.Equal(t, wrapped, community.Internal(wrapped))
}

func TestRequire(t *testing.T) {
	roles := community.DefaultRoles()

	err := community.Require(community.Session{UserID: "u1"}, roles.SecurityMatcher())
	require.True(t, community.ErrUnauthorized.Has(err))

	session := community.Session{CommunityID: "c1", UserID: "u1", Role: "security"}
	require.NoError(t, community.Require(session))
	require.NoError(t, community.Require(session, roles.AdminMatcher(), roles.SecurityMatcher()))

	err = community.Require(session, roles.ResidentMatcher())
	require.True(t, community.ErrForbidden.Has(err))
}
