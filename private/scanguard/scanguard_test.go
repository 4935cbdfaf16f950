// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package scanguard_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"storj.io/common/testcontext"

	"github.com/StorXNetwork/gatehouse/private/scanguard"
)

type guard interface {
	Acquire(ctx context.Context, deviceID string) (bool, error)
	Release(ctx context.Context, deviceID string) error
}

func testGuard(ctx *testcontext.Context, t *testing.T, g guard) {
	acquired, err := g.Acquire(ctx, "c1/device-a")
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = g.Acquire(ctx, "c1/device-a")
	require.NoError(t, err)
	require.False(t, acquired)

	acquired, err = g.Acquire(ctx, "c1/device-b")
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, g.Release(ctx, "c1/device-a"))
	require.NoError(t, g.Release(ctx, "c1/device-a"))

	acquired, err = g.Acquire(ctx, "c1/device-a")
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestMemory(t *testing.T) {
	ctx := testcontext.New(t)

	g := scanguard.NewMemory(time.Minute)
	testGuard(ctx, t, g)

	now := time.Now()
	g.TestSetNow(func() time.Time { return now })
	acquired, err := g.Acquire(ctx, "c1/device-c")
	require.NoError(t, err)
	require.True(t, acquired)

	g.TestSetNow(func() time.Time { return now.Add(2 * time.Minute) })
	acquired, err = g.Acquire(ctx, "c1/device-c")
	require.NoError(t, err)
	require.True(t, acquired, "abandoned scan must unlock after ttl")
}

func TestRedis(t *testing.T) {
	ctx := testcontext.New(t)

	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	g, err := scanguard.OpenRedis(ctx, scanguard.Config{Address: server.Addr(), TTL: time.Minute})
	require.NoError(t, err)
	defer ctx.Check(g.Close)

	testGuard(ctx, t, g)

	acquired, err := g.Acquire(ctx, "c1/device-c")
	require.NoError(t, err)
	require.True(t, acquired)

	server.FastForward(2 * time.Minute)
	acquired, err = g.Acquire(ctx, "c1/device-c")
	require.NoError(t, err)
	require.True(t, acquired, "abandoned scan must unlock after ttl")
}

func TestConnectURL(t *testing.T) {
	client, err := scanguard.Connect("redis://localhost:6379/2")
	require.NoError(t, err)
	require.Equal(t, 2, client.Options().DB)
	require.NoError(t, client.Close())

	_, err = scanguard.Connect("redis://%zz")
	require.Error(t, err)
}
