// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package scanguard keeps at most one unfinished gate pass scan per operator
// device.
package scanguard

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeebo/errs"
)

// Error is the error class for scan guard failures.
var Error = errs.Class("scanguard")

const keyPrefix = "gatehouse:scan:"

// Config contains scan guard configuration.
type Config struct {
	Address string        `help:"redis address or redis:// URL of the scan guard, empty keeps the guard in process memory" default:""`
	TTL     time.Duration `help:"how long an abandoned scan blocks its device" default:"2m"`
}

// Connect creates a redis client for address, which is either host:port or
// a redis:// URL.
func Connect(address string) (*redis.Client, error) {
	if strings.HasPrefix(address, "redis://") || strings.HasPrefix(address, "rediss://") {
		opt, err := redis.ParseURL(address)
		if err != nil {
			return nil, Error.New("parse redis url: %v", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: address}), nil
}

// Redis is a scan guard shared by every gatehouse process.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// OpenRedis connects to redis and verifies the connection.
func OpenRedis(ctx context.Context, config Config) (*Redis, error) {
	client, err := Connect(config.Address)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errs.Combine(Error.Wrap(err), client.Close())
	}
	return NewRedis(client, config.TTL), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Acquire marks deviceID as scanning unless it already is.
func (guard *Redis) Acquire(ctx context.Context, deviceID string) (bool, error) {
	acquired, err := guard.client.SetNX(ctx, keyPrefix+deviceID, time.Now().Unix(), guard.ttl).Result()
	if err != nil {
		return false, Error.Wrap(err)
	}
	return acquired, nil
}

// Release clears the scan of deviceID.
func (guard *Redis) Release(ctx context.Context, deviceID string) error {
	return Error.Wrap(guard.client.Del(ctx, keyPrefix+deviceID).Err())
}

// Close closes the redis client.
func (guard *Redis) Close() error {
	return Error.Wrap(guard.client.Close())
}

// Memory is a scan guard local to one process.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	nowFn   func() time.Time
	devices map[string]time.Time
}

// NewMemory creates an in-process scan guard.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, nowFn: time.Now, devices: map[string]time.Time{}}
}

// TestSetNow sets the clock used for expiring scans.
func (guard *Memory) TestSetNow(nowFn func() time.Time) {
	guard.mu.Lock()
	defer guard.mu.Unlock()
	guard.nowFn = nowFn
}

// Acquire marks deviceID as scanning unless it already is.
func (guard *Memory) Acquire(ctx context.Context, deviceID string) (bool, error) {
	guard.mu.Lock()
	defer guard.mu.Unlock()

	now := guard.nowFn()
	if expires, ok := guard.devices[deviceID]; ok && (guard.ttl <= 0 || now.Before(expires)) {
		return false, nil
	}
	guard.devices[deviceID] = now.Add(guard.ttl)
	return true, nil
}

// Release clears the scan of deviceID.
func (guard *Memory) Release(ctx context.Context, deviceID string) error {
	guard.mu.Lock()
	defer guard.mu.Unlock()
	delete(guard.devices, deviceID)
	return nil
}

// Close implements io.Closer.
func (guard *Memory) Close() error { return nil }
