// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package gatepass

import (
	"context"
	"time"

	"github.com/go-stack/stack"
	"go.uber.org/zap"

	"storj.io/common/sync2"

	"github.com/StorXNetwork/gatehouse/community"
)

// ExpiryChore persists the expired status of issued passes past their
// validTo. Classification does not depend on it.
//
// architecture: Chore
type ExpiryChore struct {
	log    *zap.Logger
	passes community.GatePasses
	config ExpiryConfig
	nowFn  func() time.Time

	Loop *sync2.Cycle
}

// NewExpiryChore creates a new expiry chore.
func NewExpiryChore(log *zap.Logger, passes community.GatePasses, config ExpiryConfig) *ExpiryChore {
	return &ExpiryChore{
		log:    log,
		passes: passes,
		config: config,
		nowFn:  time.Now,
		Loop:   sync2.NewCycle(config.Interval),
	}
}

// TestSetNow sets the clock used by the chore.
func (chore *ExpiryChore) TestSetNow(nowFn func() time.Time) {
	chore.nowFn = nowFn
}

// Run starts the chore.
func (chore *ExpiryChore) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	return chore.Loop.Run(ctx, func(ctx context.Context) error {
		expired, err := chore.RunOnce(ctx)
		if err != nil {
			chore.log.Error("failed to expire gate passes", zap.Error(err))
			return nil
		}
		if expired > 0 {
			chore.log.Info("expired overdue gate passes", zap.Int("count", expired))
		}
		return nil
	})
}

// RunOnce expires one batch of overdue passes and returns how many changed.
// Passes that changed concurrently are skipped.
func (chore *ExpiryChore) RunOnce(ctx context.Context) (expired int, err error) {
	defer mon.Task()(&ctx)(&err)

	defer func() {
		if r := recover(); r != nil {
			chore.log.Error("panic in gate pass expiry chore", zap.Any("error", r))
			chore.log.Error("stack", zap.String("stack", stack.Trace().String()))
			err = Error.New("panic: %v", r)
		}
	}()

	now := chore.nowFn()
	overdue, err := chore.passes.ListOverdue(ctx, now, chore.config.BatchSize)
	if err != nil {
		return 0, Error.Wrap(err)
	}

	for _, pass := range overdue {
		changed, err := chore.passes.MarkExpired(ctx, pass.CommunityID, pass.ID, now)
		if err != nil {
			chore.log.Warn("failed to expire gate pass",
				zap.String("community_id", pass.CommunityID),
				zap.String("pass_id", pass.ID),
				zap.Error(err))
			continue
		}
		if changed {
			expired++
		}
	}
	return expired, nil
}

// Close stops the chore.
func (chore *ExpiryChore) Close() error {
	chore.Loop.Close()
	return nil
}
