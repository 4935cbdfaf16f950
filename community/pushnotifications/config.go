// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package pushnotifications

// MaxBatchSize is the largest token list FCM accepts in one multicast.
const MaxBatchSize = 500

// Config contains push dispatch configuration.
type Config struct {
	Enabled   bool   `help:"deliver notifications through FCM, otherwise they are only logged" default:"false" releaseDefault:"true"`
	BatchSize int    `help:"maximum number of tokens per multicast request" default:"500"`
	ChannelID string `help:"android notification channel id" default:"gatehouse"`
	Sound     string `help:"notification sound for android and apns" default:"default"`
}

func (config Config) batchSize() int {
	if config.BatchSize <= 0 || config.BatchSize > MaxBatchSize {
		return MaxBatchSize
	}
	return config.BatchSize
}
