// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package gatehouse

import (
	"encoding/json"
	"strings"

	"github.com/spf13/pflag"
	"github.com/zeebo/errs"

	"github.com/StorXNetwork/gatehouse/community"
	"github.com/StorXNetwork/gatehouse/community/communityweb"
	"github.com/StorXNetwork/gatehouse/community/gatepass"
	"github.com/StorXNetwork/gatehouse/community/pushnotifications"
	"github.com/StorXNetwork/gatehouse/private/firebaseapp"
	"github.com/StorXNetwork/gatehouse/private/scanguard"
)

// ErrInvalidConfig is returned for an unusable configuration.
var ErrInvalidConfig = errs.Class("invalid config")

const (
	// StoreFirestore keeps community documents in Cloud Firestore.
	StoreFirestore = "firestore"
	// StoreMemory keeps community documents in process memory.
	StoreMemory = "memory"
)

// SeedAccount is an account created in the memory store at startup.
type SeedAccount struct {
	CommunityID string   `yaml:"community_id" json:"community_id"`
	UserID      string   `yaml:"user_id" json:"user_id"`
	Name        string   `yaml:"name" json:"name"`
	Role        string   `yaml:"role" json:"role"`
	Tokens      []string `yaml:"tokens" json:"tokens"`
}

// SeedAccounts is a list of seed accounts settable as a JSON flag.
type SeedAccounts []SeedAccount

var _ pflag.Value = (*SeedAccounts)(nil)

// Type implements pflag.Value.
func (SeedAccounts) Type() string { return "gatehouse.SeedAccounts" }

// String implements pflag.Value.
func (seeds *SeedAccounts) String() string {
	if seeds == nil || len(*seeds) == 0 {
		return ""
	}
	data, err := json.Marshal(*seeds)
	if err != nil {
		return ""
	}
	return string(data)
}

// Set implements pflag.Value.
func (seeds *SeedAccounts) Set(s string) error {
	if strings.TrimSpace(s) == "" {
		*seeds = nil
		return nil
	}
	accounts := make([]SeedAccount, 0)
	if err := json.Unmarshal([]byte(s), &accounts); err != nil {
		return err
	}
	*seeds = accounts
	return nil
}

// Config is the configuration of a gatehouse process.
type Config struct {
	Store    string `help:"document store backend: firestore or memory" default:"firestore" devDefault:"memory"`
	Firebase firebaseapp.Config

	Roles     community.Roles
	Push      pushnotifications.Config
	GatePass  gatepass.Config
	ScanGuard scanguard.Config
	Web       communityweb.Config

	Seed SeedAccounts `help:"accounts created in the memory store in JSON format: [{\"community_id\":\"\",\"user_id\":\"\",\"name\":\"\",\"role\":\"\",\"tokens\":[\"\"]},...]"`
}

// NeedsFirebase reports whether any component talks to Firebase.
func (c *Config) NeedsFirebase() bool {
	return c.Store == StoreFirestore || c.Push.Enabled || c.Firebase.StorageBucket != ""
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreFirestore, StoreMemory:
	default:
		return ErrInvalidConfig.New("unknown store %q, expected %q or %q", c.Store, StoreFirestore, StoreMemory)
	}

	if c.NeedsFirebase() && c.Firebase.ProjectID == "" {
		return ErrInvalidConfig.New("Firebase project ID is required")
	}
	if err := c.Roles.Validate(); err != nil {
		return ErrInvalidConfig.Wrap(err)
	}
	if c.Web.Auth.SecretKey == "" {
		return ErrInvalidConfig.New("session secret key is required")
	}
	if c.GatePass.PINDigits <= 0 {
		return ErrInvalidConfig.New("gate pass PIN digits must be positive")
	}
	if c.GatePass.Expiry.Enabled && c.GatePass.Expiry.Interval <= 0 {
		return ErrInvalidConfig.New("expiry interval must be positive")
	}

	seen := map[string]bool{}
	for i, seed := range c.Seed {
		if seed.CommunityID == "" || seed.UserID == "" {
			return ErrInvalidConfig.New("seed account at index %d requires community_id and user_id", i)
		}
		key := seed.CommunityID + "/" + seed.UserID
		if seen[key] {
			return ErrInvalidConfig.New("duplicate seed account: %s", key)
		}
		seen[key] = true
	}
	if len(c.Seed) > 0 && c.Store != StoreMemory {
		return ErrInvalidConfig.New("seed accounts are only supported by the memory store")
	}
	return nil
}
