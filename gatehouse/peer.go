// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package gatehouse wires the community services into a runnable process.
package gatehouse

import (
	"context"
	"net"
	"runtime/pprof"

	firebase "firebase.google.com/go/v4"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/StorXNetwork/gatehouse/community"
	"github.com/StorXNetwork/gatehouse/community/communityweb"
	"github.com/StorXNetwork/gatehouse/community/gatepass"
	"github.com/StorXNetwork/gatehouse/community/notices"
	"github.com/StorXNetwork/gatehouse/community/pushnotifications"
	"github.com/StorXNetwork/gatehouse/communitydb"
	"github.com/StorXNetwork/gatehouse/communitydb/memdb"
	"github.com/StorXNetwork/gatehouse/private/firebaseapp"
	"github.com/StorXNetwork/gatehouse/private/lifecycle"
	"github.com/StorXNetwork/gatehouse/private/scanguard"
)

var mon = monkit.Package()

// Error is the error class for the gatehouse peer.
var Error = errs.Class("gatehouse")

// Peer is the gatehouse process.
//
// architecture: Peer
type Peer struct {
	Log    *zap.Logger
	Config Config

	App *firebase.App
	DB  community.DB

	Servers  *lifecycle.Group
	Services *lifecycle.Group

	Push struct {
		Sender  pushnotifications.Sender
		Service *pushnotifications.Service
	}

	ScanGuard struct {
		Guard gatepass.ScanGuard
	}

	GatePass struct {
		Service *gatepass.Service
		Chore   *gatepass.ExpiryChore
	}

	Notices struct {
		Attachments notices.Attachments
		Service     *notices.Service
	}

	Web struct {
		Listener net.Listener
		Auth     *communityweb.AuthService
		Server   *communityweb.Server
	}
}

// OpenApp initializes the Firebase app when config needs one.
func OpenApp(ctx context.Context, config Config) (*firebase.App, error) {
	if !config.NeedsFirebase() {
		return nil, nil
	}
	return firebaseapp.New(ctx, config.Firebase)
}

// OpenDB opens the configured document store. app may be nil for the memory store.
func OpenDB(ctx context.Context, log *zap.Logger, app *firebase.App, config Config) (community.DB, error) {
	switch config.Store {
	case StoreMemory:
		db := memdb.New()
		for _, seed := range config.Seed {
			db.PutUser(seed.CommunityID, seed.UserID, memdb.UserDoc{
				Name:   seed.Name,
				Role:   seed.Role,
				Tokens: seed.Tokens,
			})
		}
		log.Info("using in-memory document store", zap.Int("seed_accounts", len(config.Seed)))
		return db, nil
	case StoreFirestore:
		if app == nil {
			return nil, Error.New("firestore store requires a Firebase app")
		}
		return communitydb.Open(ctx, app)
	}
	return nil, ErrInvalidConfig.New("unknown store %q", config.Store)
}

// New creates a new gatehouse peer.
func New(ctx context.Context, log *zap.Logger, config Config) (_ *Peer, err error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	peer := &Peer{
		Log:    log,
		Config: config,

		Servers:  lifecycle.NewGroup(log.Named("servers")),
		Services: lifecycle.NewGroup(log.Named("services")),
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, peer.Close())
		}
	}()

	{ // setup firebase and the document store
		peer.App, err = OpenApp(ctx, config)
		if err != nil {
			return nil, err
		}

		peer.DB, err = OpenDB(ctx, log.Named("db"), peer.App, config)
		if err != nil {
			return nil, err
		}
		peer.Services.Add(lifecycle.Item{
			Name:  "db",
			Close: peer.DB.Close,
		})
	}

	{ // setup push notifications
		if config.Push.Enabled {
			client, err := peer.App.Messaging(ctx)
			if err != nil {
				return nil, Error.New("failed to create messaging client: %v", err)
			}
			peer.Push.Sender = pushnotifications.NewFCMSender(log.Named("push:fcm"), client, config.Push)
		} else {
			log.Warn("push notifications are disabled, notifications will only be logged")
			peer.Push.Sender = pushnotifications.NewLogSender(log.Named("push:log"))
		}

		peer.Push.Service = pushnotifications.NewService(log.Named("push"),
			peer.DB.Accounts(),
			peer.Push.Sender,
			config.Roles,
		)
	}

	{ // setup scan guard
		if config.ScanGuard.Address != "" {
			guard, err := scanguard.OpenRedis(ctx, config.ScanGuard)
			if err != nil {
				return nil, err
			}
			peer.ScanGuard.Guard = guard
			peer.Services.Add(lifecycle.Item{
				Name:  "scanguard",
				Close: guard.Close,
			})
		} else {
			guard := scanguard.NewMemory(config.ScanGuard.TTL)
			peer.ScanGuard.Guard = guard
			peer.Services.Add(lifecycle.Item{
				Name:  "scanguard",
				Close: guard.Close,
			})
		}
	}

	{ // setup gate passes
		peer.GatePass.Service = gatepass.NewService(log.Named("gatepass"),
			peer.DB,
			peer.ScanGuard.Guard,
			peer.Push.Service,
			config.Roles,
			config.GatePass,
		)
	}

	{ // setup notices
		if config.Firebase.StorageBucket != "" {
			client, err := peer.App.Storage(ctx)
			if err != nil {
				return nil, Error.New("failed to create storage client: %v", err)
			}
			bucket, err := client.DefaultBucket()
			if err != nil {
				return nil, Error.New("failed to open storage bucket: %v", err)
			}
			peer.Notices.Attachments = notices.NewBucketAttachments(bucket)
		}

		peer.Notices.Service = notices.NewService(log.Named("notices"),
			peer.DB.Notices(),
			peer.Push.Service,
			peer.Notices.Attachments,
			config.Roles,
		)
	}

	{ // setup web api
		peer.Web.Auth, err = communityweb.NewAuthService(config.Web.Auth)
		if err != nil {
			return nil, err
		}

		peer.Web.Listener, err = net.Listen("tcp", config.Web.Address)
		if err != nil {
			return nil, Error.Wrap(err)
		}

		peer.Web.Server = communityweb.NewServer(log.Named("web"),
			peer.Web.Listener,
			peer.Web.Auth,
			communityweb.Services{
				Push:     peer.Push.Service,
				GatePass: peer.GatePass.Service,
				Notices:  peer.Notices.Service,
				Accounts: peer.DB.Accounts(),
			},
			config.Web,
		)
		peer.Servers.Add(lifecycle.Item{
			Name:  "web",
			Run:   peer.Web.Server.Run,
			Close: peer.Web.Server.Close,
		})
	}

	{ // setup expiry chore
		if config.GatePass.Expiry.Enabled {
			peer.GatePass.Chore = gatepass.NewExpiryChore(log.Named("gatepass:expiry"),
				peer.DB.GatePasses(),
				config.GatePass.Expiry,
			)
			peer.Services.Add(lifecycle.Item{
				Name:  "gatepass:expiry",
				Run:   peer.GatePass.Chore.Run,
				Close: peer.GatePass.Chore.Close,
			})
		}
	}

	return peer, nil
}

// Run runs the peer until it's either closed or it errors.
func (peer *Peer) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	group, ctx := errgroup.WithContext(ctx)

	pprof.Do(ctx, pprof.Labels("subsystem", "gatehouse"), func(ctx context.Context) {
		peer.Servers.Run(ctx, group)
		peer.Services.Run(ctx, group)

		pprof.Do(ctx, pprof.Labels("name", "subsystem-wait"), func(ctx context.Context) {
			err = group.Wait()
		})
	})
	return err
}

// Close closes all the resources.
func (peer *Peer) Close() error {
	return errs.Combine(
		peer.Servers.Close(),
		peer.Services.Close(),
	)
}

// Addr returns the address the web api listens on.
func (peer *Peer) Addr() string {
	if peer.Web.Listener == nil {
		return ""
	}
	return peer.Web.Listener.Addr().String()
}
