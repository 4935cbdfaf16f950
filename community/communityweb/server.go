// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package communityweb implements the HTTP API of gatehouse.
package communityweb

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storj.io/common/errs2"

	"github.com/StorXNetwork/gatehouse/community"
	"github.com/StorXNetwork/gatehouse/community/gatepass"
	"github.com/StorXNetwork/gatehouse/community/notices"
	"github.com/StorXNetwork/gatehouse/community/pushnotifications"
)

var (
	mon = monkit.Package()

	// Error is the error class for the HTTP API.
	Error = errs.Class("communityweb")
)

// Config contains configuration for the HTTP API.
type Config struct {
	Address      string        `help:"http listening address" default:":8080" devDefault:"127.0.0.1:8080"`
	ReadTimeout  time.Duration `help:"maximum duration for reading a request" default:"30s"`
	WriteTimeout time.Duration `help:"maximum duration for writing a response" default:"60s"`
	MaxBodySize  int64         `help:"maximum request body size in bytes" default:"1048576"`

	Auth      AuthConfig
	RateLimit RateLimiterConfig
}

// Services are the services the API exposes.
type Services struct {
	Push     *pushnotifications.Service
	GatePass *gatepass.Service
	Notices  *notices.Service
	Accounts community.Accounts
}

// Server serves the HTTP API.
type Server struct {
	log      *zap.Logger
	listener net.Listener
	server   http.Server

	auth     *AuthService
	limiter  *RateLimiter
	services Services
	config   Config
}

// NewServer creates a new API server. listener may be nil, in which case
// Run returns immediately and the server is only usable as an http.Handler.
func NewServer(log *zap.Logger, listener net.Listener, auth *AuthService, services Services, config Config) *Server {
	server := &Server{
		log:      log,
		listener: listener,
		auth:     auth,
		limiter:  NewRateLimiter(config.RateLimit),
		services: services,
		config:   config,
	}

	root := mux.NewRouter()
	api := root.PathPrefix("/api/v0").Subrouter()
	api.Use(server.withSession)

	functions := api.PathPrefix("/functions").Subrouter()
	functions.Use(server.limit)
	functions.HandleFunc("/sendToUserDevices", server.sendToUserDevices).Methods(http.MethodPost)
	functions.HandleFunc("/sendNotificationToSecurity", server.sendNotificationToSecurity).Methods(http.MethodPost)

	api.HandleFunc("/gatepasses", server.issuePass).Methods(http.MethodPost)
	api.HandleFunc("/gatepasses/scan", server.scan).Methods(http.MethodPost)
	api.HandleFunc("/gatepasses/scan/reset", server.resetScan).Methods(http.MethodPost)
	api.HandleFunc("/gatepasses/{passId}/qr", server.passQR).Methods(http.MethodGet)
	api.HandleFunc("/gatepasses/{passId}/checkin", server.checkIn).Methods(http.MethodPost)

	api.HandleFunc("/gatepass-requests", server.submitRequest).Methods(http.MethodPost)
	api.HandleFunc("/gatepass-requests/{requestId}/{decision:approve|reject}", server.resolveRequest).Methods(http.MethodPost)

	api.HandleFunc("/devices/tokens", server.registerToken).Methods(http.MethodPost)

	api.HandleFunc("/notices", server.publishNotice).Methods(http.MethodPost)
	api.HandleFunc("/notices/{noticeId}", server.deleteNotice).Methods(http.MethodDelete)

	server.server = http.Server{
		Handler:      root,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		ErrorLog:     zap.NewStdLog(log),
	}
	return server
}

// ServeHTTP implements http.Handler.
func (server *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	server.server.Handler.ServeHTTP(w, r)
}

// Run starts the server.
func (server *Server) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if server.listener == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	var group errgroup.Group
	group.Go(func() error {
		<-ctx.Done()
		return Error.Wrap(server.server.Shutdown(context.Background()))
	})
	group.Go(func() error {
		defer cancel()
		err := server.server.Serve(server.listener)
		if errs2.IsCanceled(err) || errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return Error.Wrap(err)
	})
	return group.Wait()
}

// Close closes server and underlying listener.
func (server *Server) Close() error {
	return Error.Wrap(server.server.Close())
}

// withSession authenticates the bearer token of every request.
func (server *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			serveError(ctx, server.log, w, community.ErrUnauthorized.New("missing bearer token"))
			return
		}

		session, err := server.auth.ValidateToken(ctx, strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
		if err != nil {
			serveError(ctx, server.log, w, err)
			return
		}

		if server.config.MaxBodySize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, server.config.MaxBodySize)
		}
		next.ServeHTTP(w, r.WithContext(WithSession(ctx, session)))
	})
}
