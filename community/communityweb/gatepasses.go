// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package communityweb

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/StorXNetwork/gatehouse/community"
	"github.com/StorXNetwork/gatehouse/community/gatepass"
)

type scanRequest struct {
	Payload string `json:"payload"`
}

type checkInResponse struct {
	GatePass community.GatePass        `json:"gatePass"`
	Visitor  community.VisitorLogEntry `json:"visitor"`
}

type resolveResponse struct {
	Request community.GatePassRequest `json:"request"`
	Visitor community.VisitorLogEntry `json:"visitor"`
}

type registerTokenRequest struct {
	Token string `json:"token"`
}

// decodeBody decodes the JSON request body into v.
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return community.ErrInvalidArgument.New("malformed request body: %v", err)
	}
	return nil
}

func (server *Server) issuePass(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	session, err := GetSession(ctx)
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	var request gatepass.IssueRequest
	if err = decodeBody(r, &request); err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	pass, err := server.services.GatePass.IssuePass(ctx, session, request)
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}
	serveJSON(ctx, server.log, w, http.StatusCreated, pass)
}

func (server *Server) passQR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	session, err := GetSession(ctx)
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	png, err := server.services.GatePass.PassQR(ctx, session, mux.Vars(r)["passId"])
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(png); err != nil {
		server.log.Debug("failed to write qr code", zap.Error(err))
	}
}

func (server *Server) scan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	session, err := GetSession(ctx)
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	var request scanRequest
	if err = decodeBody(r, &request); err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	pass, err := server.services.GatePass.Scan(ctx, session, request.Payload)
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}
	serveJSON(ctx, server.log, w, http.StatusOK, pass)
}

func (server *Server) resetScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	session, err := GetSession(ctx)
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	if err = server.services.GatePass.ResetScan(ctx, session); err != nil {
		serveError(ctx, server.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) checkIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	session, err := GetSession(ctx)
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	pass, entry, err := server.services.GatePass.ConfirmCheckIn(ctx, session, mux.Vars(r)["passId"])
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}
	serveJSON(ctx, server.log, w, http.StatusOK, checkInResponse{GatePass: pass, Visitor: entry})
}

func (server *Server) submitRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	session, err := GetSession(ctx)
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	var details gatepass.VisitorDetails
	if err = decodeBody(r, &details); err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	request, err := server.services.GatePass.SubmitRequest(ctx, session, details)
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}
	serveJSON(ctx, server.log, w, http.StatusCreated, request)
}

func (server *Server) resolveRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	session, err := GetSession(ctx)
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	vars := mux.Vars(r)
	request, entry, err := server.services.GatePass.ResolveRequest(ctx, session, vars["requestId"], community.Decision(vars["decision"]))
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}
	serveJSON(ctx, server.log, w, http.StatusOK, resolveResponse{Request: request, Visitor: entry})
}

func (server *Server) registerToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	session, err := GetSession(ctx)
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}
	if err = community.Require(session); err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	var request registerTokenRequest
	if err = decodeBody(r, &request); err != nil {
		serveError(ctx, server.log, w, err)
		return
	}
	token := strings.TrimSpace(request.Token)
	if token == "" {
		err = community.ErrInvalidArgument.New("missing required fields: token")
		serveError(ctx, server.log, w, err)
		return
	}

	if err = server.services.Accounts.AddToken(ctx, session.CommunityID, session.UserID, token); err != nil {
		serveError(ctx, server.log, w, community.Internal(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
