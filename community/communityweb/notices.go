// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package communityweb

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/StorXNetwork/gatehouse/community"
	"github.com/StorXNetwork/gatehouse/community/notices"
	"github.com/StorXNetwork/gatehouse/community/pushnotifications"
)

type publishResponse struct {
	Notice    community.Notice             `json:"notice"`
	Broadcast pushnotifications.RoleResult `json:"broadcast"`
}

func (server *Server) publishNotice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	session, err := GetSession(ctx)
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	var draft notices.Draft
	if err = decodeBody(r, &draft); err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	notice, broadcast, err := server.services.Notices.Publish(ctx, session, draft)
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}
	serveJSON(ctx, server.log, w, http.StatusCreated, publishResponse{Notice: notice, Broadcast: broadcast})
}

func (server *Server) deleteNotice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	session, err := GetSession(ctx)
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	if err = server.services.Notices.Delete(ctx, session, mux.Vars(r)["noticeId"]); err != nil {
		serveError(ctx, server.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
