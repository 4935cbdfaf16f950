// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package communityweb

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/StorXNetwork/gatehouse/community"
	"github.com/StorXNetwork/gatehouse/community/pushnotifications"
)

// callRequest is the envelope of callable-function requests.
type callRequest struct {
	Data json.RawMessage `json:"data"`
}

// callResponse is the envelope of callable-function results.
type callResponse struct {
	Result interface{} `json:"result"`
}

type sendToUserData struct {
	CommunityID string                 `json:"communityId"`
	UserID      string                 `json:"userId"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	ExtraData   map[string]interface{} `json:"extraData"`
}

type sendToSecurityData struct {
	CommunityID string                 `json:"communityId"`
	PassID      string                 `json:"passId"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	ExtraData   map[string]interface{} `json:"extraData"`
}

// decodeCall decodes the data of a callable-function request into v.
func decodeCall(r *http.Request, v interface{}) error {
	var call callRequest
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		return community.ErrInvalidArgument.New("malformed request body: %v", err)
	}
	if len(call.Data) == 0 || string(call.Data) == "null" {
		return community.ErrInvalidArgument.New("missing data")
	}
	decoder := json.NewDecoder(strings.NewReader(string(call.Data)))
	decoder.UseNumber()
	if err := decoder.Decode(v); err != nil {
		return community.ErrInvalidArgument.New("malformed data: %v", err)
	}
	return nil
}

// sameCommunity rejects callers acting on a community other than their own.
// A blank community is left to the service's required-field check.
func sameCommunity(session community.Session, communityID string) error {
	if err := community.Require(session); err != nil {
		return err
	}
	if strings.TrimSpace(communityID) != "" && communityID != session.CommunityID {
		return community.ErrForbidden.New("session does not belong to community %q", communityID)
	}
	return nil
}

func (server *Server) sendToUserDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	session, err := GetSession(ctx)
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	var data sendToUserData
	if err = decodeCall(r, &data); err != nil {
		serveError(ctx, server.log, w, err)
		return
	}
	if err = sameCommunity(session, data.CommunityID); err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	result, err := server.services.Push.DispatchToUser(ctx, pushnotifications.UserDispatch{
		CommunityID: data.CommunityID,
		UserID:      data.UserID,
		Title:       data.Title,
		Body:        data.Body,
		ExtraData:   data.ExtraData,
	})
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}
	serveJSON(ctx, server.log, w, http.StatusOK, callResponse{Result: result})
}

func (server *Server) sendNotificationToSecurity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	session, err := GetSession(ctx)
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	var data sendToSecurityData
	if err = decodeCall(r, &data); err != nil {
		serveError(ctx, server.log, w, err)
		return
	}
	if err = sameCommunity(session, data.CommunityID); err != nil {
		serveError(ctx, server.log, w, err)
		return
	}

	result, err := server.services.Push.DispatchToCommunityRole(ctx, pushnotifications.SecurityDispatch{
		CommunityID: data.CommunityID,
		PassID:      data.PassID,
		Title:       data.Title,
		Body:        data.Body,
		ExtraData:   data.ExtraData,
	})
	if err != nil {
		serveError(ctx, server.log, w, err)
		return
	}
	serveJSON(ctx, server.log, w, http.StatusOK, callResponse{Result: result})
}
