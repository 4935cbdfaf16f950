// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package communityweb_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/StorXNetwork/gatehouse/community"
	"github.com/StorXNetwork/gatehouse/community/communityweb"
	"github.com/StorXNetwork/gatehouse/community/gatepass"
	"github.com/StorXNetwork/gatehouse/community/notices"
	"github.com/StorXNetwork/gatehouse/community/pushnotifications"
	"github.com/StorXNetwork/gatehouse/communitydb/memdb"
	"github.com/StorXNetwork/gatehouse/private/scanguard"
)

type apiEnv struct {
	t      *testing.T
	db     *memdb.DB
	auth   *communityweb.AuthService
	server *communityweb.Server
}

func newAPIEnv(t *testing.T) *apiEnv {
	log := zaptest.NewLogger(t)
	roles := community.DefaultRoles()
	db := memdb.New()

	auth, err := communityweb.NewAuthService(communityweb.AuthConfig{
		SecretKey:  "test-secret",
		Expiration: time.Hour,
		Issuer:     "gatehouse",
	})
	require.NoError(t, err)

	push := pushnotifications.NewService(log.Named("push"), db.Accounts(), pushnotifications.NewLogSender(log.Named("sender")), roles)
	passes := gatepass.NewService(log.Named("gatepass"), db, scanguard.NewMemory(time.Minute), push, roles, gatepass.Config{
		PINDigits:   6,
		QRSize:      128,
		MaxValidity: 24 * time.Hour,
	})
	board := notices.NewService(log.Named("notices"), db.Notices(), push, nil, roles)

	server := communityweb.NewServer(log.Named("web"), nil, auth, communityweb.Services{
		Push:     push,
		GatePass: passes,
		Notices:  board,
		Accounts: db.Accounts(),
	}, communityweb.Config{MaxBodySize: 1 << 20})

	return &apiEnv{t: t, db: db, auth: auth, server: server}
}

func (env *apiEnv) token(session community.Session) string {
	token, err := env.auth.GenerateToken(context.Background(), session)
	require.NoError(env.t, err)
	return token
}

func (env *apiEnv) do(session *community.Session, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader bytes.Buffer
	if body != nil {
		require.NoError(env.t, json.NewEncoder(&reader).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reader)
	if session != nil {
		req.Header.Set("Authorization", "Bearer "+env.token(*session))
	}
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

type errorResponse struct {
	Error struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) errorResponse {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, code, body.Error.Status)
	return body
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, status int, v interface{}) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

var (
	resident = community.Session{CommunityID: "c1", UserID: "res", Name: "Resident One", Role: "Resident"}
	guard    = community.Session{CommunityID: "c1", UserID: "sec", Name: "Guard", Role: "security", DeviceID: "gate-1"}
	admin    = community.Session{CommunityID: "c1", UserID: "adm", Name: "Admin", Role: "Admin"}
	outsider = community.Session{CommunityID: "c2", UserID: "out", Name: "Outsider", Role: "Admin"}
)

func TestAuthentication(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(nil, http.MethodPost, "/api/v0/gatepasses/scan", map[string]string{"payload": "{}"})
	body := requireError(t, rec, http.StatusUnauthorized, "unauthenticated")
	require.NotEmpty(t, body.Error.Message)

	req := httptest.NewRequest(http.MethodPost, "/api/v0/gatepasses/scan", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	requireError(t, rec, http.StatusUnauthorized, "unauthenticated")
}

func TestSendToUserDevices(t *testing.T) {
	env := newAPIEnv(t)
	env.db.PutUser("c1", "res", memdb.UserDoc{Name: "Resident One", Role: "Resident", FCMTokens: []string{"a", "b"}})

	call := func(session community.Session, data map[string]interface{}) *httptest.ResponseRecorder {
		return env.do(&session, http.MethodPost, "/api/v0/functions/sendToUserDevices", map[string]interface{}{"data": data})
	}

	var response struct {
		Result pushnotifications.UserResult `json:"result"`
	}
	decode(t, call(guard, map[string]interface{}{
		"communityId": "c1",
		"userId":      "res",
		"title":       "Visitor",
		"body":        "Your visitor has arrived",
		"extraData":   map[string]interface{}{"count": 2, "urgent": true},
	}), http.StatusOK, &response)
	require.Equal(t, pushnotifications.UserResult{Success: true, Sent: 2, TotalTokens: 2}, response.Result)

	requireError(t, call(guard, map[string]interface{}{"communityId": "c1", "userId": "res", "title": "t"}),
		http.StatusBadRequest, "invalid-argument")

	requireError(t, call(guard, map[string]interface{}{"communityId": "c1", "userId": "nobody", "title": "t", "body": "b"}),
		http.StatusNotFound, "not-found")

	requireError(t, call(outsider, map[string]interface{}{"communityId": "c1", "userId": "res", "title": "t", "body": "b"}),
		http.StatusForbidden, "permission-denied")

	rec := env.do(&guard, http.MethodPost, "/api/v0/functions/sendToUserDevices", map[string]interface{}{})
	requireError(t, rec, http.StatusBadRequest, "invalid-argument")
}

func TestSendNotificationToSecurity(t *testing.T) {
	env := newAPIEnv(t)

	call := func(data map[string]interface{}) *httptest.ResponseRecorder {
		return env.do(&resident, http.MethodPost, "/api/v0/functions/sendNotificationToSecurity", map[string]interface{}{"data": data})
	}
	data := map[string]interface{}{"communityId": "c1", "passId": "p1", "title": "Visitor", "body": "At the gate"}

	var response struct {
		Result pushnotifications.RoleResult `json:"result"`
	}
	decode(t, call(data), http.StatusOK, &response)
	require.False(t, response.Result.Success)
	require.Equal(t, "No security personnel found", response.Result.Message)

	env.db.PutUser("c1", "s1", memdb.UserDoc{Name: "Guard A", Role: "Security", Tokens: []string{"x"}})
	env.db.PutUser("c1", "s2", memdb.UserDoc{Name: "Guard B", Role: "security", FCMTokens: []string{"y", "z"}})
	env.db.PutUser("c1", "r1", memdb.UserDoc{Name: "Resident", Role: "Resident", Tokens: []string{"r"}})

	decode(t, call(data), http.StatusOK, &response)
	require.True(t, response.Result.Success)
	require.Equal(t, 3, response.Result.Sent)
	require.Equal(t, 3, response.Result.TotalTokens)
	require.Equal(t, 2, response.Result.MatchedCount)
	require.Equal(t, 2, response.Result.WithTokensCount)
	require.Equal(t, "p1", response.Result.PassID)
	require.Len(t, response.Result.Details, 2)
}

func TestGatePassFlow(t *testing.T) {
	env := newAPIEnv(t)

	now := time.Now()
	issue := map[string]interface{}{
		"visitorName":  "Visitor",
		"visitorPhone": "555-0100",
		"apartmentId":  "A-101",
		"purpose":      "delivery",
		"validFrom":    now.Add(-time.Minute),
		"validTo":      now.Add(time.Hour),
	}

	requireError(t, env.do(&guard, http.MethodPost, "/api/v0/gatepasses", issue), http.StatusForbidden, "permission-denied")

	var pass community.GatePass
	decode(t, env.do(&resident, http.MethodPost, "/api/v0/gatepasses", issue), http.StatusCreated, &pass)
	require.Equal(t, community.GatePassIssued, pass.Status)
	require.Len(t, pass.PINCode, 6)

	rec := env.do(&resident, http.MethodGet, "/api/v0/gatepasses/"+pass.ID+"/qr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	payload := gatepass.Payload{CommunityID: "c1", PassID: pass.ID}.Encode()

	requireError(t, env.do(&guard, http.MethodPost, "/api/v0/gatepasses/scan", map[string]string{"payload": "garbage"}),
		http.StatusUnprocessableEntity, "invalid-format")

	var scanned community.GatePass
	decode(t, env.do(&guard, http.MethodPost, "/api/v0/gatepasses/scan", map[string]string{"payload": payload}), http.StatusOK, &scanned)
	require.Equal(t, pass.ID, scanned.ID)

	requireError(t, env.do(&guard, http.MethodPost, "/api/v0/gatepasses/scan", map[string]string{"payload": payload}),
		http.StatusConflict, "scan-in-progress")

	rec = env.do(&guard, http.MethodPost, "/api/v0/gatepasses/scan/reset", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	decode(t, env.do(&guard, http.MethodPost, "/api/v0/gatepasses/scan", map[string]string{"payload": payload}), http.StatusOK, &scanned)

	var checkedIn struct {
		GatePass community.GatePass        `json:"gatePass"`
		Visitor  community.VisitorLogEntry `json:"visitor"`
	}
	decode(t, env.do(&guard, http.MethodPost, "/api/v0/gatepasses/"+pass.ID+"/checkin", nil), http.StatusOK, &checkedIn)
	require.Equal(t, community.GatePassUsed, checkedIn.GatePass.Status)
	require.Equal(t, "sec", checkedIn.GatePass.CheckedInBy)
	require.Equal(t, community.VisitorCheckedIn, checkedIn.Visitor.Status)
	require.Equal(t, pass.ID, checkedIn.Visitor.GatePassID)

	requireError(t, env.do(&guard, http.MethodPost, "/api/v0/gatepasses/scan", map[string]string{"payload": payload}),
		http.StatusConflict, "already-used")
	requireError(t, env.do(&guard, http.MethodPost, "/api/v0/gatepasses/"+pass.ID+"/checkin", nil),
		http.StatusConflict, "already-used")
}

func TestGatePassRequests(t *testing.T) {
	env := newAPIEnv(t)

	var request community.GatePassRequest
	decode(t, env.do(&guard, http.MethodPost, "/api/v0/gatepass-requests", map[string]string{
		"visitorName":  "Walk In",
		"visitorPhone": "555-0101",
		"apartmentId":  "B-202",
	}), http.StatusCreated, &request)
	require.Equal(t, community.RequestPending, request.Status)

	requireError(t, env.do(&guard, http.MethodPost, "/api/v0/gatepass-requests", map[string]string{"visitorName": "x"}),
		http.StatusBadRequest, "invalid-argument")

	requireError(t, env.do(&resident, http.MethodPost, "/api/v0/gatepass-requests/"+request.ID+"/approve", nil),
		http.StatusForbidden, "permission-denied")

	var resolved struct {
		Request community.GatePassRequest `json:"request"`
		Visitor community.VisitorLogEntry `json:"visitor"`
	}
	decode(t, env.do(&guard, http.MethodPost, "/api/v0/gatepass-requests/"+request.ID+"/reject", nil), http.StatusOK, &resolved)
	require.Equal(t, community.RequestRejected, resolved.Request.Status)
	require.Equal(t, community.VisitorRejected, resolved.Visitor.Status)

	requireError(t, env.do(&guard, http.MethodPost, "/api/v0/gatepass-requests/"+request.ID+"/approve", nil),
		http.StatusConflict, "already-processed")

	rec := env.do(&guard, http.MethodPost, "/api/v0/gatepass-requests/"+request.ID+"/ignore", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterToken(t *testing.T) {
	env := newAPIEnv(t)
	env.db.PutUser("c1", "res", memdb.UserDoc{Name: "Resident One", Role: "Resident", FCMTokens: []string{"old"}})

	rec := env.do(&resident, http.MethodPost, "/api/v0/devices/tokens", map[string]string{"token": "new"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	doc, ok := env.db.User("c1", "res")
	require.True(t, ok)
	require.Equal(t, []string{"old", "new"}, doc.FCMTokens)
	require.Empty(t, doc.Tokens)

	requireError(t, env.do(&resident, http.MethodPost, "/api/v0/devices/tokens", map[string]string{"token": " "}),
		http.StatusBadRequest, "invalid-argument")
}

func TestNotices(t *testing.T) {
	env := newAPIEnv(t)
	env.db.PutUser("c1", "res", memdb.UserDoc{Name: "Resident One", Role: "Resident", Tokens: []string{"t1"}})

	draft := map[string]interface{}{"title": "Water outage", "body": "Tomorrow 9-11"}
	requireError(t, env.do(&resident, http.MethodPost, "/api/v0/notices", draft), http.StatusForbidden, "permission-denied")

	var published struct {
		Notice    community.Notice             `json:"notice"`
		Broadcast pushnotifications.RoleResult `json:"broadcast"`
	}
	decode(t, env.do(&admin, http.MethodPost, "/api/v0/notices", draft), http.StatusCreated, &published)
	require.Equal(t, "Water outage", published.Notice.Title)
	require.Equal(t, 1, published.Broadcast.Sent)

	rec := env.do(&admin, http.MethodDelete, "/api/v0/notices/"+published.Notice.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	requireError(t, env.do(&admin, http.MethodDelete, "/api/v0/notices/"+published.Notice.ID, nil),
		http.StatusNotFound, "not-found")
}
