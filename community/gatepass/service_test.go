// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package gatepass_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"

	"github.com/StorXNetwork/gatehouse/community"
	"github.com/StorXNetwork/gatehouse/community/gatepass"
	"github.com/StorXNetwork/gatehouse/community/pushnotifications"
	"github.com/StorXNetwork/gatehouse/communitydb/memdb"
	"github.com/StorXNetwork/gatehouse/private/scanguard"
)

var (
	now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	resident = community.Session{CommunityID: "c1", UserID: "r1", Name: "Asha", Role: "Resident", DeviceID: "phone-r1"}
	guard    = community.Session{CommunityID: "c1", UserID: "s1", Name: "Ravi", Role: "Security", DeviceID: "gate-1"}
	guard2   = community.Session{CommunityID: "c1", UserID: "s2", Name: "Kiran", Role: "security", DeviceID: "gate-2"}
)

type fakeNotifier struct {
	mu         sync.Mutex
	dispatches []pushnotifications.SecurityDispatch
	err        error
}

func (f *fakeNotifier) DispatchToCommunityRole(ctx context.Context, dispatch pushnotifications.SecurityDispatch) (pushnotifications.RoleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatches = append(f.dispatches, dispatch)
	return pushnotifications.RoleResult{Success: f.err == nil}, f.err
}

type testEnv struct {
	db       *memdb.DB
	service  *gatepass.Service
	notifier *fakeNotifier
}

func newEnv(t *testing.T) *testEnv {
	db := memdb.New()
	notifier := &fakeNotifier{}
	service := gatepass.NewService(zaptest.NewLogger(t), db, scanguard.NewMemory(time.Minute), notifier, community.DefaultRoles(), gatepass.Config{
		PINDigits:   6,
		QRSize:      128,
		MaxValidity: 48 * time.Hour,
	})
	service.TestSetNow(func() time.Time { return now })
	return &testEnv{db: db, service: service, notifier: notifier}
}

func (env *testEnv) insertPass(ctx context.Context, t *testing.T, id string, status community.GatePassStatus, validTo time.Time) community.GatePass {
	pass := community.GatePass{
		ID:              id,
		CommunityID:     "c1",
		VisitorName:     "Meera",
		VisitorPhone:    "+911234567890",
		ApartmentID:     "A-101",
		GeneratedBy:     "r1",
		GeneratedByName: "Asha",
		Purpose:         "Delivery",
		PINCode:         "123456",
		ValidFrom:       validTo.Add(-2 * time.Hour),
		ValidTo:         validTo,
		Status:          status,
		CreatedAt:       now.Add(-3 * time.Hour),
	}
	require.NoError(t, env.db.GatePasses().Insert(ctx, pass))
	return pass
}

func payload(passID string) string {
	return gatepass.Payload{CommunityID: "c1", PassID: passID}.Encode()
}

func TestScanAndCheckIn(t *testing.T) {
	ctx := testcontext.New(t)
	env := newEnv(t)
	env.insertPass(ctx, t, "p1", community.GatePassIssued, now.Add(time.Hour))

	pass, err := env.service.Scan(ctx, guard, payload("p1"))
	require.NoError(t, err)
	require.Equal(t, "p1", pass.ID)
	require.Equal(t, "Meera", pass.VisitorName)

	_, err = env.service.Scan(ctx, guard, payload("p1"))
	require.True(t, community.ErrScanInProgress.Has(err), err)

	pass, entry, err := env.service.ConfirmCheckIn(ctx, guard, "p1")
	require.NoError(t, err)
	require.Equal(t, community.GatePassUsed, pass.Status)
	require.Equal(t, "s1", pass.CheckedInBy)
	require.Equal(t, "Ravi", pass.CheckedInByName)
	require.NotNil(t, pass.UsedAt)
	require.True(t, pass.UsedAt.Equal(now))

	require.NotEmpty(t, entry.ID)
	require.Equal(t, "p1", entry.GatePassID)
	require.Equal(t, community.VisitorCheckedIn, entry.Status)
	require.Equal(t, "r1", entry.HostID)
	require.Equal(t, "s1", entry.OperatorID)

	entries, err := env.db.Visitors().ListByGatePass(ctx, "c1", "p1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = env.service.Scan(ctx, guard, payload("p1"))
	require.True(t, community.ErrAlreadyUsed.Has(err), err)
}

func TestScanClassification(t *testing.T) {
	ctx := testcontext.New(t)
	env := newEnv(t)
	env.insertPass(ctx, t, "used", community.GatePassUsed, now.Add(time.Hour))
	env.insertPass(ctx, t, "stored-expired", community.GatePassExpired, now.Add(time.Hour))
	env.insertPass(ctx, t, "overdue", community.GatePassIssued, now.Add(-time.Minute))
	env.insertPass(ctx, t, "overdue-used", community.GatePassUsed, now.Add(-time.Minute))

	for _, tt := range []struct {
		raw   string
		class func(error) bool
	}{
		{payload("used"), community.ErrAlreadyUsed.Has},
		{payload("stored-expired"), community.ErrExpired.Has},
		{payload("overdue"), community.ErrExpired.Has},
		{payload("overdue-used"), community.ErrAlreadyUsed.Has},
		{payload("missing"), community.ErrNotFound.Has},
		{"garbage", community.ErrInvalidFormat.Has},
	} {
		// a rejected scan releases the device, so every attempt is evaluated
		// and repeating it yields the same classification.
		for i := 0; i < 2; i++ {
			_, err := env.service.Scan(ctx, guard, tt.raw)
			require.True(t, tt.class(err), "%s: %v", tt.raw, err)
		}
	}

	require.Zero(t, countVisitors(ctx, t, env, "overdue"))
}

func countVisitors(ctx context.Context, t *testing.T, env *testEnv, passID string) int {
	entries, err := env.db.Visitors().ListByGatePass(ctx, "c1", passID)
	require.NoError(t, err)
	return len(entries)
}

func TestScanOtherCommunity(t *testing.T) {
	ctx := testcontext.New(t)
	env := newEnv(t)

	foreign := func(id string, status community.GatePassStatus, validTo time.Time) {
		require.NoError(t, env.db.GatePasses().Insert(ctx, community.GatePass{
			ID:          id,
			CommunityID: "c2",
			VisitorName: "Nila",
			Status:      status,
			ValidFrom:   validTo.Add(-2 * time.Hour),
			ValidTo:     validTo,
		}))
	}
	foreign("issued", community.GatePassIssued, now.Add(time.Hour))
	foreign("used", community.GatePassUsed, now.Add(time.Hour))
	foreign("expired", community.GatePassExpired, now.Add(time.Hour))
	foreign("overdue", community.GatePassIssued, now.Add(-time.Hour))

	for _, id := range []string{"issued", "used", "expired", "overdue", "missing"} {
		pass, err := env.service.Scan(ctx, guard, gatepass.Payload{CommunityID: "c2", PassID: id}.Encode())
		require.True(t, community.ErrForbidden.Has(err), "%s: %v", id, err)
		require.Equal(t, community.GatePass{}, pass, id)
	}

	_, err := env.service.Scan(ctx, guard, "garbage")
	require.True(t, community.ErrInvalidFormat.Has(err), "device must be released after a rejected scan")
}

func TestScanRequiresStaff(t *testing.T) {
	ctx := testcontext.New(t)
	env := newEnv(t)
	env.insertPass(ctx, t, "p1", community.GatePassIssued, now.Add(time.Hour))

	_, err := env.service.Scan(ctx, resident, payload("p1"))
	require.True(t, community.ErrForbidden.Has(err), err)

	_, _, err = env.service.ConfirmCheckIn(ctx, resident, "p1")
	require.True(t, community.ErrForbidden.Has(err), err)

	_, err = env.service.Scan(ctx, community.Session{}, payload("p1"))
	require.True(t, community.ErrUnauthorized.Has(err), err)
}

func TestResetScan(t *testing.T) {
	ctx := testcontext.New(t)
	env := newEnv(t)
	env.insertPass(ctx, t, "p1", community.GatePassIssued, now.Add(time.Hour))

	_, err := env.service.Scan(ctx, guard, payload("p1"))
	require.NoError(t, err)

	require.NoError(t, env.service.ResetScan(ctx, guard))

	_, err = env.service.Scan(ctx, guard, payload("p1"))
	require.NoError(t, err)
}

func TestConcurrentCheckIn(t *testing.T) {
	ctx := testcontext.New(t)
	env := newEnv(t)
	env.insertPass(ctx, t, "p1", community.GatePassIssued, now.Add(time.Hour))

	_, err := env.service.Scan(ctx, guard, payload("p1"))
	require.NoError(t, err)
	_, err = env.service.Scan(ctx, guard2, payload("p1"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, session := range []community.Session{guard, guard2} {
		i, session := i, session
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, results[i] = env.service.ConfirmCheckIn(ctx, session, "p1")
		}()
	}
	wg.Wait()

	var succeeded, used int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case community.ErrAlreadyUsed.Has(err):
			used++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, used)
	require.Equal(t, 1, countVisitors(ctx, t, env, "p1"))

	// both devices are released whatever the outcome.
	_, err = env.service.Scan(ctx, guard2, payload("p1"))
	require.True(t, community.ErrAlreadyUsed.Has(err), err)
}

func TestCheckInExpiredBetweenScanAndConfirm(t *testing.T) {
	ctx := testcontext.New(t)
	env := newEnv(t)
	env.insertPass(ctx, t, "p1", community.GatePassIssued, now.Add(time.Minute))

	_, err := env.service.Scan(ctx, guard, payload("p1"))
	require.NoError(t, err)

	env.service.TestSetNow(func() time.Time { return now.Add(2 * time.Minute) })
	_, _, err = env.service.ConfirmCheckIn(ctx, guard, "p1")
	require.True(t, community.ErrExpired.Has(err), err)

	pass, err := env.db.GatePasses().Get(ctx, "c1", "p1")
	require.NoError(t, err)
	require.Equal(t, community.GatePassIssued, pass.Status)
	require.Zero(t, countVisitors(ctx, t, env, "p1"))
}

func TestIssuePass(t *testing.T) {
	ctx := testcontext.New(t)
	env := newEnv(t)

	details := gatepass.VisitorDetails{VisitorName: " Meera ", VisitorPhone: "+911234567890", ApartmentID: "A-101", Purpose: "Dinner"}
	pass, err := env.service.IssuePass(ctx, resident, gatepass.IssueRequest{
		VisitorDetails: details,
		ValidFrom:      now,
		ValidTo:        now.Add(4 * time.Hour),
	})
	require.NoError(t, err)
	require.NotEmpty(t, pass.ID)
	require.Equal(t, "Meera", pass.VisitorName)
	require.Equal(t, community.GatePassIssued, pass.Status)
	require.Equal(t, "r1", pass.GeneratedBy)
	require.Len(t, pass.PINCode, 6)

	stored, err := env.db.GatePasses().Get(ctx, "c1", pass.ID)
	require.NoError(t, err)
	require.Equal(t, pass.PINCode, stored.PINCode)

	png, err := env.service.PassQR(ctx, resident, pass.ID)
	require.NoError(t, err)
	require.NotEmpty(t, png)

	other := community.Session{CommunityID: "c1", UserID: "r2", Role: "Resident"}
	_, err = env.service.PassQR(ctx, other, pass.ID)
	require.True(t, community.ErrForbidden.Has(err), err)

	_, err = env.service.IssuePass(ctx, guard, gatepass.IssueRequest{VisitorDetails: details, ValidFrom: now, ValidTo: now.Add(time.Hour)})
	require.True(t, community.ErrForbidden.Has(err), err)
}

func TestIssuePassValidation(t *testing.T) {
	ctx := testcontext.New(t)
	env := newEnv(t)

	details := gatepass.VisitorDetails{VisitorName: "Meera", VisitorPhone: "+911234567890", ApartmentID: "A-101"}
	for name, request := range map[string]gatepass.IssueRequest{
		"missing visitor":     {VisitorDetails: gatepass.VisitorDetails{ApartmentID: "A-101"}, ValidFrom: now, ValidTo: now.Add(time.Hour)},
		"missing window":      {VisitorDetails: details},
		"inverted window":     {VisitorDetails: details, ValidFrom: now.Add(2 * time.Hour), ValidTo: now.Add(time.Hour)},
		"already over":        {VisitorDetails: details, ValidFrom: now.Add(-2 * time.Hour), ValidTo: now.Add(-time.Hour)},
		"window is too large": {VisitorDetails: details, ValidFrom: now, ValidTo: now.Add(72 * time.Hour)},
	} {
		_, err := env.service.IssuePass(ctx, resident, request)
		require.True(t, community.ErrInvalidArgument.Has(err), "%s: %v", name, err)
	}
	require.Zero(t, env.db.Writes())
}

func TestRequests(t *testing.T) {
	ctx := testcontext.New(t)
	env := newEnv(t)

	details := gatepass.VisitorDetails{VisitorName: "Meera", VisitorPhone: "+911234567890", ApartmentID: "A-101", Purpose: "Visit"}
	approved, err := env.service.SubmitRequest(ctx, resident, details)
	require.NoError(t, err)
	require.Equal(t, community.RequestPending, approved.Status)

	require.Len(t, env.notifier.dispatches, 1)
	require.Equal(t, approved.ID, env.notifier.dispatches[0].PassID)
	require.Equal(t, "c1", env.notifier.dispatches[0].CommunityID)

	request, entry, err := env.service.ResolveRequest(ctx, guard, approved.ID, community.DecisionApprove)
	require.NoError(t, err)
	require.Equal(t, community.RequestApproved, request.Status)
	require.Equal(t, "s1", request.ProcessedBy)
	require.Equal(t, "Ravi", request.ProcessedByName)
	require.NotNil(t, request.ProcessedAt)
	require.Equal(t, community.VisitorCheckedIn, entry.Status)
	require.Equal(t, approved.ID, entry.RequestID)

	writes := env.db.Writes()
	_, _, err = env.service.ResolveRequest(ctx, guard2, approved.ID, community.DecisionApprove)
	require.True(t, community.ErrAlreadyProcessed.Has(err), err)
	_, _, err = env.service.ResolveRequest(ctx, guard2, approved.ID, community.DecisionReject)
	require.True(t, community.ErrAlreadyProcessed.Has(err), err)
	require.Equal(t, writes, env.db.Writes())

	rejected, err := env.service.SubmitRequest(ctx, resident, details)
	require.NoError(t, err)
	request, entry, err = env.service.ResolveRequest(ctx, guard, rejected.ID, community.DecisionReject)
	require.NoError(t, err)
	require.Equal(t, community.RequestRejected, request.Status)
	require.Equal(t, community.VisitorRejected, entry.Status)

	entries, err := env.db.Visitors().ListByRequest(ctx, "c1", rejected.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, _, err = env.service.ResolveRequest(ctx, guard, "missing", community.DecisionApprove)
	require.True(t, community.ErrNotFound.Has(err), err)

	_, _, err = env.service.ResolveRequest(ctx, guard, rejected.ID, community.Decision("maybe"))
	require.True(t, community.ErrInvalidArgument.Has(err), err)

	_, _, err = env.service.ResolveRequest(ctx, resident, rejected.ID, community.DecisionApprove)
	require.True(t, community.ErrForbidden.Has(err), err)
}

func TestSubmitRequestNotificationFailure(t *testing.T) {
	ctx := testcontext.New(t)
	env := newEnv(t)
	env.notifier.err = errors.New("fcm down")

	request, err := env.service.SubmitRequest(ctx, resident, gatepass.VisitorDetails{VisitorName: "Meera", VisitorPhone: "1", ApartmentID: "A-101"})
	require.NoError(t, err)

	stored, err := env.db.GatePassRequests().Get(ctx, "c1", request.ID)
	require.NoError(t, err)
	require.Equal(t, community.RequestPending, stored.Status)
}
