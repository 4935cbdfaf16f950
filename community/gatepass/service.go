// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package gatepass

import (
	"context"
	"strings"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/uuid"

	"github.com/StorXNetwork/gatehouse/community"
	"github.com/StorXNetwork/gatehouse/community/pushnotifications"
)

var mon = monkit.Package()

// Error is the error class for gate pass failures.
var Error = errs.Class("gatepass")

// ScanGuard allows one unfinished scan per operator device.
type ScanGuard interface {
	// Acquire marks the device as scanning. It returns false when the device
	// already holds an unfinished scan.
	Acquire(ctx context.Context, deviceID string) (bool, error)
	// Release clears the device's scan.
	Release(ctx context.Context, deviceID string) error
}

// Notifier notifies the security staff of a community.
type Notifier interface {
	DispatchToCommunityRole(ctx context.Context, dispatch pushnotifications.SecurityDispatch) (pushnotifications.RoleResult, error)
}

// Service implements gate pass issue, scan, check-in and the request flow.
//
// architecture: Service
type Service struct {
	log       *zap.Logger
	db        community.DB
	validator *Validator
	guard     ScanGuard
	notifier  Notifier
	roles     community.Roles
	config    Config

	nowFn func() time.Time
}

// NewService creates a new gate pass service.
func NewService(log *zap.Logger, db community.DB, guard ScanGuard, notifier Notifier, roles community.Roles, config Config) *Service {
	return &Service{
		log:       log,
		db:        db,
		validator: NewValidator(db.GatePasses()),
		guard:     guard,
		notifier:  notifier,
		roles:     roles,
		config:    config,
		nowFn:     time.Now,
	}
}

// TestSetNow sets the clock used by the service.
func (service *Service) TestSetNow(nowFn func() time.Time) {
	service.nowFn = nowFn
	service.validator.TestSetNow(nowFn)
}

func (service *Service) staff() []community.RoleMatcher {
	return []community.RoleMatcher{service.roles.SecurityMatcher(), service.roles.AdminMatcher()}
}

func deviceKey(session community.Session) string {
	if session.DeviceID != "" {
		return session.CommunityID + "/" + session.DeviceID
	}
	return session.CommunityID + "/user/" + session.UserID
}

// Scan resolves a scanned payload for an operator device. A valid pass keeps
// the device's scan open until ConfirmCheckIn or ResetScan; any rejection
// releases it so the operator can scan again.
func (service *Service) Scan(ctx context.Context, session community.Session, raw string) (_ community.GatePass, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := community.Require(session, service.staff()...); err != nil {
		return community.GatePass{}, err
	}

	device := deviceKey(session)
	acquired, err := service.guard.Acquire(ctx, device)
	if err != nil {
		return community.GatePass{}, community.Internal(err)
	}
	if !acquired {
		return community.GatePass{}, community.ErrScanInProgress.New("finish or reset the current scan first")
	}

	pass, err := service.validator.Resolve(ctx, session.CommunityID, raw)
	if err != nil {
		service.release(ctx, device)
		service.log.Info("scan rejected",
			zap.String("community_id", session.CommunityID),
			zap.String("operator_id", session.UserID),
			zap.String("pass_id", pass.ID),
			zap.Error(err))
		return pass, err
	}
	return pass, nil
}

// ResetScan clears the operator device's scan.
func (service *Service) ResetScan(ctx context.Context, session community.Session) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := community.Require(session, service.staff()...); err != nil {
		return err
	}
	return community.Internal(service.guard.Release(ctx, deviceKey(session)))
}

func (service *Service) release(ctx context.Context, device string) {
	if err := service.guard.Release(ctx, device); err != nil {
		service.log.Warn("failed to release scan", zap.String("device", device), zap.Error(err))
	}
}

// ConfirmCheckIn marks the pass used and records the visitor in one
// transaction. The pass is classified again inside the transaction, so a
// concurrent check-in on another device fails with ErrAlreadyUsed.
func (service *Service) ConfirmCheckIn(ctx context.Context, session community.Session, passID string) (_ community.GatePass, _ community.VisitorLogEntry, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := community.Require(session, service.staff()...); err != nil {
		return community.GatePass{}, community.VisitorLogEntry{}, err
	}
	if strings.TrimSpace(passID) == "" {
		return community.GatePass{}, community.VisitorLogEntry{}, community.ErrInvalidArgument.New("passId is required")
	}
	defer service.release(ctx, deviceKey(session))

	pass, entry, err := service.db.GatePasses().CheckIn(ctx, session.CommunityID, passID, community.CheckIn{
		OperatorID:   session.UserID,
		OperatorName: session.Name,
		At:           service.nowFn(),
	})
	if err != nil {
		return community.GatePass{}, community.VisitorLogEntry{}, community.Internal(err)
	}

	service.log.Info("visitor checked in",
		zap.String("community_id", session.CommunityID),
		zap.String("pass_id", passID),
		zap.String("visitor_log_id", entry.ID),
		zap.String("operator_id", session.UserID))
	return pass, entry, nil
}

// VisitorDetails describes a visitor.
type VisitorDetails struct {
	VisitorName   string `json:"visitorName"`
	VisitorPhone  string `json:"visitorPhone"`
	ApartmentID   string `json:"apartmentId"`
	Purpose       string `json:"purpose"`
	VehicleNumber string `json:"vehicleNumber"`
}

func (details *VisitorDetails) normalize() error {
	details.VisitorName = strings.TrimSpace(details.VisitorName)
	details.VisitorPhone = strings.TrimSpace(details.VisitorPhone)
	details.ApartmentID = strings.TrimSpace(details.ApartmentID)
	details.Purpose = strings.TrimSpace(details.Purpose)
	details.VehicleNumber = strings.TrimSpace(details.VehicleNumber)

	var missing []string
	if details.VisitorName == "" {
		missing = append(missing, "visitorName")
	}
	if details.VisitorPhone == "" {
		missing = append(missing, "visitorPhone")
	}
	if details.ApartmentID == "" {
		missing = append(missing, "apartmentId")
	}
	if len(missing) > 0 {
		return community.ErrInvalidArgument.New("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// IssueRequest describes a gate pass a resident issues for a visitor.
type IssueRequest struct {
	VisitorDetails
	ValidFrom time.Time `json:"validFrom"`
	ValidTo   time.Time `json:"validTo"`
}

// IssuePass stores a new issued gate pass hosted by the session user.
func (service *Service) IssuePass(ctx context.Context, session community.Session, request IssueRequest) (_ community.GatePass, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := community.Require(session, service.roles.ResidentMatcher(), service.roles.AdminMatcher()); err != nil {
		return community.GatePass{}, err
	}
	if err := request.normalize(); err != nil {
		return community.GatePass{}, err
	}

	now := service.nowFn()
	switch {
	case request.ValidFrom.IsZero() || request.ValidTo.IsZero():
		return community.GatePass{}, community.ErrInvalidArgument.New("validFrom and validTo are required")
	case request.ValidTo.Before(request.ValidFrom):
		return community.GatePass{}, community.ErrInvalidArgument.New("validTo must not be before validFrom")
	case !request.ValidTo.After(now):
		return community.GatePass{}, community.ErrInvalidArgument.New("validTo is in the past")
	case service.config.MaxValidity > 0 && request.ValidTo.Sub(request.ValidFrom) > service.config.MaxValidity:
		return community.GatePass{}, community.ErrInvalidArgument.New("validity window exceeds %s", service.config.MaxValidity)
	}

	id, err := uuid.New()
	if err != nil {
		return community.GatePass{}, community.Internal(err)
	}
	pin, err := GeneratePIN(service.config.PINDigits)
	if err != nil {
		return community.GatePass{}, community.Internal(err)
	}

	pass := community.GatePass{
		ID:              id.String(),
		CommunityID:     session.CommunityID,
		VisitorName:     request.VisitorName,
		VisitorPhone:    request.VisitorPhone,
		ApartmentID:     request.ApartmentID,
		GeneratedBy:     session.UserID,
		GeneratedByName: session.Name,
		Purpose:         request.Purpose,
		VehicleNumber:   request.VehicleNumber,
		PINCode:         pin,
		ValidFrom:       request.ValidFrom,
		ValidTo:         request.ValidTo,
		Status:          community.GatePassIssued,
		CreatedAt:       now,
	}
	if err := service.db.GatePasses().Insert(ctx, pass); err != nil {
		return community.GatePass{}, community.Internal(err)
	}

	service.log.Info("gate pass issued",
		zap.String("community_id", pass.CommunityID),
		zap.String("pass_id", pass.ID),
		zap.String("generated_by", pass.GeneratedBy),
		zap.Time("valid_to", pass.ValidTo))
	return pass, nil
}

// PassQR renders the QR code of a pass. Only its host and staff may fetch it.
func (service *Service) PassQR(ctx context.Context, session community.Session, passID string) (_ []byte, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := community.Require(session); err != nil {
		return nil, err
	}

	pass, err := service.db.GatePasses().Get(ctx, session.CommunityID, passID)
	if err != nil {
		return nil, community.Internal(err)
	}
	if pass.GeneratedBy != session.UserID {
		if err := community.Require(session, service.staff()...); err != nil {
			return nil, err
		}
	}

	png, err := EncodeQR(Payload{CommunityID: session.CommunityID, PassID: passID}, service.config.QRSize)
	return png, community.Internal(err)
}

// SubmitRequest stores a pending gate pass request and notifies security.
// A failed notification does not fail the request.
func (service *Service) SubmitRequest(ctx context.Context, session community.Session, details VisitorDetails) (_ community.GatePassRequest, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := community.Require(session); err != nil {
		return community.GatePassRequest{}, err
	}
	if err := details.normalize(); err != nil {
		return community.GatePassRequest{}, err
	}

	id, err := uuid.New()
	if err != nil {
		return community.GatePassRequest{}, community.Internal(err)
	}

	request := community.GatePassRequest{
		ID:              id.String(),
		CommunityID:     session.CommunityID,
		VisitorName:     details.VisitorName,
		VisitorPhone:    details.VisitorPhone,
		ApartmentID:     details.ApartmentID,
		Purpose:         details.Purpose,
		VehicleNumber:   details.VehicleNumber,
		RequestedBy:     session.UserID,
		RequestedByName: session.Name,
		Status:          community.RequestPending,
		CreatedAt:       service.nowFn(),
	}
	if err := service.db.GatePassRequests().Insert(ctx, request); err != nil {
		return community.GatePassRequest{}, community.Internal(err)
	}

	if service.notifier != nil {
		_, err := service.notifier.DispatchToCommunityRole(ctx, pushnotifications.SecurityDispatch{
			CommunityID: request.CommunityID,
			PassID:      request.ID,
			Title:       "New gate pass request",
			Body:        request.VisitorName + " is waiting for approval at the gate",
			ExtraData: map[string]interface{}{
				"type":        "gatePassRequest",
				"apartmentId": request.ApartmentID,
			},
		})
		if err != nil {
			service.log.Warn("failed to notify security about gate pass request",
				zap.String("request_id", request.ID),
				zap.Error(err))
		}
	}
	return request, nil
}

// ResolveRequest approves or rejects a pending request. A request that was
// already processed is left untouched and ErrAlreadyProcessed is returned.
func (service *Service) ResolveRequest(ctx context.Context, session community.Session, requestID string, decision community.Decision) (_ community.GatePassRequest, _ community.VisitorLogEntry, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := community.Require(session, service.staff()...); err != nil {
		return community.GatePassRequest{}, community.VisitorLogEntry{}, err
	}
	if strings.TrimSpace(requestID) == "" {
		return community.GatePassRequest{}, community.VisitorLogEntry{}, community.ErrInvalidArgument.New("requestId is required")
	}

	var status community.RequestStatus
	switch decision {
	case community.DecisionApprove:
		status = community.RequestApproved
	case community.DecisionReject:
		status = community.RequestRejected
	default:
		return community.GatePassRequest{}, community.VisitorLogEntry{}, community.ErrInvalidArgument.New("unknown decision %q", decision)
	}

	request, entry, err := service.db.GatePassRequests().Process(ctx, session.CommunityID, requestID, community.ProcessRequest{
		Status:       status,
		OperatorID:   session.UserID,
		OperatorName: session.Name,
		At:           service.nowFn(),
	})
	if err != nil {
		return request, community.VisitorLogEntry{}, community.Internal(err)
	}

	service.log.Info("gate pass request processed",
		zap.String("community_id", session.CommunityID),
		zap.String("request_id", requestID),
		zap.String("status", string(status)),
		zap.String("operator_id", session.UserID))
	return request, entry, nil
}
