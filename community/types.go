// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package community

import (
	"strings"
	"time"
)

// TokenField identifies the account document field that stores push tokens.
type TokenField int

const (
	// TokenFieldPrimary is the `tokens` field.
	TokenFieldPrimary TokenField = iota
	// TokenFieldLegacy is the older `fcmTokens` field.
	TokenFieldLegacy
)

// Name returns the document field name.
func (field TokenField) Name() string {
	if field == TokenFieldLegacy {
		return "fcmTokens"
	}
	return "tokens"
}

// String implements fmt.Stringer.
func (field TokenField) String() string { return field.Name() }

// ResolveTokenField picks the field an account document uses for its tokens.
// It is resolved once per read and reused for every write that follows.
func ResolveTokenField(tokens, fcmTokens []string) (TokenField, []string) {
	if len(tokens) > 0 {
		return TokenFieldPrimary, tokens
	}
	if len(fcmTokens) > 0 {
		return TokenFieldLegacy, fcmTokens
	}
	return TokenFieldPrimary, nil
}

// Account is a user or staff account of a community.
type Account struct {
	ID          string
	CommunityID string
	Name        string
	Role        string

	Tokens     []string
	TokenField TokenField
}

// GatePassStatus is the stored status of a gate pass.
type GatePassStatus string

const (
	// GatePassIssued is a pass that may still be used.
	GatePassIssued GatePassStatus = "issued"
	// GatePassUsed is a pass that was checked in.
	GatePassUsed GatePassStatus = "used"
	// GatePassExpired is a pass persisted as expired.
	GatePassExpired GatePassStatus = "expired"
)

// GatePass is a time-bounded single-use visitor entry credential.
type GatePass struct {
	ID          string `firestore:"-" json:"id"`
	CommunityID string `firestore:"-" json:"communityId"`

	VisitorName     string `firestore:"visitorName" json:"visitorName"`
	VisitorPhone    string `firestore:"visitorPhone" json:"visitorPhone"`
	ApartmentID     string `firestore:"apartmentId" json:"apartmentId"`
	GeneratedBy     string `firestore:"generatedBy" json:"generatedBy"`
	GeneratedByName string `firestore:"generatedByName" json:"generatedByName"`
	Purpose         string `firestore:"purpose" json:"purpose"`
	VehicleNumber   string `firestore:"vehicleNumber" json:"vehicleNumber,omitempty"`
	PINCode         string `firestore:"pinCode" json:"pinCode"`

	ValidFrom time.Time      `firestore:"validFrom" json:"validFrom"`
	ValidTo   time.Time      `firestore:"validTo" json:"validTo"`
	Status    GatePassStatus `firestore:"status" json:"status"`

	CreatedAt       time.Time  `firestore:"createdAt" json:"createdAt"`
	UpdatedAt       *time.Time `firestore:"updatedAt,omitempty" json:"updatedAt,omitempty"`
	UsedAt          *time.Time `firestore:"usedAt,omitempty" json:"usedAt,omitempty"`
	CheckedInBy     string     `firestore:"checkedInBy,omitempty" json:"checkedInBy,omitempty"`
	CheckedInByName string     `firestore:"checkedInByName,omitempty" json:"checkedInByName,omitempty"`
}

// Classify reports whether the pass may be checked in at now.
//
// A stored `used` status wins over everything else. A stored `expired`
// status, or now past ValidTo, is expired whatever the stored status says.
func (pass *GatePass) Classify(now time.Time) error {
	switch {
	case pass.Status == GatePassUsed:
		return ErrAlreadyUsed.New("gate pass %q has already been used", pass.ID)
	case pass.Status == GatePassExpired || now.After(pass.ValidTo):
		return ErrExpired.New("gate pass %q expired at %s", pass.ID, pass.ValidTo.Format(time.RFC3339))
	}
	return nil
}

// RequestStatus is the status of a gate pass request.
type RequestStatus string

const (
	// RequestPending awaits a security decision.
	RequestPending RequestStatus = "pending"
	// RequestApproved was let in.
	RequestApproved RequestStatus = "approved"
	// RequestRejected was turned away.
	RequestRejected RequestStatus = "rejected"
)

// GatePassRequest is a walk-in visitor waiting for security approval.
type GatePassRequest struct {
	ID          string `firestore:"-" json:"id"`
	CommunityID string `firestore:"-" json:"communityId"`

	VisitorName     string `firestore:"visitorName" json:"visitorName"`
	VisitorPhone    string `firestore:"visitorPhone" json:"visitorPhone"`
	ApartmentID     string `firestore:"apartmentId" json:"apartmentId"`
	Purpose         string `firestore:"purpose" json:"purpose"`
	VehicleNumber   string `firestore:"vehicleNumber" json:"vehicleNumber,omitempty"`
	RequestedBy     string `firestore:"requestedBy" json:"requestedBy"`
	RequestedByName string `firestore:"requestedByName" json:"requestedByName"`

	Status    RequestStatus `firestore:"status" json:"status"`
	CreatedAt time.Time     `firestore:"createdAt" json:"createdAt"`

	ProcessedAt     *time.Time `firestore:"processedAt,omitempty" json:"processedAt,omitempty"`
	ProcessedBy     string     `firestore:"processedBy,omitempty" json:"processedBy,omitempty"`
	ProcessedByName string     `firestore:"processedByName,omitempty" json:"processedByName,omitempty"`
}

// Decision is a security decision on a gate pass request.
type Decision string

const (
	// DecisionApprove approves a request.
	DecisionApprove Decision = "approve"
	// DecisionReject rejects a request.
	DecisionReject Decision = "reject"
)

// VisitorStatus is the outcome recorded in the visitor log.
type VisitorStatus string

const (
	// VisitorCheckedIn is an admitted visitor.
	VisitorCheckedIn VisitorStatus = "checked-in"
	// VisitorRejected is a visitor turned away.
	VisitorRejected VisitorStatus = "rejected"
)

// VisitorLogEntry is an append-only audit record of a visitor event.
type VisitorLogEntry struct {
	ID          string `firestore:"-" json:"id"`
	CommunityID string `firestore:"-" json:"communityId"`

	GatePassID string `firestore:"gatePassId,omitempty" json:"gatePassId,omitempty"`
	RequestID  string `firestore:"requestId,omitempty" json:"requestId,omitempty"`

	VisitorName   string `firestore:"visitorName" json:"visitorName"`
	VisitorPhone  string `firestore:"visitorPhone" json:"visitorPhone"`
	ApartmentID   string `firestore:"apartmentId" json:"apartmentId"`
	Purpose       string `firestore:"purpose" json:"purpose"`
	VehicleNumber string `firestore:"vehicleNumber" json:"vehicleNumber,omitempty"`
	HostID        string `firestore:"hostId" json:"hostId"`
	HostName      string `firestore:"hostName" json:"hostName"`

	Status       VisitorStatus `firestore:"status" json:"status"`
	OperatorID   string        `firestore:"operatorId" json:"operatorId"`
	OperatorName string        `firestore:"operatorName" json:"operatorName"`
	EntryTime    time.Time     `firestore:"entryTime" json:"entryTime"`
}

// Notice is a community announcement.
type Notice struct {
	ID          string `firestore:"-" json:"id"`
	CommunityID string `firestore:"-" json:"communityId"`

	Title         string    `firestore:"title" json:"title"`
	Body          string    `firestore:"body" json:"body"`
	Attachments   []string  `firestore:"attachments" json:"attachments,omitempty"`
	CreatedBy     string    `firestore:"createdBy" json:"createdBy"`
	CreatedByName string    `firestore:"createdByName" json:"createdByName"`
	CreatedAt     time.Time `firestore:"createdAt" json:"createdAt"`
}

// Session is the authenticated caller of an operation.
type Session struct {
	CommunityID string
	UserID      string
	Name        string
	Role        string
	DeviceID    string
}

// RoleMatcher matches account roles against a configured role name.
type RoleMatcher struct {
	Role          string
	CaseSensitive bool
}

// Match reports whether role is one of Variants. Stores filter on Variants,
// so every store returns exactly the accounts Match accepts.
func (matcher RoleMatcher) Match(role string) bool {
	for _, variant := range matcher.Variants() {
		if role == variant {
			return true
		}
	}
	return false
}

// Variants returns the spellings that match: the configured role, and unless
// CaseSensitive also its lower, upper and title case forms. Other spellings,
// such as mixed case or surrounding whitespace, do not match.
func (matcher RoleMatcher) Variants() []string {
	if matcher.CaseSensitive || matcher.Role == "" {
		return []string{matcher.Role}
	}
	lower := strings.ToLower(matcher.Role)
	candidates := []string{
		matcher.Role,
		lower,
		strings.ToUpper(matcher.Role),
		strings.ToUpper(lower[:1]) + lower[1:],
	}

	variants := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		if !seen[candidate] {
			seen[candidate] = true
			variants = append(variants, candidate)
		}
	}
	return variants
}

// CheckInEntry is the visitor log entry recorded when pass is checked in.
func CheckInEntry(pass GatePass, checkIn CheckIn) VisitorLogEntry {
	return VisitorLogEntry{
		CommunityID:   pass.CommunityID,
		GatePassID:    pass.ID,
		VisitorName:   pass.VisitorName,
		VisitorPhone:  pass.VisitorPhone,
		ApartmentID:   pass.ApartmentID,
		Purpose:       pass.Purpose,
		VehicleNumber: pass.VehicleNumber,
		HostID:        pass.GeneratedBy,
		HostName:      pass.GeneratedByName,
		Status:        VisitorCheckedIn,
		OperatorID:    checkIn.OperatorID,
		OperatorName:  checkIn.OperatorName,
		EntryTime:     checkIn.At,
	}
}

// RequestEntry is the visitor log entry recorded when request is processed.
func RequestEntry(request GatePassRequest, process ProcessRequest) VisitorLogEntry {
	status := VisitorCheckedIn
	if process.Status == RequestRejected {
		status = VisitorRejected
	}
	return VisitorLogEntry{
		CommunityID:   request.CommunityID,
		RequestID:     request.ID,
		VisitorName:   request.VisitorName,
		VisitorPhone:  request.VisitorPhone,
		ApartmentID:   request.ApartmentID,
		Purpose:       request.Purpose,
		VehicleNumber: request.VehicleNumber,
		HostID:        request.RequestedBy,
		HostName:      request.RequestedByName,
		Status:        status,
		OperatorID:    process.OperatorID,
		OperatorName:  process.OperatorName,
		EntryTime:     process.At,
	}
}

// MarkUsed applies checkIn to pass.
func (pass *GatePass) MarkUsed(checkIn CheckIn) {
	at := checkIn.At
	pass.Status = GatePassUsed
	pass.UpdatedAt = &at
	pass.UsedAt = &at
	pass.CheckedInBy = checkIn.OperatorID
	pass.CheckedInByName = checkIn.OperatorName
}

// MarkProcessed applies process to request.
func (request *GatePassRequest) MarkProcessed(process ProcessRequest) {
	at := process.At
	request.Status = process.Status
	request.ProcessedAt = &at
	request.ProcessedBy = process.OperatorID
	request.ProcessedByName = process.OperatorName
}
