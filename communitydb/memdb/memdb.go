// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package memdb implements community.DB in memory for development and tests.
package memdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"storj.io/common/uuid"

	"github.com/StorXNetwork/gatehouse/community"
)

// ensures that DB implements community.DB.
var _ community.DB = (*DB)(nil)

// UserDoc is the stored shape of an account document.
type UserDoc struct {
	Name      string
	Role      string
	Tokens    []string
	FCMTokens []string
}

type communityData struct {
	users    map[string]*UserDoc
	passes   map[string]community.GatePass
	requests map[string]community.GatePassRequest
	visitors []community.VisitorLogEntry
	notices  map[string]community.Notice
}

// DB is an in-memory community database. A single mutex serializes every
// operation, which makes each of them transactional.
type DB struct {
	mu          sync.Mutex
	communities map[string]*communityData
	writes      int
}

// New creates an empty in-memory database.
func New() *DB {
	return &DB{communities: map[string]*communityData{}}
}

func (db *DB) community(id string) *communityData {
	data, ok := db.communities[id]
	if !ok {
		data = &communityData{
			users:    map[string]*UserDoc{},
			passes:   map[string]community.GatePass{},
			requests: map[string]community.GatePassRequest{},
			notices:  map[string]community.Notice{},
		}
		db.communities[id] = data
	}
	return data
}

// PutUser stores an account document as is.
func (db *DB) PutUser(communityID, userID string, doc UserDoc) {
	db.mu.Lock()
	defer db.mu.Unlock()
	stored := doc
	stored.Tokens = append([]string(nil), doc.Tokens...)
	stored.FCMTokens = append([]string(nil), doc.FCMTokens...)
	db.community(communityID).users[userID] = &stored
}

// User returns a copy of an account document.
func (db *DB) User(communityID, userID string) (UserDoc, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	doc, ok := db.community(communityID).users[userID]
	if !ok {
		return UserDoc{}, false
	}
	copied := *doc
	copied.Tokens = append([]string(nil), doc.Tokens...)
	copied.FCMTokens = append([]string(nil), doc.FCMTokens...)
	return copied, true
}

// Writes returns the number of document writes performed so far.
func (db *DB) Writes() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.writes
}

// Accounts implements community.DB.
func (db *DB) Accounts() community.Accounts { return &accounts{db: db} }

// GatePasses implements community.DB.
func (db *DB) GatePasses() community.GatePasses { return &gatePasses{db: db} }

// GatePassRequests implements community.DB.
func (db *DB) GatePassRequests() community.GatePassRequests { return &gatePassRequests{db: db} }

// Visitors implements community.DB.
func (db *DB) Visitors() community.Visitors { return &visitors{db: db} }

// Notices implements community.DB.
func (db *DB) Notices() community.Notices { return &notices{db: db} }

// Close implements community.DB.
func (db *DB) Close() error { return nil }

func (db *DB) appendVisitor(entry community.VisitorLogEntry) (community.VisitorLogEntry, error) {
	id, err := uuid.New()
	if err != nil {
		return community.VisitorLogEntry{}, community.ErrInternal.Wrap(err)
	}
	entry.ID = id.String()
	data := db.community(entry.CommunityID)
	data.visitors = append(data.visitors, entry)
	db.writes++
	return entry, nil
}

type accounts struct{ db *DB }

func toAccount(communityID, userID string, doc *UserDoc) community.Account {
	field, tokens := community.ResolveTokenField(doc.Tokens, doc.FCMTokens)
	return community.Account{
		ID:          userID,
		CommunityID: communityID,
		Name:        doc.Name,
		Role:        doc.Role,
		Tokens:      append([]string(nil), tokens...),
		TokenField:  field,
	}
}

func (a *accounts) Get(ctx context.Context, communityID, userID string) (community.Account, error) {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	doc, ok := a.db.community(communityID).users[userID]
	if !ok {
		return community.Account{}, community.ErrNotFound.New("user %q not found in community %q", userID, communityID)
	}
	return toAccount(communityID, userID, doc), nil
}

func (a *accounts) ListByRole(ctx context.Context, communityID string, matcher community.RoleMatcher) ([]community.Account, error) {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	var list []community.Account
	for id, doc := range a.db.community(communityID).users {
		if matcher.Match(doc.Role) {
			list = append(list, toAccount(communityID, id, doc))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func removeAll(list, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, token := range remove {
		drop[token] = true
	}
	kept := list[:0:0]
	for _, token := range list {
		if !drop[token] {
			kept = append(kept, token)
		}
	}
	return kept
}

func (a *accounts) RemoveTokens(ctx context.Context, communityID, userID string, field community.TokenField, tokens []string) error {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	doc, ok := a.db.community(communityID).users[userID]
	if !ok {
		return community.ErrNotFound.New("user %q not found in community %q", userID, communityID)
	}
	if field == community.TokenFieldLegacy {
		doc.FCMTokens = removeAll(doc.FCMTokens, tokens)
	} else {
		doc.Tokens = removeAll(doc.Tokens, tokens)
	}
	a.db.writes++
	return nil
}

func (a *accounts) AddToken(ctx context.Context, communityID, userID, token string) error {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	doc, ok := a.db.community(communityID).users[userID]
	if !ok {
		return community.ErrNotFound.New("user %q not found in community %q", userID, communityID)
	}

	field, current := community.ResolveTokenField(doc.Tokens, doc.FCMTokens)
	for _, existing := range current {
		if existing == token {
			return nil
		}
	}
	if field == community.TokenFieldLegacy {
		doc.FCMTokens = append(doc.FCMTokens, token)
	} else {
		doc.Tokens = append(doc.Tokens, token)
	}
	a.db.writes++
	return nil
}

type gatePasses struct{ db *DB }

func (g *gatePasses) Get(ctx context.Context, communityID, passID string) (community.GatePass, error) {
	g.db.mu.Lock()
	defer g.db.mu.Unlock()
	pass, ok := g.db.community(communityID).passes[passID]
	if !ok {
		return community.GatePass{}, community.ErrNotFound.New("gate pass %q not found", passID)
	}
	return pass, nil
}

func (g *gatePasses) Insert(ctx context.Context, pass community.GatePass) error {
	g.db.mu.Lock()
	defer g.db.mu.Unlock()
	data := g.db.community(pass.CommunityID)
	if _, ok := data.passes[pass.ID]; ok {
		return community.ErrInvalidArgument.New("gate pass %q already exists", pass.ID)
	}
	data.passes[pass.ID] = pass
	g.db.writes++
	return nil
}

func (g *gatePasses) CheckIn(ctx context.Context, communityID, passID string, checkIn community.CheckIn) (community.GatePass, community.VisitorLogEntry, error) {
	g.db.mu.Lock()
	defer g.db.mu.Unlock()
	data := g.db.community(communityID)
	pass, ok := data.passes[passID]
	if !ok {
		return community.GatePass{}, community.VisitorLogEntry{}, community.ErrNotFound.New("gate pass %q not found", passID)
	}
	if err := pass.Classify(checkIn.At); err != nil {
		return community.GatePass{}, community.VisitorLogEntry{}, err
	}

	pass.MarkUsed(checkIn)
	entry, err := g.db.appendVisitor(community.CheckInEntry(pass, checkIn))
	if err != nil {
		return community.GatePass{}, community.VisitorLogEntry{}, err
	}
	data.passes[passID] = pass
	g.db.writes++
	return pass, entry, nil
}

func (g *gatePasses) ListOverdue(ctx context.Context, now time.Time, limit int) ([]community.GatePass, error) {
	g.db.mu.Lock()
	defer g.db.mu.Unlock()
	var overdue []community.GatePass
	for _, data := range g.db.communities {
		for _, pass := range data.passes {
			if pass.Status == community.GatePassIssued && pass.ValidTo.Before(now) {
				overdue = append(overdue, pass)
			}
		}
	}
	sort.Slice(overdue, func(i, j int) bool { return overdue[i].ValidTo.Before(overdue[j].ValidTo) })
	if limit > 0 && len(overdue) > limit {
		overdue = overdue[:limit]
	}
	return overdue, nil
}

func (g *gatePasses) MarkExpired(ctx context.Context, communityID, passID string, now time.Time) (bool, error) {
	g.db.mu.Lock()
	defer g.db.mu.Unlock()
	data := g.db.community(communityID)
	pass, ok := data.passes[passID]
	if !ok || pass.Status != community.GatePassIssued || !pass.ValidTo.Before(now) {
		return false, nil
	}
	pass.Status = community.GatePassExpired
	pass.UpdatedAt = &now
	data.passes[passID] = pass
	g.db.writes++
	return true, nil
}

type gatePassRequests struct{ db *DB }

func (r *gatePassRequests) Get(ctx context.Context, communityID, requestID string) (community.GatePassRequest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	request, ok := r.db.community(communityID).requests[requestID]
	if !ok {
		return community.GatePassRequest{}, community.ErrNotFound.New("gate pass request %q not found", requestID)
	}
	return request, nil
}

func (r *gatePassRequests) Insert(ctx context.Context, request community.GatePassRequest) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	data := r.db.community(request.CommunityID)
	if _, ok := data.requests[request.ID]; ok {
		return community.ErrInvalidArgument.New("gate pass request %q already exists", request.ID)
	}
	data.requests[request.ID] = request
	r.db.writes++
	return nil
}

func (r *gatePassRequests) Process(ctx context.Context, communityID, requestID string, process community.ProcessRequest) (community.GatePassRequest, community.VisitorLogEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	data := r.db.community(communityID)
	request, ok := data.requests[requestID]
	if !ok {
		return community.GatePassRequest{}, community.VisitorLogEntry{}, community.ErrNotFound.New("gate pass request %q not found", requestID)
	}
	if request.Status != community.RequestPending {
		return request, community.VisitorLogEntry{}, community.ErrAlreadyProcessed.New("gate pass request %q is already %s", requestID, request.Status)
	}

	request.MarkProcessed(process)
	entry, err := r.db.appendVisitor(community.RequestEntry(request, process))
	if err != nil {
		return community.GatePassRequest{}, community.VisitorLogEntry{}, err
	}
	data.requests[requestID] = request
	r.db.writes++
	return request, entry, nil
}

type visitors struct{ db *DB }

func (v *visitors) list(communityID string, match func(community.VisitorLogEntry) bool) []community.VisitorLogEntry {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	var entries []community.VisitorLogEntry
	for _, entry := range v.db.community(communityID).visitors {
		if match(entry) {
			entries = append(entries, entry)
		}
	}
	return entries
}

func (v *visitors) ListByGatePass(ctx context.Context, communityID, passID string) ([]community.VisitorLogEntry, error) {
	return v.list(communityID, func(entry community.VisitorLogEntry) bool { return entry.GatePassID == passID }), nil
}

func (v *visitors) ListByRequest(ctx context.Context, communityID, requestID string) ([]community.VisitorLogEntry, error) {
	return v.list(communityID, func(entry community.VisitorLogEntry) bool { return entry.RequestID == requestID }), nil
}

type notices struct{ db *DB }

func (n *notices) Get(ctx context.Context, communityID, noticeID string) (community.Notice, error) {
	n.db.mu.Lock()
	defer n.db.mu.Unlock()
	notice, ok := n.db.community(communityID).notices[noticeID]
	if !ok {
		return community.Notice{}, community.ErrNotFound.New("notice %q not found", noticeID)
	}
	return notice, nil
}

func (n *notices) Insert(ctx context.Context, notice community.Notice) error {
	n.db.mu.Lock()
	defer n.db.mu.Unlock()
	n.db.community(notice.CommunityID).notices[notice.ID] = notice
	n.db.writes++
	return nil
}

func (n *notices) Delete(ctx context.Context, communityID, noticeID string) error {
	n.db.mu.Lock()
	defer n.db.mu.Unlock()
	data := n.db.community(communityID)
	if _, ok := data.notices[noticeID]; !ok {
		return community.ErrNotFound.New("notice %q not found", noticeID)
	}
	delete(data.notices, noticeID)
	n.db.writes++
	return nil
}
