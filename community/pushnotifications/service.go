// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package pushnotifications

import (
	"context"
	"strings"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/StorXNetwork/gatehouse/community"
)

var mon = monkit.Package()

// ErrDispatch is the error class for dispatch failures.
var ErrDispatch = errs.Class("push dispatch")

const (
	messageNoTokens   = "No tokens found"
	messageNoSecurity = "No security personnel found"
)

// Service dispatches push notifications to community accounts and keeps
// their token lists free of permanently invalid tokens.
//
// architecture: Service
type Service struct {
	log        *zap.Logger
	accounts   community.Accounts
	sender     Sender
	reconciler *Reconciler
	roles      community.Roles
}

// NewService creates a new push dispatch service.
func NewService(log *zap.Logger, accounts community.Accounts, sender Sender, roles community.Roles) *Service {
	return &Service{
		log:        log,
		accounts:   accounts,
		sender:     sender,
		reconciler: NewReconciler(log.Named("reconciler"), accounts),
		roles:      roles,
	}
}

// DispatchToUser sends a notification to every device of one account and
// removes the tokens the provider rejected permanently.
func (service *Service) DispatchToUser(ctx context.Context, dispatch UserDispatch) (_ UserResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := required(
		"communityId", dispatch.CommunityID,
		"userId", dispatch.UserID,
		"title", dispatch.Title,
		"body", dispatch.Body,
	); err != nil {
		return UserResult{}, err
	}

	data, err := CoerceData(dispatch.ExtraData)
	if err != nil {
		return UserResult{}, community.ErrInvalidArgument.Wrap(err)
	}

	account, err := service.accounts.Get(ctx, dispatch.CommunityID, dispatch.UserID)
	if err != nil {
		return UserResult{}, community.Internal(err)
	}

	tokens := dedupe(account.Tokens)
	if len(tokens) == 0 {
		service.log.Info("no tokens found for user",
			zap.String("community_id", dispatch.CommunityID),
			zap.String("user_id", dispatch.UserID))
		return UserResult{Success: false, Message: messageNoTokens}, nil
	}

	owned := make([]OwnedToken, len(tokens))
	for i, token := range tokens {
		owned[i] = OwnedToken{Token: token, OwnerID: account.ID, Field: account.TokenField}
	}

	results, err := service.sender.Send(ctx, tokens, Notification{
		Title: dispatch.Title,
		Body:  dispatch.Body,
		Data:  data,
	})
	if err != nil {
		return UserResult{}, community.Internal(err)
	}

	sent, failed := count(results)
	invalid := service.reconciler.Invalid(owned, results)
	if len(invalid) > 0 {
		if err := service.reconciler.Cleanup(ctx, dispatch.CommunityID, invalid); err != nil {
			service.log.Warn("token cleanup incomplete", zap.Error(err))
		}
	}

	service.log.Info("dispatched notification to user",
		zap.String("community_id", dispatch.CommunityID),
		zap.String("user_id", dispatch.UserID),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
		zap.Int("cleaned", len(invalid)))

	return UserResult{
		Success:     sent > 0,
		Sent:        sent,
		Failed:      failed,
		Cleaned:     len(invalid),
		TotalTokens: len(tokens),
	}, nil
}

// SecurityDispatch is a request to notify the security staff about a gate pass.
type SecurityDispatch struct {
	CommunityID string
	PassID      string
	Title       string
	Body        string
	ExtraData   map[string]interface{}
}

// DispatchToCommunityRole notifies every security account of a community.
// passId and communityId are always part of the data map.
func (service *Service) DispatchToCommunityRole(ctx context.Context, dispatch SecurityDispatch) (_ RoleResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := required(
		"communityId", dispatch.CommunityID,
		"passId", dispatch.PassID,
		"title", dispatch.Title,
		"body", dispatch.Body,
	); err != nil {
		return RoleResult{}, err
	}

	result, err := service.BroadcastToRole(ctx, RoleDispatch{
		CommunityID: dispatch.CommunityID,
		Role:        service.roles.SecurityMatcher(),
		Title:       dispatch.Title,
		Body:        dispatch.Body,
		Reserved: map[string]string{
			"passId":      dispatch.PassID,
			"communityId": dispatch.CommunityID,
		},
		ExtraData: dispatch.ExtraData,
	})
	if err != nil {
		return RoleResult{}, err
	}

	if result.MatchedCount == 0 {
		result.Message = messageNoSecurity
	}
	if result.TotalTokens > 0 {
		result.PassID = dispatch.PassID
	}
	return result, nil
}

// BroadcastToRole sends a notification to the devices of all accounts whose
// role matches dispatch.Role.
func (service *Service) BroadcastToRole(ctx context.Context, dispatch RoleDispatch) (_ RoleResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := required(
		"communityId", dispatch.CommunityID,
		"title", dispatch.Title,
		"body", dispatch.Body,
	); err != nil {
		return RoleResult{}, err
	}

	data, err := mergeData(service.log, dispatch.Reserved, dispatch.ExtraData)
	if err != nil {
		return RoleResult{}, community.ErrInvalidArgument.Wrap(err)
	}

	accounts, err := service.accounts.ListByRole(ctx, dispatch.CommunityID, dispatch.Role)
	if err != nil {
		return RoleResult{}, community.Internal(err)
	}
	if len(accounts) == 0 {
		service.log.Info("no accounts found for role",
			zap.String("community_id", dispatch.CommunityID),
			zap.String("role", dispatch.Role.Role))
		return RoleResult{Success: false, Message: "No accounts found for role " + dispatch.Role.Role}, nil
	}

	var owned []OwnedToken
	var details []AccountDetail
	for _, account := range accounts {
		tokens := dedupe(account.Tokens)
		if len(tokens) == 0 {
			continue
		}
		for _, token := range tokens {
			owned = append(owned, OwnedToken{Token: token, OwnerID: account.ID, Field: account.TokenField})
		}
		details = append(details, AccountDetail{ID: account.ID, Name: account.Name, TokenCount: len(tokens)})
	}

	if len(owned) == 0 {
		return RoleResult{
			Success:      false,
			Message:      messageNoTokens,
			MatchedCount: len(accounts),
		}, nil
	}

	// a device registered on several accounts gets the notification once.
	tokens := make([]string, 0, len(owned))
	for _, token := range owned {
		tokens = append(tokens, token.Token)
	}
	tokens = dedupe(tokens)

	results, err := service.sender.Send(ctx, tokens, Notification{
		Title: dispatch.Title,
		Body:  dispatch.Body,
		Data:  data,
	})
	if err != nil {
		return RoleResult{}, community.Internal(err)
	}

	sent, failed := count(results)
	invalid := service.reconciler.Invalid(owned, results)
	if len(invalid) > 0 {
		if err := service.reconciler.Cleanup(ctx, dispatch.CommunityID, invalid); err != nil {
			service.log.Warn("token cleanup incomplete", zap.Error(err))
		}
	}

	service.log.Info("dispatched notification to role",
		zap.String("community_id", dispatch.CommunityID),
		zap.String("role", dispatch.Role.Role),
		zap.Int("accounts", len(accounts)),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
		zap.Int("cleaned", len(invalid)))

	return RoleResult{
		Success:         sent > 0,
		Sent:            sent,
		Failed:          failed,
		Cleaned:         len(invalid),
		TotalTokens:     len(tokens),
		MatchedCount:    len(accounts),
		WithTokensCount: len(details),
		Details:         details,
	}, nil
}

// required checks name/value pairs and reports every blank value.
func required(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return community.ErrInvalidArgument.New("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func count(results []SendResult) (sent, failed int) {
	for _, result := range results {
		if result.Success() {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}

func dedupe(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		unique = append(unique, token)
	}
	return unique
}
