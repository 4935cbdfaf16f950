// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package notices

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

// Error is the error class for notice failures.
var Error = errs.Class("notices")

// Broadcaster notifies every account holding a role.
type Broadcaster interface {
	BroadcastToRole(ctx context.Context, dispatch pushnotifications.RoleDispatch) (pushnotifications.RoleResult, error)
}

// Draft is a notice to be published.
type Draft struct {
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments"`
}

// Service publishes and deletes community notices.
//
// architecture: Service
type Service struct {
	log         *zap.Logger
	notices     community.Notices
	broadcaster Broadcaster
	attachments Attachments
	roles       community.Roles
	nowFn       func() time.Time
}

// NewService creates a new notices service. attachments may be nil when no
// storage bucket is configured.
func NewService(log *zap.Logger, notices community.Notices, broadcaster Broadcaster, attachments Attachments, roles community.Roles) *Service {
	return &Service{
		log:         log,
		notices:     notices,
		broadcaster: broadcaster,
		attachments: attachments,
		roles:       roles,
		nowFn:       time.Now,
	}
}

// Publish stores a notice and notifies the residents. A failed notification
// does not undo the notice.
func (service *Service) Publish(ctx context.Context, session community.Session, draft Draft) (_ community.Notice, _ pushnotifications.RoleResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := community.Require(session, service.roles.AdminMatcher()); err != nil {
		return community.Notice{}, pushnotifications.RoleResult{}, err
	}

	draft.Title = strings.TrimSpace(draft.Title)
	draft.Body = strings.TrimSpace(draft.Body)
	if draft.Title == "" || draft.Body == "" {
		return community.Notice{}, pushnotifications.RoleResult{}, community.ErrInvalidArgument.New("title and body are required")
	}

	id, err := uuid.New()
	if err != nil {
		return community.Notice{}, pushnotifications.RoleResult{}, community.Internal(err)
	}

	notice := community.Notice{
		ID:            id.String(),
		CommunityID:   session.CommunityID,
		Title:         draft.Title,
		Body:          draft.Body,
		Attachments:   draft.Attachments,
		CreatedBy:     session.UserID,
		CreatedByName: session.Name,
		CreatedAt:     service.nowFn(),
	}
	if err := service.notices.Insert(ctx, notice); err != nil {
		return community.Notice{}, pushnotifications.RoleResult{}, community.Internal(err)
	}

	result, err := service.broadcaster.BroadcastToRole(ctx, pushnotifications.RoleDispatch{
		CommunityID: notice.CommunityID,
		Role:        service.roles.ResidentMatcher(),
		Title:       notice.Title,
		Body:        preview(notice.Body),
		Reserved: map[string]string{
			"noticeId":    notice.ID,
			"communityId": notice.CommunityID,
		},
		ExtraData: map[string]interface{}{"type": "notice"},
	})
	if err != nil {
		service.log.Warn("failed to notify residents about notice",
			zap.String("notice_id", notice.ID),
			zap.Error(err))
	}
	return notice, result, nil
}

// Delete removes a notice and then its attachments. Attachment failures are
// logged and do not fail the delete.
func (service *Service) Delete(ctx context.Context, session community.Session, noticeID string) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := community.Require(session, service.roles.AdminMatcher()); err != nil {
		return err
	}

	notice, err := service.notices.Get(ctx, session.CommunityID, noticeID)
	if err != nil {
		return community.Internal(err)
	}
	if err := service.notices.Delete(ctx, session.CommunityID, noticeID); err != nil {
		return community.Internal(err)
	}

	if service.attachments == nil {
		return nil
	}
	for _, ref := range notice.Attachments {
		if err := service.attachments.Delete(ctx, ref); err != nil {
			service.log.Warn("failed to delete notice attachment",
				zap.String("notice_id", noticeID),
				zap.String("attachment", ref),
				zap.Error(err))
		}
	}
	return nil
}

func preview(body string) string {
	const limit = 120
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit]) + "..."
}
