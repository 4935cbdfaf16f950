// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package pushnotifications

import (
	"context"
	"strings"

	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/uuid"
)

// ErrSender is the error class for multicast failures.
var ErrSender = errs.Class("push sender")

// Provider error codes of a failed token.
const (
	CodeInvalidRegistrationToken = "invalid-registration-token"
	CodeNotRegistered            = "registration-token-not-registered"
	CodeInvalidArgument          = "invalid-argument"
	CodeUnavailable              = "unavailable"
	CodeInternal                 = "internal"
	CodeQuotaExceeded            = "quota-exceeded"
	CodeUnknown                  = "unknown"
)

// IsPermanent reports whether a token failing with code will never succeed
// and must be removed from its account.
func IsPermanent(code string) bool {
	switch code {
	case CodeInvalidRegistrationToken, CodeNotRegistered, CodeInvalidArgument:
		return true
	}
	return false
}

// ErrorCode maps a per-token send error to a provider error code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case messaging.IsRegistrationTokenNotRegistered(err):
		return CodeNotRegistered
	case messaging.IsInvalidArgument(err):
		return CodeInvalidArgument
	}

	message := err.Error()
	for _, code := range []string{CodeInvalidRegistrationToken, CodeNotRegistered, CodeInvalidArgument} {
		if strings.Contains(message, code) {
			return code
		}
	}

	switch {
	case errorutils.IsUnavailable(err):
		return CodeUnavailable
	case errorutils.IsInternal(err):
		return CodeInternal
	case errorutils.IsResourceExhausted(err):
		return CodeQuotaExceeded
	}
	return CodeUnknown
}

// Sender delivers a notification to a list of device tokens.
//
// Send returns one result per token in the order of tokens. Per-token
// failures are reported in the results; an error is returned only when the
// provider call itself fails.
type Sender interface {
	Send(ctx context.Context, tokens []string, notification Notification) ([]SendResult, error)
}

// MulticastClient is the part of *messaging.Client used by FCMSender.
type MulticastClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMSender sends notifications through Firebase Cloud Messaging.
type FCMSender struct {
	log    *zap.Logger
	client MulticastClient
	config Config
}

// NewFCMSender creates a new FCM sender.
func NewFCMSender(log *zap.Logger, client MulticastClient, config Config) *FCMSender {
	return &FCMSender{log: log, client: client, config: config}
}

// Send implements Sender.
func (sender *FCMSender) Send(ctx context.Context, tokens []string, notification Notification) (_ []SendResult, err error) {
	defer mon.Task()(&ctx)(&err)

	results := make([]SendResult, 0, len(tokens))
	size := sender.config.batchSize()
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		response, err := sender.client.SendEachForMulticast(ctx, sender.buildMessage(batch, notification))
		if err != nil {
			// results of earlier batches are dropped with the error, so their
			// invalid tokens are only cleaned by a later dispatch.
			return nil, ErrSender.Wrap(err)
		}
		if len(response.Responses) != len(batch) {
			return nil, ErrSender.New("expected %d responses, got %d", len(batch), len(response.Responses))
		}

		sender.log.Debug("multicast sent",
			zap.Int("success_count", response.SuccessCount),
			zap.Int("failure_count", response.FailureCount))

		for i, resp := range response.Responses {
			result := SendResult{Token: batch[i]}
			switch {
			case resp == nil:
				result.Err = ErrSender.New("missing response")
				result.Code = CodeUnknown
			case resp.Success:
				result.MessageID = resp.MessageID
			default:
				result.Err = resp.Error
				if result.Err == nil {
					result.Err = ErrSender.New("send failed without error")
				}
				result.Code = ErrorCode(result.Err)
			}
			results = append(results, result)
		}
	}
	return results, nil
}

func (sender *FCMSender) buildMessage(tokens []string, notification Notification) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: notification.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: sender.config.ChannelID,
				Sound:     sender.config.Sound,
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound:            sender.config.Sound,
					ContentAvailable: true,
				},
			},
		},
	}
}

// LogSender only logs notifications. It is used when FCM is disabled.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender creates a sender that logs instead of delivering.
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send implements Sender.
func (sender *LogSender) Send(ctx context.Context, tokens []string, notification Notification) ([]SendResult, error) {
	sender.log.Info("push notifications are disabled, logging notification",
		zap.String("title", notification.Title),
		zap.Int("token_count", len(tokens)),
		zap.Strings("token_previews", tokenPreviews(tokens)))

	results := make([]SendResult, len(tokens))
	for i, token := range tokens {
		id, err := uuid.New()
		if err != nil {
			return nil, ErrSender.Wrap(err)
		}
		results[i] = SendResult{Token: token, MessageID: "log/" + id.String()}
	}
	return results, nil
}

func tokenPreviews(tokens []string) []string {
	previews := make([]string, len(tokens))
	for i, token := range tokens {
		previews[i] = tokenPreview(token)
	}
	return previews
}

func tokenPreview(token string) string {
	if len(token) > 20 {
		return token[:20] + "..."
	}
	return token
}
