package use_cases

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/vibepay/newebpay-bridge/internal/application/idempotency"
	"github.com/vibepay/newebpay-bridge/internal/application/ipguard"
	"github.com/vibepay/newebpay-bridge/internal/application/ratelimit"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/newebpay"
	"github.com/vibepay/newebpay-bridge/internal/utils/fingerprint"
	"github.com/vibepay/newebpay-bridge/internal/utils/logger"
	"github.com/vibepay/newebpay-bridge/internal/utils/metrics"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	ChannelMPGNotify       = "mpg_notify"
	ChannelPeriodFirstAuth = "period_first_auth"
	ChannelPeriodNotify    = "period_notify"
)

// InboundNotification is one processor callback as received over HTTP.
type InboundNotification struct {
	SourceIP string
	Payload  newebpay.InboundPayload
}

type NotifyOutcome struct {
	Accepted        bool   `json:"accepted"`
	Duplicate       bool   `json:"duplicate"`
	MerchantOrderNo string `json:"merchant_order_no,omitempty"`
	Status          string `json:"status,omitempty"`
	Message         string `json:"message,omitempty"`
}

// notifier runs the checks every inbound callback shares, cheapest first, and
// applies each verified notification at most once.
type notifier struct {
	guard          *ipguard.Guard
	limiter        *ratelimit.Limiter
	vault          *newebpay.Vault
	idem           *idempotency.Service
	tx             domain.TransactionManager
	webhookLogRepo domain.WebhookLogRepository
	log            *zap.Logger
	metrics        *metrics.Metrics
}

type notifyJob struct {
	channel     string
	requestType domain.RequestType
	orderNo     string
	amount      int64
	body        any
	raw         map[string]string
	// apply runs inside the transaction that completes the reservation.
	apply func(ctx context.Context) (*NotifyOutcome, error)
}

func (n *notifier) open(ctx context.Context, channel string, in InboundNotification) (*newebpay.Notification, error) {
	src := n.guard.Validate(in.SourceIP)
	if !src.Allowed {
		n.log.Warn("notification from untrusted source",
			logger.Security("untrusted_source"),
			zap.String("channel", channel),
			zap.String("source_ip", src.Normalized),
		)
		n.audit(ctx, channel, src.Normalized, "", in.Payload.Status, false, src.Reason, envelopeSummary(in.Payload))
		n.count(channel, "untrusted")
		return nil, apperrors.ErrUntrustedSource(src.Normalized)
	}

	if err := enforceLimit(ctx, n.limiter, src.Normalized, ratelimit.EndpointWebhook); err != nil {
		n.count(channel, "rate_limited")
		return nil, err
	}

	result := n.vault.ValidateInbound(in.Payload)
	if !result.Valid {
		n.log.Warn("notification failed verification",
			logger.Security("signature_mismatch"),
			zap.String("channel", channel),
			zap.String("source_ip", src.Normalized),
			zap.Error(result.Err),
		)
		n.audit(ctx, channel, src.Normalized, "", in.Payload.Status, false, result.Err.Error(), envelopeSummary(in.Payload))
		n.count(channel, "invalid")
		return nil, apperrors.ErrSignatureMismatch(result.Err.Error())
	}
	return result.Notification, nil
}

// rejectPayload records a verified notification whose result could not be read.
func (n *notifier) rejectPayload(ctx context.Context, channel, sourceIP string, note *newebpay.Notification, err error) error {
	n.log.Warn("notification result unreadable", zap.String("channel", channel), zap.Error(err))
	n.audit(ctx, channel, ipguard.Normalize(sourceIP), note.Get("MerchantOrderNo"), note.Status, false, err.Error(), note.Result)
	n.count(channel, "unreadable")
	return apperrors.ErrSignatureMismatch(err.Error())
}

func (n *notifier) process(ctx context.Context, sourceIP, status string, job notifyJob) (*NotifyOutcome, error) {
	ip := ipguard.Normalize(sourceIP)

	check, err := n.idem.CheckAndReserve(ctx, idempotency.Request{
		DedupKey:    fingerprint.DedupKey(n.vault.MerchantID(), job.orderNo, job.amount, job.body),
		RequestType: job.requestType,
		OrderNo:     job.orderNo,
		Amount:      job.amount,
		RequestHash: fingerprint.Compute(job.body),
	})
	if err != nil {
		return nil, internalError(n.log, "notification reservation failed", err)
	}
	if check.Duplicate {
		out := &NotifyOutcome{Accepted: true, MerchantOrderNo: job.orderNo, Status: status}
		switch check.Status {
		case domain.IdempotencyStatusFailed:
			out.Accepted = false
			out.Message = check.FailReason
		case domain.IdempotencyStatusPending, domain.IdempotencyStatusProcessing:
			// Not accepted, so the processor redelivers once the holder settles
			// or its lease runs out.
			out.Accepted = false
			out.Message = apperrors.ErrRequestInFlight().Code
		}
		if len(check.CachedResult) > 0 {
			if err := json.Unmarshal(check.CachedResult, out); err != nil {
				n.log.Warn("cached notification outcome unreadable", zap.Error(err))
			}
		}
		out.Duplicate = true
		n.audit(ctx, job.channel, ip, job.orderNo, status, true, "duplicate "+string(check.Status), job.raw)
		n.count(job.channel, "duplicate")
		return out, nil
	}

	if err := n.idem.Begin(ctx, check.Token); err != nil {
		return nil, internalError(n.log, "notification begin failed", err)
	}

	var out *NotifyOutcome
	err = n.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if out, err = job.apply(ctx); err != nil {
			return err
		}
		return n.idem.Complete(ctx, check.Token, out)
	})
	if err != nil {
		n.settleFailure(ctx, check.Token, err)
		n.audit(ctx, job.channel, ip, job.orderNo, status, true, err.Error(), job.raw)
		n.count(job.channel, "failed")
		return nil, internalError(n.log, "notification processing failed", err)
	}

	n.audit(ctx, job.channel, ip, job.orderNo, status, true, "", job.raw)
	n.count(job.channel, "processed")
	return out, nil
}

// settleFailure keeps business rejections so redeliveries are answered the
// same way, and frees the reservation after anything transient.
func (n *notifier) settleFailure(ctx context.Context, token string, cause error) {
	var appErr *apperrors.AppError
	if errors.As(cause, &appErr) && appErr.HTTPCode < 500 {
		if err := n.idem.Fail(ctx, token, appErr.Code); err != nil {
			n.log.Warn("idempotency fail transition lost", zap.Error(err))
		}
		return
	}
	if err := n.idem.Release(ctx, token); err != nil {
		n.log.Warn("idempotency release failed", zap.Error(err))
	}
}

func (n *notifier) audit(ctx context.Context, channel, ip, orderNo, status string, valid bool, reason string, payload any) {
	entry := &domain.WebhookLog{
		Channel:         channel,
		SourceIP:        ip,
		MerchantOrderNo: orderNo,
		Status:          status,
		IsValid:         valid,
		Reason:          reason,
	}
	if payload != nil {
		if body, err := json.Marshal(payload); err == nil {
			entry.Payload = datatypes.JSON(body)
		}
	}
	if err := n.webhookLogRepo.Create(ctx, entry); err != nil {
		n.log.Error("webhook log write failed", zap.String("channel", channel), zap.Error(err))
	}
}

func (n *notifier) count(channel, outcome string) {
	if n.metrics != nil {
		n.metrics.Notifications.WithLabelValues(channel, outcome).Inc()
	}
}

// envelopeSummary is what gets logged for a payload that was never decrypted.
func envelopeSummary(p newebpay.InboundPayload) map[string]any {
	return map[string]any{
		"Status":         p.Status,
		"MerchantID":     p.MerchantID,
		"Version":        p.Version,
		"TradeInfoBytes": len(p.TradeInfo),
	}
}
