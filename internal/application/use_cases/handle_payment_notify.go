package use_cases

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type HandlePaymentNotifyUseCase struct {
	notifier  *notifier
	orderRepo domain.OrderRepository
	log       *zap.Logger
}

func NewHandlePaymentNotifyUseCase(n *notifier, orderRepo domain.OrderRepository, log *zap.Logger) *HandlePaymentNotifyUseCase {
	return &HandlePaymentNotifyUseCase{notifier: n, orderRepo: orderRepo, log: log}
}

func (uc *HandlePaymentNotifyUseCase) Execute(ctx context.Context, in InboundNotification) (*NotifyOutcome, error) {
	ctx, span := tracer.Start(ctx, "HandlePaymentNotify")
	defer span.End()

	note, err := uc.notifier.open(ctx, ChannelMPGNotify, in)
	if err != nil {
		return nil, err
	}
	result, err := note.MPGResult()
	if err != nil {
		return nil, uc.notifier.rejectPayload(ctx, ChannelMPGNotify, in.SourceIP, note, err)
	}
	span.SetAttributes(
		attribute.String("payment.merchant_order_no", result.MerchantOrderNo),
		attribute.Bool("payment.succeeded", result.Succeeded),
	)

	return uc.notifier.process(ctx, in.SourceIP, note.Status, notifyJob{
		channel:     ChannelMPGNotify,
		requestType: domain.RequestTypeMPGNotify,
		orderNo:     result.MerchantOrderNo,
		amount:      result.Amount,
		body:        map[string]any{"status": note.Status, "trade_no": result.TradeNo},
		raw:         note.Result,
		apply: func(ctx context.Context) (*NotifyOutcome, error) {
			order, err := uc.orderRepo.FindByOrderNo(ctx, result.MerchantOrderNo)
			if err != nil {
				return nil, err
			}
			if order == nil {
				return nil, apperrors.ErrOrderNotFound()
			}
			if order.Amount != result.Amount {
				uc.log.Warn("notification amount differs from order",
					zap.String("merchant_order_no", order.MerchantOrderNo),
					zap.Int64("order_amount", order.Amount),
					zap.Int64("notified_amount", result.Amount),
				)
				return nil, apperrors.ErrInvalidPaymentRequest("notified amount does not match the order")
			}

			changed := settleOrder(order, settlement{
				paid:        result.Succeeded,
				tradeNo:     result.TradeNo,
				paymentType: result.PaymentType,
				authCode:    result.AuthCode,
				paidAt:      result.PayTime,
				message:     note.Message,
				raw:         note.Result,
			})
			if changed {
				if err := uc.orderRepo.Save(ctx, order); err != nil {
					return nil, err
				}
			}
			return &NotifyOutcome{
				Accepted:        true,
				MerchantOrderNo: order.MerchantOrderNo,
				Status:          string(order.Status),
			}, nil
		},
	})
}

type settlement struct {
	paid        bool
	cancelled   bool
	tradeNo     string
	paymentType string
	authCode    string
	paidAt      *time.Time
	message     string
	raw         any
}

// settleOrder applies a processor outcome. A paid order is final and never
// moves back to a failure state.
func settleOrder(order *domain.Order, s settlement) bool {
	if order.Status == domain.OrderStatusPaid {
		return false
	}

	if s.tradeNo != "" {
		order.TradeNo = s.tradeNo
	}
	if s.paymentType != "" {
		order.PaymentType = s.paymentType
	}
	if s.raw != nil {
		if body, err := json.Marshal(s.raw); err == nil {
			order.RawResult = datatypes.JSON(body)
		}
	}

	switch {
	case s.paid:
		order.Status = domain.OrderStatusPaid
		order.AuthCode = s.authCode
		order.FailReason = ""
		paidAt := time.Now()
		if s.paidAt != nil {
			paidAt = *s.paidAt
		}
		order.PaidAt = &paidAt
	case s.cancelled:
		order.Status = domain.OrderStatusCancelled
		order.FailReason = s.message
	default:
		order.Status = domain.OrderStatusFailed
		order.FailReason = s.message
	}
	return true
}
