package use_cases

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vibepay/newebpay-bridge/internal/application/subscription"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/newebpay"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type HandlePeriodNotifyUseCase struct {
	notifier         *notifier
	transitioner     *transitioner
	subscriptionRepo domain.SubscriptionRepository
	log              *zap.Logger
	now              func() time.Time
}

func NewHandlePeriodNotifyUseCase(
	n *notifier,
	t *transitioner,
	subscriptionRepo domain.SubscriptionRepository,
	log *zap.Logger,
	now func() time.Time,
) *HandlePeriodNotifyUseCase {
	return &HandlePeriodNotifyUseCase{
		notifier:         n,
		transitioner:     t,
		subscriptionRepo: subscriptionRepo,
		log:              log,
		now:              now,
	}
}

// FirstAuthorization handles the mandate's verification result.
func (uc *HandlePeriodNotifyUseCase) FirstAuthorization(ctx context.Context, in InboundNotification) (*NotifyOutcome, error) {
	ctx, span := tracer.Start(ctx, "HandlePeriodFirstAuthorization")
	defer span.End()

	note, result, err := uc.open(ctx, ChannelPeriodFirstAuth, in)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("subscription.merchant_order_no", result.MerchantOrderNo))

	event := subscription.EventFirstAuthSucceeded
	if !result.Succeeded {
		event = subscription.EventFirstAuthFailed
	}

	return uc.notifier.process(ctx, in.SourceIP, note.Status, notifyJob{
		channel:     ChannelPeriodFirstAuth,
		requestType: domain.RequestTypePeriodFirstAuth,
		orderNo:     result.MerchantOrderNo,
		amount:      result.Amount,
		body:        map[string]any{"status": note.Status, "period_no": result.PeriodNo, "trade_no": result.TradeNo},
		raw:         note.Result,
		apply: func(ctx context.Context) (*NotifyOutcome, error) {
			tr, err := uc.transitioner.run(ctx, uc.byOrderNo(result.MerchantOrderNo), transitionSpec{
				event:  event,
				detail: uc.detail(result, note.Message),
			})
			if err != nil {
				return nil, err
			}
			return outcomeFor(result.MerchantOrderNo, tr, false), nil
		},
	})
}

// PeriodAuthorization handles one billing cycle. A cycle the subscription has
// already counted is acknowledged without moving it again.
func (uc *HandlePeriodNotifyUseCase) PeriodAuthorization(ctx context.Context, in InboundNotification) (*NotifyOutcome, error) {
	ctx, span := tracer.Start(ctx, "HandlePeriodAuthorization")
	defer span.End()

	note, result, err := uc.open(ctx, ChannelPeriodNotify, in)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("subscription.merchant_order_no", result.MerchantOrderNo),
		attribute.Int("subscription.already_times", result.AlreadyTimes),
	)

	event := subscription.EventPaymentSucceeded
	if !result.Succeeded {
		event = subscription.EventPaymentFailed
	}

	return uc.notifier.process(ctx, in.SourceIP, note.Status, notifyJob{
		channel:     ChannelPeriodNotify,
		requestType: domain.RequestTypePeriodNotify,
		orderNo:     result.MerchantOrderNo,
		amount:      result.Amount,
		body: map[string]any{
			"status":        note.Status,
			"period_no":     result.PeriodNo,
			"already_times": result.AlreadyTimes,
			"trade_no":      result.TradeNo,
		},
		raw: note.Result,
		apply: func(ctx context.Context) (*NotifyOutcome, error) {
			tr, err := uc.transitioner.run(ctx, uc.byOrderNo(result.MerchantOrderNo), transitionSpec{
				event:  event,
				detail: uc.detail(result, note.Message),
				precheck: func(sub *domain.Subscription) (bool, error) {
					if sub.PeriodNo != "" && result.PeriodNo != "" && sub.PeriodNo != result.PeriodNo {
						return false, apperrors.ErrInvalidSubscriptionRequest("period no does not match the subscription")
					}
					if result.AlreadyTimes > 0 && result.AlreadyTimes <= sub.CompletedPeriods {
						uc.log.Info("period already counted",
							zap.String("subscription_id", sub.ID),
							zap.Int("already_times", result.AlreadyTimes),
							zap.Int("completed_periods", sub.CompletedPeriods),
						)
						return true, nil
					}
					return false, nil
				},
				record: func(ctx context.Context, sub *domain.Subscription, _ subscription.Transition) error {
					return uc.subscriptionRepo.AddPayment(ctx, paymentRow(sub.ID, result, note))
				},
			})
			if err != nil {
				return nil, err
			}
			return outcomeFor(result.MerchantOrderNo, tr, tr == nil), nil
		},
	})
}

func (uc *HandlePeriodNotifyUseCase) open(ctx context.Context, channel string, in InboundNotification) (*newebpay.Notification, *newebpay.PeriodResult, error) {
	note, err := uc.notifier.open(ctx, channel, in)
	if err != nil {
		return nil, nil, err
	}
	result, err := note.PeriodResult()
	if err != nil {
		return nil, nil, uc.notifier.rejectPayload(ctx, channel, in.SourceIP, note, err)
	}
	return note, result, nil
}

func (uc *HandlePeriodNotifyUseCase) byOrderNo(orderNo string) func(ctx context.Context) (*domain.Subscription, error) {
	return func(ctx context.Context) (*domain.Subscription, error) {
		return uc.subscriptionRepo.FindByOrderNo(ctx, orderNo)
	}
}

func (uc *HandlePeriodNotifyUseCase) detail(result *newebpay.PeriodResult, message string) subscription.Detail {
	at := uc.now()
	if result.AuthDate != nil {
		at = *result.AuthDate
	}
	d := subscription.Detail{
		At:           at,
		NextAuthDate: result.NextAuthDate,
		PeriodNo:     result.PeriodNo,
	}
	if !result.Succeeded {
		d.Reason = message
	}
	return d
}

func paymentRow(subscriptionID string, result *newebpay.PeriodResult, note *newebpay.Notification) *domain.SubscriptionPayment {
	row := &domain.SubscriptionPayment{
		SubscriptionID: subscriptionID,
		PeriodNo:       result.PeriodNo,
		PeriodTimes:    result.AlreadyTimes,
		Amount:         result.Amount,
		Succeeded:      result.Succeeded,
		TradeNo:        result.TradeNo,
		AuthCode:       result.AuthCode,
		RespondCode:    result.RespondCode,
		Message:        note.Message,
		AuthDate:       result.AuthDate,
	}
	if body, err := json.Marshal(note.Result); err == nil {
		row.RawResult = datatypes.JSON(body)
	}
	return row
}

func outcomeFor(orderNo string, tr *subscription.Transition, alreadyApplied bool) *NotifyOutcome {
	out := &NotifyOutcome{Accepted: true, MerchantOrderNo: orderNo, Duplicate: alreadyApplied}
	if tr != nil {
		out.Status = string(tr.To)
	}
	return out
}
