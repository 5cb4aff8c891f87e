package use_cases

import (
	"context"

	"github.com/vibepay/newebpay-bridge/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ReconcileOrderUseCase struct {
	gateway   domain.Gateway
	orderRepo domain.OrderRepository
	log       *zap.Logger
}

func NewReconcileOrderUseCase(gateway domain.Gateway, orderRepo domain.OrderRepository, log *zap.Logger) *ReconcileOrderUseCase {
	return &ReconcileOrderUseCase{gateway: gateway, orderRepo: orderRepo, log: log}
}

// Execute asks the processor for the trade status of a pending order. Orders
// that already settled are returned as stored.
func (uc *ReconcileOrderUseCase) Execute(ctx context.Context, userID, orderNo string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "ReconcileOrder", trace.WithAttributes(
		attribute.String("payment.merchant_order_no", orderNo),
	))
	defer span.End()

	order, err := ownedOrder(ctx, uc.orderRepo, userID, orderNo)
	if err != nil {
		return nil, internalError(uc.log, "order lookup failed", err)
	}
	if order.Status != domain.OrderStatusPending {
		return order, nil
	}

	status, err := uc.gateway.QueryTradeInfo(ctx, order.MerchantOrderNo, order.Amount)
	if err != nil {
		return nil, internalError(uc.log, "trade info query failed", err)
	}

	var s settlement
	switch {
	case status.Paid():
		s = settlement{paid: true, paidAt: status.PayTime, authCode: status.AuthCode}
	case status.Status == "3":
		s = settlement{cancelled: true, message: status.Message}
	case status.Failed():
		s = settlement{message: status.Message}
	default:
		uc.log.Debug("order still unpaid at processor", zap.String("merchant_order_no", orderNo))
		return order, nil
	}
	s.tradeNo = status.TradeNo
	s.paymentType = status.PaymentType
	s.raw = status

	if settleOrder(order, s) {
		if err := uc.orderRepo.Save(ctx, order); err != nil {
			return nil, internalError(uc.log, "order save failed", err)
		}
		uc.log.Info("order reconciled",
			zap.String("merchant_order_no", orderNo),
			zap.String("status", string(order.Status)),
		)
	}
	return order, nil
}
