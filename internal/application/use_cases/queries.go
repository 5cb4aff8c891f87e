package use_cases

import (
	"context"

	"github.com/vibepay/newebpay-bridge/internal/application/idempotency"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"go.uber.org/zap"
)

type GetOrderUseCase struct {
	orderRepo domain.OrderRepository
	log       *zap.Logger
}

func NewGetOrderUseCase(orderRepo domain.OrderRepository, log *zap.Logger) *GetOrderUseCase {
	return &GetOrderUseCase{orderRepo: orderRepo, log: log}
}

func (uc *GetOrderUseCase) Execute(ctx context.Context, userID, orderNo string) (*domain.Order, error) {
	order, err := ownedOrder(ctx, uc.orderRepo, userID, orderNo)
	if err != nil {
		return nil, internalError(uc.log, "order lookup failed", err)
	}
	return order, nil
}

func ownedOrder(ctx context.Context, repo domain.OrderRepository, userID, orderNo string) (*domain.Order, error) {
	if userID == "" {
		return nil, apperrors.ErrUserIDMissing()
	}
	order, err := repo.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperrors.ErrOrderNotFound()
	}
	if order.UserID != userID {
		return nil, apperrors.ErrForbidden()
	}
	return order, nil
}

type SubscriptionView struct {
	domain.Subscription
	History []domain.SubscriptionStateLog `json:"history"`
}

type GetSubscriptionUseCase struct {
	subscriptionRepo domain.SubscriptionRepository
	log              *zap.Logger
}

func NewGetSubscriptionUseCase(subscriptionRepo domain.SubscriptionRepository, log *zap.Logger) *GetSubscriptionUseCase {
	return &GetSubscriptionUseCase{subscriptionRepo: subscriptionRepo, log: log}
}

func (uc *GetSubscriptionUseCase) Execute(ctx context.Context, userID, id string) (*SubscriptionView, error) {
	if userID == "" {
		return nil, apperrors.ErrUserIDMissing()
	}
	sub, err := ownedSubscription(ctx, uc.subscriptionRepo, userID, id)
	if err != nil {
		return nil, internalError(uc.log, "subscription lookup failed", err)
	}
	history, err := uc.subscriptionRepo.ListStateLogs(ctx, sub.ID)
	if err != nil {
		return nil, internalError(uc.log, "state log lookup failed", err)
	}
	return &SubscriptionView{Subscription: *sub, History: history}, nil
}

type ListSubscriptionsUseCase struct {
	subscriptionRepo domain.SubscriptionRepository
	log              *zap.Logger
}

func NewListSubscriptionsUseCase(subscriptionRepo domain.SubscriptionRepository, log *zap.Logger) *ListSubscriptionsUseCase {
	return &ListSubscriptionsUseCase{subscriptionRepo: subscriptionRepo, log: log}
}

func (uc *ListSubscriptionsUseCase) Execute(ctx context.Context, userID string) ([]domain.Subscription, error) {
	if userID == "" {
		return nil, apperrors.ErrUserIDMissing()
	}
	subs, err := uc.subscriptionRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, internalError(uc.log, "subscription list failed", err)
	}
	if subs == nil {
		subs = []domain.Subscription{}
	}
	return subs, nil
}

type GetByIdempotencyKeyUseCase struct {
	idem             *idempotency.Service
	orderRepo        domain.OrderRepository
	subscriptionRepo domain.SubscriptionRepository
	log              *zap.Logger
}

func NewGetByIdempotencyKeyUseCase(idem *idempotency.Service, orderRepo domain.OrderRepository, subscriptionRepo domain.SubscriptionRepository, log *zap.Logger) *GetByIdempotencyKeyUseCase {
	return &GetByIdempotencyKeyUseCase{idem: idem, orderRepo: orderRepo, subscriptionRepo: subscriptionRepo, log: log}
}

// Execute only shows records whose order or subscription belongs to userID.
func (uc *GetByIdempotencyKeyUseCase) Execute(ctx context.Context, userID, key string) (*domain.IdempotencyRecord, error) {
	if userID == "" {
		return nil, apperrors.ErrUserIDMissing()
	}
	record, err := uc.idem.Lookup(ctx, key)
	if err != nil {
		return nil, internalError(uc.log, "idempotency lookup failed", err)
	}

	owner, err := uc.owner(ctx, record)
	if err != nil {
		return nil, internalError(uc.log, "idempotency owner lookup failed", err)
	}
	if owner == "" {
		return nil, apperrors.ErrIdempotencyKeyNotFound()
	}
	if owner != userID {
		return nil, apperrors.ErrForbidden()
	}
	return record, nil
}

// owner is empty when the record's order or subscription was never persisted.
func (uc *GetByIdempotencyKeyUseCase) owner(ctx context.Context, record *domain.IdempotencyRecord) (string, error) {
	switch record.RequestType {
	case domain.RequestTypeMPG, domain.RequestTypeMPGNotify:
		order, err := uc.orderRepo.FindByOrderNo(ctx, record.MerchantOrderNo)
		if err != nil || order == nil {
			return "", err
		}
		return order.UserID, nil
	default:
		sub, err := uc.subscriptionRepo.FindByOrderNo(ctx, record.MerchantOrderNo)
		if err != nil || sub == nil {
			return "", err
		}
		return sub.UserID, nil
	}
}
