package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrStaleSubscription = errors.New("subscription version changed")
	ErrReservationLost   = errors.New("idempotency reservation not held")
)

type TransactionManager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type IdempotencyRepository interface {
	// Insert relies on the store's unique constraints; false means another record won.
	Insert(ctx context.Context, record *IdempotencyRecord) (bool, error)
	FindByKey(ctx context.Context, key string) (*IdempotencyRecord, error)
	FindByOrderScope(ctx context.Context, scope string) (*IdempotencyRecord, error)
	Transition(ctx context.Context, token string, from []IdempotencyStatus, to IdempotencyStatus, body []byte, errMsg string) (bool, error)
	// Lock moves a PENDING reservation to PROCESSING and starts its lease at at.
	Lock(ctx context.Context, token string, at time.Time) (bool, error)
	// Reclaim hands an open record whose lease started at or before staleBefore
	// to a new token. False means the record was settled or reclaimed meanwhile.
	Reclaim(ctx context.Context, key, token string, staleBefore, now time.Time) (bool, error)
	DeleteByToken(ctx context.Context, token string, statuses []IdempotencyStatus) (bool, error)
	DeleteExpiredConflicts(ctx context.Context, key string, scope *string, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountByStatus(ctx context.Context, now time.Time) (map[IdempotencyStatus]int64, error)
	CountStale(ctx context.Context, staleBefore, now time.Time) (int64, error)
}

type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	FindByOrderNo(ctx context.Context, orderNo string) (*Order, error)
	Save(ctx context.Context, order *Order) error
}

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *Subscription) error
	FindByID(ctx context.Context, id string) (*Subscription, error)
	FindByOrderNo(ctx context.Context, orderNo string) (*Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]Subscription, error)
	// Update writes sub only if the stored version still equals sub.Version, then bumps it.
	Update(ctx context.Context, sub *Subscription) error
	AddPayment(ctx context.Context, payment *SubscriptionPayment) error
	AddStateLog(ctx context.Context, entry *SubscriptionStateLog) error
	ListStateLogs(ctx context.Context, subscriptionID string) ([]SubscriptionStateLog, error)
}

type RateLimitRepository interface {
	Upsert(ctx context.Context, window *RateLimitWindow) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type WebhookLogRepository interface {
	Create(ctx context.Context, entry *WebhookLog) error
}

type AlterType string

const (
	AlterSuspend   AlterType = "suspend"
	AlterTerminate AlterType = "terminate"
	AlterRestart   AlterType = "restart"
)

type TradeStatus struct {
	MerchantOrderNo string
	TradeNo         string
	Amount          int64
	Status          string
	PaymentType     string
	RespondCode     string
	AuthCode        string
	PayTime         *time.Time
	Message         string
}

// Paid follows the processor's TradeStatus codes: 0 unpaid, 1 paid, 2 failed, 3 cancelled, 6 refunded.
func (t TradeStatus) Paid() bool {
	return t.Status == "1"
}

func (t TradeStatus) Failed() bool {
	return t.Status == "2" || t.Status == "3"
}

// Gateway is the processor's server-to-server API.
type Gateway interface {
	AlterStatus(ctx context.Context, orderNo, periodNo string, alter AlterType) error
	QueryTradeInfo(ctx context.Context, orderNo string, amount int64) (*TradeStatus, error)
}
