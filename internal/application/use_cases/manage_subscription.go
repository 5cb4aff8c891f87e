package use_cases

import (
	"context"

	"github.com/vibepay/newebpay-bridge/internal/application/ratelimit"
	"github.com/vibepay/newebpay-bridge/internal/application/subscription"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type SubscriptionAction string

const (
	ActionSuspend SubscriptionAction = "suspend"
	ActionResume  SubscriptionAction = "resume"
	ActionCancel  SubscriptionAction = "cancel"
)

type ManageSubscriptionCommand struct {
	UserID         string
	SubscriptionID string
	Action         SubscriptionAction
	Reason         string
}

type ManageSubscriptionUseCase struct {
	gateway          domain.Gateway
	transitioner     *transitioner
	subscriptionRepo domain.SubscriptionRepository
	tx               domain.TransactionManager
	limiter          *ratelimit.Limiter
	log              *zap.Logger
}

func NewManageSubscriptionUseCase(
	gateway domain.Gateway,
	t *transitioner,
	subscriptionRepo domain.SubscriptionRepository,
	tx domain.TransactionManager,
	limiter *ratelimit.Limiter,
	log *zap.Logger,
) *ManageSubscriptionUseCase {
	return &ManageSubscriptionUseCase{
		gateway:          gateway,
		transitioner:     t,
		subscriptionRepo: subscriptionRepo,
		tx:               tx,
		limiter:          limiter,
		log:              log,
	}
}

var actions = map[SubscriptionAction]struct {
	event subscription.Event
	alter domain.AlterType
}{
	ActionSuspend: {subscription.EventUserSuspended, domain.AlterSuspend},
	ActionResume:  {subscription.EventUserResumed, domain.AlterRestart},
	ActionCancel:  {subscription.EventUserCancelled, domain.AlterTerminate},
}

// Execute alters the mandate at the processor before moving local state.
func (uc *ManageSubscriptionUseCase) Execute(ctx context.Context, cmd ManageSubscriptionCommand) (*domain.Subscription, error) {
	ctx, span := tracer.Start(ctx, "ManageSubscription", trace.WithAttributes(
		attribute.String("subscription.id", cmd.SubscriptionID),
		attribute.String("subscription.action", string(cmd.Action)),
	))
	defer span.End()

	action, ok := actions[cmd.Action]
	if !ok {
		return nil, apperrors.ErrInvalidSubscriptionRequest("unknown action " + string(cmd.Action))
	}
	if cmd.UserID == "" {
		return nil, apperrors.ErrUserIDMissing()
	}

	sub, err := ownedSubscription(ctx, uc.subscriptionRepo, cmd.UserID, cmd.SubscriptionID)
	if err != nil {
		return nil, internalError(uc.log, "subscription lookup failed", err)
	}
	if err := enforceLimit(ctx, uc.limiter, cmd.UserID, ratelimit.EndpointSubscription); err != nil {
		return nil, err
	}
	if !uc.transitioner.machine.Can(sub.State, action.event) {
		return nil, apperrors.ErrInvalidTransition(string(sub.State), string(action.event))
	}

	if err := uc.gateway.AlterStatus(ctx, sub.MerchantOrderNo, sub.PeriodNo, action.alter); err != nil {
		uc.log.Warn("processor refused subscription change",
			zap.String("subscription_id", sub.ID),
			zap.String("action", string(cmd.Action)),
			zap.Error(err),
		)
		return nil, internalError(uc.log, "alter status failed", err)
	}

	var tr *subscription.Transition
	err = uc.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		tr, err = uc.transitioner.run(ctx, func(ctx context.Context) (*domain.Subscription, error) {
			return uc.subscriptionRepo.FindByID(ctx, sub.ID)
		}, transitionSpec{
			event:  action.event,
			detail: subscription.Detail{Reason: cmd.Reason},
		})
		return err
	})
	if err != nil {
		return nil, internalError(uc.log, "subscription transition failed", err)
	}
	return &tr.Subscription, nil
}

// ownedSubscription hides other users' subscriptions behind FORBIDDEN.
func ownedSubscription(ctx context.Context, repo domain.SubscriptionRepository, userID, id string) (*domain.Subscription, error) {
	sub, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperrors.ErrSubscriptionNotFound()
	}
	if sub.UserID != userID {
		return nil, apperrors.ErrForbidden()
	}
	return sub, nil
}
