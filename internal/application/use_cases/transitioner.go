package use_cases

import (
	"context"
	"errors"

	"github.com/vibepay/newebpay-bridge/internal/application/subscription"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"github.com/vibepay/newebpay-bridge/internal/utils/metrics"
	"go.uber.org/zap"
)

const maxStaleRetries = 3

// transitioner is the only writer of subscription state.
type transitioner struct {
	machine          *subscription.Machine
	subscriptionRepo domain.SubscriptionRepository
	log              *zap.Logger
	metrics          *metrics.Metrics
}

type transitionSpec struct {
	event  subscription.Event
	detail subscription.Detail
	// precheck may report that the subscription already absorbed this event.
	precheck func(sub *domain.Subscription) (skip bool, err error)
	// record writes rows that belong to the same change, such as a payment.
	record func(ctx context.Context, sub *domain.Subscription, tr subscription.Transition) error
}

// run loads, transitions and stores the subscription, reloading when another
// writer got there first. A nil transition with a nil error means precheck skipped it.
func (t *transitioner) run(ctx context.Context, load func(ctx context.Context) (*domain.Subscription, error), spec transitionSpec) (*subscription.Transition, error) {
	for attempt := 0; attempt < maxStaleRetries; attempt++ {
		sub, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, apperrors.ErrSubscriptionNotFound()
		}

		if spec.precheck != nil {
			skip, err := spec.precheck(sub)
			if err != nil {
				return nil, err
			}
			if skip {
				return nil, nil
			}
		}

		tr, err := t.machine.ApplyWith(*sub, spec.event, spec.detail)
		if err != nil {
			t.log.Error("subscription transition rejected",
				zap.String("subscription_id", sub.ID),
				zap.String("state", string(sub.State)),
				zap.String("event", string(spec.event)),
				zap.Error(err),
			)
			return nil, err
		}

		next := tr.Subscription
		if err := t.subscriptionRepo.Update(ctx, &next); err != nil {
			if errors.Is(err, domain.ErrStaleSubscription) {
				t.log.Debug("subscription changed underneath, retrying",
					zap.String("subscription_id", sub.ID),
					zap.Int("attempt", attempt+1),
				)
				continue
			}
			return nil, err
		}
		tr.Subscription = next

		if err := t.subscriptionRepo.AddStateLog(ctx, &domain.SubscriptionStateLog{
			SubscriptionID: sub.ID,
			FromState:      tr.From,
			ToState:        tr.To,
			Event:          string(tr.Event),
			Detail:         spec.detail.Reason,
		}); err != nil {
			return nil, err
		}
		if spec.record != nil {
			if err := spec.record(ctx, &next, tr); err != nil {
				return nil, err
			}
		}

		if t.metrics != nil {
			t.metrics.SubscriptionTransitions.WithLabelValues(string(tr.From), string(tr.To)).Inc()
		}
		t.log.Info("subscription transitioned",
			zap.String("subscription_id", sub.ID),
			zap.String("from", string(tr.From)),
			zap.String("to", string(tr.To)),
			zap.String("event", string(tr.Event)),
			zap.Int("completed_periods", next.CompletedPeriods),
		)
		return &tr, nil
	}
	return nil, apperrors.ErrSubscriptionConflict()
}
