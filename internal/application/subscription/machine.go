package subscription

import (
	"time"

	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
)

type Event string

const (
	EventFirstAuthSucceeded Event = "FIRST_AUTH_SUCCESS"
	EventFirstAuthFailed    Event = "FIRST_AUTH_FAILED"
	EventPaymentSucceeded   Event = "PAYMENT_SUCCESS"
	EventPaymentFailed      Event = "PAYMENT_FAILED"
	EventUserSuspended      Event = "USER_SUSPEND"
	EventUserResumed        Event = "USER_RESUME"
	EventUserCancelled      Event = "USER_CANCEL"
	EventRetrySucceeded     Event = "RETRY_SUCCESS"
	EventRetriesExhausted   Event = "RETRIES_EXHAUSTED"
)

const DefaultMaxRetries = 3

const (
	authSuccess = "success"
	authFailed  = "failed"
)

var transitions = map[domain.SubscriptionState]map[Event]domain.SubscriptionState{
	domain.SubscriptionPending: {
		EventFirstAuthSucceeded: domain.SubscriptionActive,
		EventFirstAuthFailed:    domain.SubscriptionCancelled,
	},
	domain.SubscriptionActive: {
		EventPaymentSucceeded: domain.SubscriptionActive,
		EventPaymentFailed:    domain.SubscriptionPastDue,
		EventUserSuspended:    domain.SubscriptionSuspended,
		EventUserCancelled:    domain.SubscriptionCancelled,
	},
	domain.SubscriptionPastDue: {
		EventPaymentFailed:    domain.SubscriptionPastDue,
		EventRetrySucceeded:   domain.SubscriptionActive,
		EventRetriesExhausted: domain.SubscriptionCancelled,
	},
	domain.SubscriptionSuspended: {
		EventUserResumed:   domain.SubscriptionActive,
		EventUserCancelled: domain.SubscriptionCancelled,
	},
}

// Detail carries the facts a processor notification or user action adds to a transition.
type Detail struct {
	At           time.Time
	NextAuthDate *time.Time
	Reason       string
	PeriodNo     string
}

type Transition struct {
	From         domain.SubscriptionState
	To           domain.SubscriptionState
	Requested    Event
	Event        Event
	Subscription domain.Subscription
}

func (t Transition) StateChanged() bool {
	return t.From != t.To
}

type Machine struct {
	MaxRetries int
}

func NewMachine(maxRetries int) *Machine {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Machine{MaxRetries: maxRetries}
}

// Can reports whether state accepts ev, after the same event resolution Apply performs.
func (m *Machine) Can(state domain.SubscriptionState, ev Event) bool {
	_, ok := transitions[state][m.resolveByState(state, ev)]
	return ok
}

// AvailableEvents lists the events state accepts directly.
func (m *Machine) AvailableEvents(state domain.SubscriptionState) []Event {
	var out []Event
	for _, ev := range []Event{
		EventFirstAuthSucceeded, EventFirstAuthFailed, EventPaymentSucceeded, EventPaymentFailed,
		EventUserSuspended, EventUserResumed, EventUserCancelled, EventRetrySucceeded, EventRetriesExhausted,
	} {
		if m.Can(state, ev) {
			out = append(out, ev)
		}
	}
	return out
}

func (m *Machine) Apply(sub domain.Subscription, ev Event) (Transition, error) {
	return m.ApplyWith(sub, ev, Detail{})
}

// ApplyWith returns the next snapshot of sub. The input is never modified and an
// invalid transition leaves nothing to persist.
func (m *Machine) ApplyWith(sub domain.Subscription, ev Event, d Detail) (Transition, error) {
	from := sub.State
	resolved := m.resolve(sub, ev)

	to, ok := transitions[from][resolved]
	if !ok {
		return Transition{}, apperrors.ErrInvalidTransition(string(from), string(ev))
	}

	at := d.At
	if at.IsZero() {
		at = time.Now()
	}

	next := sub
	switch resolved {
	case EventFirstAuthSucceeded:
		next.LastAuthDate = &at
		next.LastAuthStatus = authSuccess
		if d.PeriodNo != "" {
			next.PeriodNo = d.PeriodNo
		}

	case EventFirstAuthFailed:
		next.LastAuthDate = &at
		next.LastAuthStatus = authFailed
		next.CancelReason = reasonOr(d.Reason, string(resolved))

	case EventPaymentSucceeded, EventRetrySucceeded:
		completed := sub.CompletedPeriods + 1
		if completed > sub.TotalPeriods {
			return Transition{}, apperrors.ErrInvalidTransition(string(from), string(ev))
		}
		next.CompletedPeriods = completed
		next.FailedAttempts = 0
		next.LastAuthDate = &at
		next.LastAuthStatus = authSuccess
		if completed == sub.TotalPeriods {
			to = domain.SubscriptionExpired
			next.NextAuthDate = nil
		}

	case EventPaymentFailed:
		next.FailedAttempts = sub.FailedAttempts + 1
		next.LastAuthDate = &at
		next.LastAuthStatus = authFailed

	case EventRetriesExhausted:
		next.FailedAttempts = sub.FailedAttempts + 1
		next.LastAuthDate = &at
		next.LastAuthStatus = authFailed
		next.CancelReason = reasonOr(d.Reason, string(resolved))
		next.NextAuthDate = nil

	case EventUserCancelled:
		next.CancelReason = reasonOr(d.Reason, string(resolved))
		next.NextAuthDate = nil
	}

	if d.NextAuthDate != nil && !to.Terminal() {
		next.NextAuthDate = d.NextAuthDate
	}
	next.State = to

	return Transition{
		From:         from,
		To:           to,
		Requested:    ev,
		Event:        resolved,
		Subscription: next,
	}, nil
}

// resolve maps processor outcomes onto the event the current state understands.
func (m *Machine) resolve(sub domain.Subscription, ev Event) Event {
	if sub.State != domain.SubscriptionPastDue {
		return ev
	}
	switch ev {
	case EventPaymentSucceeded:
		return EventRetrySucceeded
	case EventPaymentFailed:
		if sub.FailedAttempts+1 >= m.maxRetries() {
			return EventRetriesExhausted
		}
		return EventPaymentFailed
	}
	return ev
}

func (m *Machine) resolveByState(state domain.SubscriptionState, ev Event) Event {
	if state == domain.SubscriptionPastDue && ev == EventPaymentSucceeded {
		return EventRetrySucceeded
	}
	return ev
}

func (m *Machine) maxRetries() int {
	if m.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return m.MaxRetries
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}
