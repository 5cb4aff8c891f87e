package errors

import (
	"fmt"
	"net/http"
	"time"
)

func ErrInvalidPaymentRequest(detail string) *AppError {
	return catalogError("INVALID_PAYMENT_REQUEST", http.StatusBadRequest).withDetail(detail)
}

func ErrInvalidSubscriptionRequest(detail string) *AppError {
	return catalogError("INVALID_SUBSCRIPTION_REQUEST", http.StatusBadRequest).withDetail(detail)
}

func ErrOrderNoReused() *AppError {
	return catalogError("ORDER_NO_REUSED", http.StatusUnprocessableEntity)
}

func ErrIdempotencyKeyTooLong() *AppError {
	return catalogError("IDEMPOTENCY_KEY_TOO_LONG", http.StatusBadRequest)
}

func ErrUserIDMissing() *AppError {
	return catalogError("USER_ID_MISSING", http.StatusUnauthorized)
}

func ErrRequestInFlight() *AppError {
	return catalogError("REQUEST_IN_FLIGHT", http.StatusConflict)
}

func ErrPreviousAttemptFailed() *AppError {
	return catalogError("PREVIOUS_ATTEMPT_FAILED", http.StatusConflict)
}

func ErrOrderNotFound() *AppError {
	return catalogError("ORDER_NOT_FOUND", http.StatusNotFound)
}

func ErrIdempotencyKeyNotFound() *AppError {
	return catalogError("IDEMPOTENCY_KEY_NOT_FOUND", http.StatusNotFound)
}

func ErrRateLimited(resetAt time.Time) *AppError {
	return catalogError("RATE_LIMITED", http.StatusTooManyRequests).
		withDetail(fmt.Sprintf("retry after %s", resetAt.UTC().Format(time.RFC3339)))
}

func ErrGatewayUnavailable(detail string) *AppError {
	return catalogError("GATEWAY_UNAVAILABLE", http.StatusBadGateway).withDetail(detail)
}

func ErrGatewayRejected(detail string) *AppError {
	return catalogError("GATEWAY_REJECTED", http.StatusBadGateway).withDetail(detail)
}

func ErrInternal() *AppError {
	return catalogError("INTERNAL_ERROR", http.StatusInternalServerError)
}
