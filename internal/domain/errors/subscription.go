package errors

import (
	"fmt"
	"net/http"
)

func ErrInvalidTransition(from, event string) *AppError {
	return catalogError("INVALID_TRANSITION", http.StatusConflict).
		withDetail(fmt.Sprintf("%s does not accept %s", from, event))
}

func ErrSubscriptionConflict() *AppError {
	return catalogError("SUBSCRIPTION_CONFLICT", http.StatusConflict)
}

func ErrSubscriptionNotFound() *AppError {
	return catalogError("SUBSCRIPTION_NOT_FOUND", http.StatusNotFound)
}
