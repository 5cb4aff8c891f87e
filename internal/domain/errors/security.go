package errors

import "net/http"

// Notification rejections are 4xx on purpose: the processor retries on 5xx.

func ErrSignatureMismatch(detail string) *AppError {
	return catalogError("SIGNATURE_MISMATCH", http.StatusBadRequest).withDetail(detail)
}

func ErrUntrustedSource(addr string) *AppError {
	return catalogError("UNTRUSTED_SOURCE", http.StatusForbidden).withDetail(addr)
}

func ErrForbidden() *AppError {
	return catalogError("FORBIDDEN", http.StatusForbidden)
}
