package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorImplementsErrorInterface(t *testing.T) {
	var err error = &AppError{
		Code:     "TEST_CODE",
		Message:  "test message",
		HTTPCode: http.StatusBadRequest,
	}

	assert.NotNil(t, err)
	assert.Implements(t, (*error)(nil), &AppError{})
}

func TestNewAppErrorDefaultsToEnglish(t *testing.T) {
	appErr := newAppError("TEST_CODE", http.StatusNotFound, Messages{
		"en": "not found",
		"zh": "找不到",
	})

	assert.Equal(t, "TEST_CODE", appErr.Code)
	assert.Equal(t, "not found", appErr.Message)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPCode)
}

func TestErrorReturnsFormattedString(t *testing.T) {
	appErr := newAppError("TEST_CODE", http.StatusBadRequest, Messages{
		"en": "test message",
	})

	assert.Equal(t, "TEST_CODE: test message", appErr.Error())
}

func TestLocalize_ReturnsChinese(t *testing.T) {
	appErr := newAppError("TEST_CODE", http.StatusNotFound, Messages{
		"en": "not found",
		"zh": "找不到",
	})

	localized := appErr.Localize("zh")
	assert.Equal(t, "找不到", localized.Message)
	assert.Equal(t, "TEST_CODE", localized.Code)
	assert.Equal(t, http.StatusNotFound, localized.HTTPCode)
}

func TestLocalize_FallsBackToEnglishForUnknownLanguage(t *testing.T) {
	appErr := newAppError("TEST_CODE", http.StatusNotFound, Messages{
		"en": "not found",
		"zh": "找不到",
	})

	localized := appErr.Localize("fr")
	assert.Equal(t, "not found", localized.Message)
}

func TestLocalize_ExtractsBaseLanguageFromLocale(t *testing.T) {
	appErr := newAppError("TEST_CODE", http.StatusNotFound, Messages{
		"en": "not found",
		"zh": "找不到",
	})

	localized := appErr.Localize("zh-TW")
	assert.Equal(t, "找不到", localized.Message)
}

func TestLocalize_PreservesOriginal(t *testing.T) {
	original := newAppError("TEST_CODE", http.StatusNotFound, Messages{
		"en": "not found",
		"zh": "找不到",
	})

	localized := original.Localize("zh")
	assert.Equal(t, "找不到", localized.Message)
	assert.Equal(t, "not found", original.Message)
}

func TestWithDetail_AppendsToEveryLanguage(t *testing.T) {
	appErr := newAppError("TEST_CODE", http.StatusBadRequest, Messages{
		"en": "bad input",
		"zh": "輸入錯誤",
	}).withDetail("amount")

	assert.Equal(t, "bad input: amount", appErr.Message)
	assert.Equal(t, "輸入錯誤: amount", appErr.Localize("zh").Message)
}

func TestIs_MatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("create payment: %w", ErrRequestInFlight())

	assert.True(t, stderrors.Is(wrapped, ErrRequestInFlight()))
	assert.False(t, stderrors.Is(wrapped, ErrPreviousAttemptFailed()))
}
