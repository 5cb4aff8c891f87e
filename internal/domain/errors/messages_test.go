package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetMessageReturnsEnglishMessage(t *testing.T) {
	msg := GetMessage("USER_ID_MISSING", "en")

	assert.Equal(t, "X-User-Id header is required", msg)
}

func TestGetMessageReturnsChineseMessage(t *testing.T) {
	msg := GetMessage("ORDER_NOT_FOUND", "zh")

	assert.Equal(t, "找不到訂單", msg)
}

func TestGetMessageFallsBackToEnglishForUnknownLanguage(t *testing.T) {
	msg := GetMessage("ORDER_NOT_FOUND", "fr")

	assert.Equal(t, "order not found", msg)
}

func TestGetMessageExtractsBaseLanguageFromLocale(t *testing.T) {
	msg := GetMessage("SUBSCRIPTION_NOT_FOUND", "zh-TW")

	assert.Equal(t, "找不到訂閱", msg)
}

func TestGetMessageReturnsCodeForUnknownCode(t *testing.T) {
	msg := GetMessage("UNKNOWN_ERROR_CODE", "en")

	assert.Equal(t, "UNKNOWN_ERROR_CODE", msg)
}

func TestCatalogHasChineseForEveryEnglishCode(t *testing.T) {
	for code := range messages["en"] {
		_, ok := messages["zh"][code]
		assert.True(t, ok, "missing zh message for %s", code)
	}
}

func TestLocalizeReturnsCopyWithLocalizedMessage(t *testing.T) {
	original := ErrOrderNotFound()

	localized := Localize(original, "zh")

	assert.Equal(t, "ORDER_NOT_FOUND", localized.Code)
	assert.Equal(t, "找不到訂單", localized.Message)
	assert.Equal(t, "order not found", original.Message)
}
