package errors

var messages = map[string]map[string]string{
	"en": {
		"INVALID_PAYMENT_REQUEST":      "invalid payment request",
		"INVALID_SUBSCRIPTION_REQUEST": "invalid subscription request",
		"ORDER_NO_REUSED":              "order number was already used with a different request",
		"IDEMPOTENCY_KEY_TOO_LONG":     "X-Idempotency-Key must be at most 64 characters",
		"USER_ID_MISSING":              "X-User-Id header is required",
		"SIGNATURE_MISMATCH":           "notification signature could not be verified",
		"UNTRUSTED_SOURCE":             "notification source is not trusted",
		"RATE_LIMITED":                 "too many requests, try again later",
		"REQUEST_IN_FLIGHT":            "an identical request is currently being processed",
		"PREVIOUS_ATTEMPT_FAILED":      "an identical request already failed; change the request before retrying",
		"INVALID_TRANSITION":           "subscription cannot accept this event in its current state",
		"SUBSCRIPTION_CONFLICT":        "subscription was modified concurrently, retry the operation",
		"ORDER_NOT_FOUND":              "order not found",
		"SUBSCRIPTION_NOT_FOUND":       "subscription not found",
		"IDEMPOTENCY_KEY_NOT_FOUND":    "idempotency key not found",
		"FORBIDDEN":                    "resource belongs to another user",
		"GATEWAY_UNAVAILABLE":          "payment gateway is unavailable",
		"GATEWAY_REJECTED":             "payment gateway rejected the request",
		"INTERNAL_ERROR":               "an internal error occurred",
	},
	"zh": {
		"INVALID_PAYMENT_REQUEST":      "付款請求格式錯誤",
		"INVALID_SUBSCRIPTION_REQUEST": "定期定額請求格式錯誤",
		"ORDER_NO_REUSED":              "訂單編號已用於不同的請求",
		"IDEMPOTENCY_KEY_TOO_LONG":     "X-Idempotency-Key 長度不可超過 64 字元",
		"USER_ID_MISSING":              "缺少 X-User-Id 標頭",
		"SIGNATURE_MISMATCH":           "通知簽章驗證失敗",
		"UNTRUSTED_SOURCE":             "通知來源不在允許清單內",
		"RATE_LIMITED":                 "請求過於頻繁，請稍後再試",
		"REQUEST_IN_FLIGHT":            "相同的請求正在處理中",
		"PREVIOUS_ATTEMPT_FAILED":      "相同的請求先前已失敗，請修改後再重試",
		"INVALID_TRANSITION":           "訂閱目前的狀態不允許此操作",
		"SUBSCRIPTION_CONFLICT":        "訂閱資料已被同時修改，請重試",
		"ORDER_NOT_FOUND":              "找不到訂單",
		"SUBSCRIPTION_NOT_FOUND":       "找不到訂閱",
		"IDEMPOTENCY_KEY_NOT_FOUND":    "找不到冪等鍵",
		"FORBIDDEN":                    "無權存取此資源",
		"GATEWAY_UNAVAILABLE":          "金流服務暫時無法使用",
		"GATEWAY_REJECTED":             "金流服務拒絕此請求",
		"INTERNAL_ERROR":               "系統發生錯誤",
	},
}

func GetMessage(code string, lang string) string {
	base := baseLanguage(lang)

	if langMessages, ok := messages[base]; ok {
		if msg, ok := langMessages[code]; ok {
			return msg
		}
	}

	if base != "en" {
		if msg, ok := messages["en"][code]; ok {
			return msg
		}
	}

	return code
}

func Localize(err *AppError, lang string) *AppError {
	return err.Localize(lang)
}
