package echo

import (
	"errors"
	"net/http"
	"strings"

	echofw "github.com/labstack/echo/v4"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"go.uber.org/zap"
)

// NewHTTPErrorHandler renders every error as {code, message} in the caller's
// Accept-Language. Errors that are not AppErrors never leak their text.
func NewHTTPErrorHandler(log *zap.Logger) echofw.HTTPErrorHandler {
	return func(err error, c echofw.Context) {
		if c.Response().Committed {
			return
		}

		lang := parseAcceptLanguage(c.Request().Header.Get("Accept-Language"))

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			localized := appErr.Localize(lang)
			_ = c.JSON(localized.HTTPCode, map[string]any{
				"code":    localized.Code,
				"message": localized.Message,
			})
			return
		}

		var echoErr *echofw.HTTPError
		if errors.As(err, &echoErr) {
			_ = c.JSON(echoErr.Code, map[string]any{
				"code":    "HTTP_ERROR",
				"message": http.StatusText(echoErr.Code),
			})
			return
		}

		log.Error("unhandled error",
			zap.Any("trace_id", c.Get("trace_id")),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
		internalErr := apperrors.ErrInternal().Localize(lang)
		_ = c.JSON(http.StatusInternalServerError, map[string]any{
			"code":    internalErr.Code,
			"message": internalErr.Message,
		})
	}
}

func parseAcceptLanguage(header string) string {
	if header == "" {
		return "en"
	}
	lang := strings.TrimSpace(strings.Split(header, ",")[0])
	return strings.Split(lang, ";")[0]
}
