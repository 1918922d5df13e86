package errors

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// FiberErrorHandler renders every error returned by a handler as the JSON
// error envelope. In production, 5xx messages are replaced with a generic text.
func FiberErrorHandler(logger *slog.Logger, production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var httpErr *HTTPError

		var fiberErr *fiber.Error
		if stderrors.As(err, &fiberErr) {
			httpErr = &HTTPError{
				StatusCode: fiberErr.Code,
				Message:    fiberErr.Message,
				Code:       codeForStatus(fiberErr.Code),
			}
		} else {
			httpErr = MapErrorToHTTP(err, !production)
		}

		if httpErr.StatusCode >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"status", httpErr.StatusCode,
				"error", err,
			)
			if production && httpErr.StatusCode == http.StatusInternalServerError {
				httpErr.Message = ErrInternal.Message
			}
		}

		return c.Status(httpErr.StatusCode).JSON(httpErr.ToErrorResponse())
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(KindValidation)
	case http.StatusUnauthorized:
		return string(KindUnauthorized)
	case http.StatusForbidden:
		return string(KindForbidden)
	case http.StatusNotFound:
		return string(KindNotFound)
	case http.StatusConflict:
		return string(KindConflict)
	case http.StatusBadGateway:
		return string(KindUpstream)
	}
	if status >= http.StatusInternalServerError {
		return string(KindInternal)
	}
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}
