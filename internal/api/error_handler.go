package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dkotelnikov/authd/internal/controller"
	"github.com/dkotelnikov/authd/internal/service"
)

// ErrorHandler маппит доменные ошибки на статусы. Обе ветки невалидных
// кредов дают один и тот же 400 с одним сообщением; три исхода ротации
// различимы (404 / 400 expired / 400 already used) — это осознанная
// асимметрия, enumeration-защита нужна только логину.
func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if status, ok := domainStatus(err); ok {
			writeJSON(c, log, status, err.Error())
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			if he.Code == http.StatusInternalServerError {
				log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI)
			}
			writeJSON(c, log, he.Code, messageString(he.Message))
			return
		}

		log.Errorw("unhandled error", "error", err, "uri", c.Request().RequestURI)
		writeJSON(c, log, http.StatusInternalServerError, "internal server error")
	}
}

func domainStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusBadRequest, true
	case errors.Is(err, service.ErrRefreshTokenNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, service.ErrRefreshTokenExpired):
		return http.StatusBadRequest, true
	case errors.Is(err, service.ErrRefreshTokenUsed):
		return http.StatusBadRequest, true
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, true
	}
	return 0, false
}

func messageString(msg interface{}) string {
	if s, ok := msg.(string); ok {
		return s
	}
	if err, ok := msg.(error); ok {
		return err.Error()
	}
	return http.StatusText(http.StatusInternalServerError)
}

func writeJSON(c echo.Context, log *zap.SugaredLogger, status int, reason string) {
	if err := c.JSON(status, controller.ErrorResponse{Reason: reason}); err != nil {
		log.Errorw("failed to write json response", "error", err)
	}
}
