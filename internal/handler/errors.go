package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/wedding-marketplace-api/internal/apperror"
)

const msgInternal = "Internal server error"

// NewHTTPErrorHandler renders every error returned by handlers and
// middleware in the failure envelope.  Internal errors are logged in full;
// in production their message is replaced with a generic one.
func NewHTTPErrorHandler(log *zap.Logger, production bool) echo.HTTPErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := classify(err, production)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Error(err))
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			log.Warn("write error response", zap.Error(werr))
		}
	}
}

func classify(err error, production bool) (int, errorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return classifyHTTP(he)
	}

	ae, ok := apperror.As(err)
	if !ok {
		ae = apperror.Internal(err)
	}
	detail := errorDetail{Code: ae.Code, Message: ae.Message, Details: ae.Details}
	if ae.Kind == apperror.KindInternal {
		detail.Details = nil
		detail.Message = msgInternal
		if !production && err != nil {
			detail.Message = err.Error()
		}
	}
	return ae.Kind.Status(), errorBody{Error: detail}
}

func classifyHTTP(he *echo.HTTPError) (int, errorBody) {
	switch he.Code {
	case http.StatusNotFound:
		return he.Code, errorBody{Error: errorDetail{Code: "ROUTE_NOT_FOUND", Message: "Route not found"}}
	case http.StatusMethodNotAllowed:
		return he.Code, errorBody{Error: errorDetail{Code: "METHOD_NOT_ALLOWED", Message: "Method not allowed"}}
	}
	msg := http.StatusText(he.Code)
	if s, ok := he.Message.(string); ok && s != "" {
		msg = s
	}
	code := strings.ToUpper(strings.ReplaceAll(http.StatusText(he.Code), " ", "_"))
	return he.Code, errorBody{Error: errorDetail{Code: code, Message: msg}}
}
