package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/assignment"
	"github.com/trezcool/reportal/core/report"
	"github.com/trezcool/reportal/core/user"
)

var (
	errUnauthorized    = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errRefreshExpired  = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden   = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound    = echo.NewHTTPError(http.StatusNotFound, "not found")
	errTooManyRequests = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
)

// sentinelHTTPError maps the domain sentinel errors to HTTP errors, nil if err is not one of them.
// Not found and permission errors get generic messages.
func sentinelHTTPError(err error) *echo.HTTPError {
	switch err {
	case user.ErrNotFound, report.ErrNotFound, report.ErrFeedbackNotFound, report.ErrFileNotRetrievable, assignment.ErrNotFound:
		return errHttpNotFound
	case user.ErrForbidden, report.ErrForbidden:
		return errHttpForbidden
	case user.ErrInvalidCredentials, user.ErrNotPending:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case user.ErrPendingApproval, user.ErrRegistrationRejected, user.ErrAccountDeactivated:
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	return nil
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if herr := sentinelHTTPError(cause); herr != nil {
			cause = herr
		}

		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr.Message == middleware.ErrJWTMissing.Message {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = core.TranslateErrors(origErr, translator)
		case *core.ValidationError:
			code = http.StatusBadRequest
			message = origErr.Payload()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			usr, _ := ctx.Get(contextUserKey).(user.User)
			if usr.ID == "" {
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Username = claims.Username
				}
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			if ctx.Echo().Debug {
				message = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
