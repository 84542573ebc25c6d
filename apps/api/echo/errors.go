package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/umirovdev/maktab/core"
	"github.com/umirovdev/maktab/core/auth"
	"github.com/umirovdev/maktab/core/school"
	"github.com/umirovdev/maktab/core/user"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	errNoFileUpload  = echo.NewHTTPError(http.StatusBadRequest, "No file uploaded")
	errFileTooLarge  = echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File too large")
)

// domainHTTPError maps well-known domain errors to their HTTP status and
// client-facing message. Credential and token failures stay
// undifferentiated; the handlers never leak which check failed.
func domainHTTPError(cause error) (int, string, bool) {
	switch cause {
	case auth.ErrInvalidCredentials:
		return http.StatusUnauthorized, "Invalid credentials", true
	case auth.ErrInvalidRefreshToken:
		return http.StatusUnauthorized, "Invalid refresh token", true
	case auth.ErrIncorrectPassword:
		return http.StatusBadRequest, "Incorrect password", true
	case user.ErrNotFound:
		return http.StatusNotFound, "User not found", true
	case user.ErrUsernameExists:
		return http.StatusBadRequest, "A user with this username already exists", true
	case school.ErrForbidden:
		return http.StatusForbidden, "Forbidden", true
	case school.ErrSubjectNotFound:
		return http.StatusNotFound, "Subject not found", true
	case school.ErrGroupNotFound:
		return http.StatusNotFound, "Group not found", true
	case school.ErrLessonNotFound:
		return http.StatusNotFound, "Lesson not found", true
	case school.ErrAssignmentNotFound:
		return http.StatusNotFound, "Assignment not found", true
	case school.ErrStudentNotFound:
		return http.StatusNotFound, "Student not found", true
	}
	return 0, "", false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if c, m, ok := domainHTTPError(errors.Cause(err)); ok {
			code = c
			message = m
		} else {
			switch origErr := errors.Cause(err).(type) {
			case *echo.HTTPError:
				if origErr == middleware.ErrJWTMissing {
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
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				}
				code = http.StatusBadRequest
				message = fldErrs
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Username = claims.Username
				}
				logger.Error(msg, errors.Wrap(err, msg), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
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
