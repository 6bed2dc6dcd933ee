package gen

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hbomb79/Aria/pkg/logger"
	"github.com/labstack/echo/v4"
)

// GenericFailureMessage is returned to the caller for any failure which is
// not explicitly described by an APIError.
const GenericFailureMessage = "Conversion failed"

type APIError struct {
	// Human readable error display message
	Message string `json:"error"`

	// A machine readable and stable identifier for the error case being represented
	Code string `json:"code"`

	// Optional hints, shown to the caller to help them recover from the failure
	Solution    string `json:"solution,omitempty"`
	Workaround  string `json:"workaround,omitempty"`
	Alternative string `json:"alternative,omitempty"`

	// Used to alter the HTTP response status in accordance with the error
	Status int `json:"-"`

	// Additional message for internal logging only. Will not be included in the message
	// sent to the user.
	InternalMessage string `json:"-"`
}

// Error satisifies the Go error interface and simply exposes the
// message contained by this APIError.
func (err APIError) Error() string {
	return fmt.Sprintf("api error: %s", err.Message)
}

// GetHTTPErrorHandler returns an echo HTTP error handler which understands how
// to interpret APIError. Echo's own HTTPErrors (e.g. unknown route) are rendered in
// the same shape, and anything else (including recovered panics) results in a
// generic 500 whose cause is only logged.
func GetHTTPErrorHandler() echo.HTTPErrorHandler {
	log := logger.Get("API")
	return func(err error, ctx echo.Context) {
		if ctx.Response().Committed {
			log.Warnf("Error %v occurred after response was committed\n", err)
			return
		}

		var apiErr APIError
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &httpErr):
			apiErr = APIError{Status: httpErr.Code, Message: fmt.Sprint(httpErr.Message)}
			if httpErr.Internal != nil {
				apiErr.InternalMessage = httpErr.Internal.Error()
			}
		default:
			log.Errorf(
				"%s request to %s failed unexpectedly: %v\n",
				ctx.Request().Method, ctx.Request().RequestURI, err,
			)
			apiErr = APIError{Status: http.StatusInternalServerError, Message: GenericFailureMessage, Code: "INTERNAL_ERROR"}
		}

		if apiErr.Status == 0 {
			apiErr.Status = http.StatusInternalServerError
		}
		if len(apiErr.Message) == 0 {
			apiErr.Message = http.StatusText(apiErr.Status)
		}
		if len(apiErr.Code) == 0 {
			apiErr.Code = http.StatusText(apiErr.Status)
		}
		if len(apiErr.InternalMessage) > 0 {
			log.Errorf("Request failure, internal error: %s\n", apiErr.InternalMessage)
		}

		var writeErr error
		if ctx.Request().Method == http.MethodHead {
			writeErr = ctx.NoContent(apiErr.Status)
		} else {
			writeErr = ctx.JSON(apiErr.Status, apiErr)
		}
		if writeErr != nil {
			log.Errorf("Failed to write error response: %v\n", writeErr)
		}
	}
}
