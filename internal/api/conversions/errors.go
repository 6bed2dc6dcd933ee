package conversions

import (
	"net/http"

	"github.com/hbomb79/Aria/internal/api/gen"
	"github.com/hbomb79/Aria/internal/conversion"
)

// StatusForCategory maps a failure category on to the HTTP status
// returned to the caller.
func StatusForCategory(category conversion.Category) int {
	switch category {
	case conversion.BadInput, conversion.UnsupportedFormat, conversion.TooLarge:
		return http.StatusBadRequest
	case conversion.UpstreamAccessRestricted:
		return http.StatusForbidden
	case conversion.UpstreamTimeout:
		return http.StatusRequestTimeout
	case conversion.UpstreamRateLimited:
		return http.StatusTooManyRequests
	}

	return http.StatusInternalServerError
}

// NewAPIError converts a conversion failure in to the APIError used to render
// the JSON error response. The failure detail is kept for logging only.
func NewAPIError(failure *conversion.Failure) gen.APIError {
	apiErr := gen.APIError{
		Message:         failure.Message,
		Code:            failure.Category.String(),
		Status:          StatusForCategory(failure.Category),
		InternalMessage: failure.Detail,
	}

	if failure.Category == conversion.InternalError {
		apiErr.Message = gen.GenericFailureMessage
	}

	switch failure.Hint.Kind {
	case conversion.Solution:
		apiErr.Solution = failure.Hint.Message
	case conversion.Workaround:
		apiErr.Workaround = failure.Hint.Message
	case conversion.Alternative:
		apiErr.Alternative = failure.Hint.Message
	}

	return apiErr
}
