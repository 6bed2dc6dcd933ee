package conversion

import "fmt"

type Category int

const (
	BadInput Category = iota
	TooLarge
	UnsupportedFormat
	UpstreamTimeout
	UpstreamRateLimited
	UpstreamAccessRestricted
	ConversionError
	InternalError
)

func (c Category) String() string {
	switch c {
	case BadInput:
		return "BAD_INPUT"
	case TooLarge:
		return "TOO_LARGE"
	case UnsupportedFormat:
		return "UNSUPPORTED_FORMAT"
	case UpstreamTimeout:
		return "UPSTREAM_TIMEOUT"
	case UpstreamRateLimited:
		return "UPSTREAM_RATE_LIMITED"
	case UpstreamAccessRestricted:
		return "UPSTREAM_ACCESS_RESTRICTED"
	case ConversionError:
		return "CONVERSION_ERROR"
	case InternalError:
		return "INTERNAL_ERROR"
	}

	return fmt.Sprintf("UNKNOWN[%d]", int(c))
}

type HintKind string

const (
	NoHint      HintKind = ""
	Solution    HintKind = "solution"
	Workaround  HintKind = "workaround"
	Alternative HintKind = "alternative"
)

// Hint is an optional, human readable suggestion delivered alongside a failure
// to help the caller recover (e.g., "upload the file instead").
type Hint struct {
	Kind    HintKind
	Message string
}

// Failure describes why a conversion could not be completed. The Message is
// safe to return to the caller, whereas Detail is for server-side logging only.
type Failure struct {
	Category Category
	Message  string
	Hint     Hint
	Detail   string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("conversion failure (%s): %s", f.Category, f.Message)
}

func NewFailure(category Category, message string) *Failure {
	return &Failure{Category: category, Message: message}
}

func (f *Failure) WithHint(kind HintKind, message string) *Failure {
	f.Hint = Hint{Kind: kind, Message: message}
	return f
}

func (f *Failure) WithDetail(detail string) *Failure {
	f.Detail = detail
	return f
}

// Result is the outcome of a single conversion attempt. Exactly one of Audio or Failure
// is populated.
type Result struct {
	Audio   []byte
	Failure *Failure
}

func Success(audio []byte) Result    { return Result{Audio: audio} }
func Failed(failure *Failure) Result { return Result{Failure: failure} }
func (r Result) Ok() bool            { return r.Failure == nil }
