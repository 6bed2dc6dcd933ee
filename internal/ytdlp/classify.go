package ytdlp

import (
	"strings"

	"github.com/hbomb79/Aria/internal/conversion"
)

// Signatures searched for in yt-dlp's diagnostic output. yt-dlp does not version its
// error messages, so these are best-effort and may need updating as upstream changes.
var (
	rateLimitSignatures  = []string{"429", "Too Many Requests"}
	restrictedSignatures = []string{"Sign in to confirm", "age-restricted", "inappropriate for some users"}
)

// Classify inspects the diagnostic output of a failed yt-dlp invocation and
// decides which failure category best describes it. This is a heuristic based
// on string matching: the returned failure should be treated as a best guess.
func Classify(diagnostic string, maxDiagnostic int) *conversion.Failure {
	switch {
	case containsAny(diagnostic, rateLimitSignatures):
		return conversion.NewFailure(conversion.UpstreamRateLimited, "YouTube limit reached 😢 Try again later").
			WithHint(conversion.Workaround, "Download video first, then upload file")
	case containsAny(diagnostic, restrictedSignatures):
		return conversion.NewFailure(conversion.UpstreamAccessRestricted, "Age-restricted content").
			WithHint(conversion.Solution, "Use file upload instead")
	}

	return conversion.NewFailure(conversion.ConversionError, "URL conversion failed: "+conversion.Diagnostic([]byte(diagnostic), maxDiagnostic)).
		WithHint(conversion.Alternative, "Try uploading the video file")
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}

	return false
}
