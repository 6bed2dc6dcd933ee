package conversion

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/labstack/gommon/bytes"
)

var ansiEscapeMatcher = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

// Limits bounds the amount of data a converter is permitted to buffer or echo back.
type Limits struct {
	MaxOutput     int64
	MaxDiagnostic int
}

func (config Config) Limits() (Limits, error) {
	maxOutput, err := bytes.Parse(config.MaxOutputSize)
	if err != nil {
		return Limits{}, fmt.Errorf("illegal max output size %q: %w", config.MaxOutputSize, err)
	}

	return Limits{MaxOutput: maxOutput, MaxDiagnostic: config.MaxDiagnosticBytes}, nil
}

// Diagnostic cleans up the diagnostic output of an external tool so that it is safe to
// return to a caller: terminal escape sequences and control characters are removed and
// only the trailing limit bytes are retained (the interesting part of ffmpeg/yt-dlp
// output is almost always the end).
func Diagnostic(stderr []byte, limit int) string {
	cleaned := ansiEscapeMatcher.ReplaceAllString(string(stderr), "")
	cleaned = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == utf8.RuneError || unicode.IsControl(r) {
			return -1
		}
		return r
	}, cleaned)
	cleaned = strings.TrimSpace(cleaned)

	if limit <= 0 || len(cleaned) <= limit {
		return cleaned
	}

	cut := len(cleaned) - limit
	for cut < len(cleaned) && !utf8.RuneStart(cleaned[cut]) {
		cut++
	}

	return "..." + strings.TrimLeftFunc(cleaned[cut:], unicode.IsSpace)
}
