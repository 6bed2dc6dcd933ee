package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hbomb79/Aria/internal/conversion"
	"github.com/hbomb79/Aria/pkg/logger"
	"github.com/hbomb79/Aria/pkg/process"
)

var log = logger.Get("FFmpeg")

// Converter extracts MP3 audio from arbitrary video input by piping it
// through an ffmpeg subprocess.
type Converter struct {
	config Config
	limits conversion.Limits
	runner process.Runner
}

func NewConverter(config Config, limits conversion.Limits, runner process.Runner) *Converter {
	return &Converter{config: config, limits: limits, runner: runner}
}

// Convert feeds the input to ffmpeg via stdin and returns the MP3 audio written
// to stdout. Any failure of the subprocess is returned as a conversion.Failure
// inside the Result rather than as an error.
func (converter *Converter) Convert(ctx context.Context, input io.Reader) conversion.Result {
	started := time.Now()
	out, err := converter.runner.Run(ctx, process.Command{
		Path:      converter.config.FfmpegBinaryPath,
		Args:      converter.config.Arguments(),
		Stdin:     input,
		Timeout:   converter.config.Timeout,
		MaxOutput: converter.limits.MaxOutput,
	})
	if err != nil {
		return conversion.Failed(converter.parseFfmpegError(out, err))
	}

	if len(out.Stdout) == 0 {
		log.Warnf("FFmpeg exited successfully but produced no audio\n")
		return conversion.Failed(conversion.NewFailure(conversion.ConversionError, "Conversion error: no audio stream produced"))
	}

	log.Debugf("Extracted %d bytes of audio in %s\n", len(out.Stdout), time.Since(started).Round(time.Millisecond))
	return conversion.Success(out.Stdout)
}

// parseFfmpegError converts a subprocess error in to a conversion failure. Only the
// diagnostic output of ffmpeg itself is ever forwarded to the caller.
func (converter *Converter) parseFfmpegError(out *process.Output, err error) *conversion.Failure {
	var exitErr *process.ExitError
	switch {
	case errors.Is(err, process.ErrTimeout):
		log.Warnf("FFmpeg exceeded time budget of %s, process group killed\n", converter.config.Timeout)
		return conversion.NewFailure(conversion.UpstreamTimeout, "Conversion timed out").
			WithHint(conversion.Solution, "Try a shorter video")
	case errors.Is(err, process.ErrOutputLimit):
		return conversion.NewFailure(conversion.TooLarge, "Converted audio too large").
			WithDetail(err.Error())
	case errors.As(err, &exitErr):
		diagnostic := conversion.Diagnostic(exitErr.Stderr, converter.limits.MaxDiagnostic)
		log.Errorf("FFmpeg error (exit %d): %s\n", exitErr.Code, diagnostic)
		return conversion.NewFailure(conversion.ConversionError, fmt.Sprintf("Conversion error: %s", diagnostic)).
			WithDetail(string(exitErr.Stderr))
	}

	var stderr []byte
	if out != nil {
		stderr = out.Stderr
	}
	return conversion.NewFailure(conversion.InternalError, "Conversion failed").
		WithDetail(fmt.Sprintf("ffmpeg invocation failed: %v (stderr: %s)", err, stderr))
}
