package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hbomb79/Aria/internal/conversion"
	"github.com/hbomb79/Aria/pkg/logger"
	"github.com/hbomb79/Aria/pkg/process"
)

var log = logger.Get("YtDlp")

// Fetcher downloads remote videos and extracts their audio as MP3 using yt-dlp. The
// downloader performs both the retrieval and the transcode.
type Fetcher struct {
	config Config
	limits conversion.Limits
	runner process.Runner
}

func NewFetcher(config Config, limits conversion.Limits, runner process.Runner) *Fetcher {
	return &Fetcher{config: config, limits: limits, runner: runner}
}

// Fetch runs yt-dlp against the URL provided, returning the MP3 audio it writes to
// stdout. A single attempt is made; failures are classified and returned inside
// the Result.
func (fetcher *Fetcher) Fetch(ctx context.Context, url string) conversion.Result {
	cookieFile, err := fetcher.config.resolveCookieFile()
	if err != nil {
		log.Warnf("Ignoring cookie file: %v\n", err)
	} else if cookieFile != "" {
		log.Debugf("Using cookie file %s for download\n", cookieFile)
	}

	started := time.Now()
	out, err := fetcher.runner.Run(ctx, process.Command{
		Path:      fetcher.config.BinaryPath,
		Args:      fetcher.config.Arguments(url, cookieFile),
		Timeout:   fetcher.config.Timeout,
		MaxOutput: fetcher.limits.MaxOutput,
	})
	if err != nil {
		return conversion.Failed(fetcher.parseError(url, out, err))
	}

	if len(out.Stdout) == 0 {
		log.Warnf("yt-dlp exited successfully for %s but produced no audio\n", url)
		return conversion.Failed(Classify(string(out.Stderr), fetcher.limits.MaxDiagnostic))
	}

	log.Debugf("Fetched %d bytes of audio from %s in %s\n", len(out.Stdout), url, time.Since(started).Round(time.Millisecond))
	return conversion.Success(out.Stdout)
}

func (fetcher *Fetcher) parseError(url string, out *process.Output, err error) *conversion.Failure {
	var exitErr *process.ExitError
	switch {
	case errors.Is(err, process.ErrTimeout):
		log.Warnf("yt-dlp exceeded time budget of %s for %s, process group killed\n", fetcher.config.Timeout, url)
		return conversion.NewFailure(conversion.UpstreamTimeout, "Download timed out - try smaller videos")
	case errors.Is(err, process.ErrOutputLimit):
		return conversion.NewFailure(conversion.TooLarge, "Downloaded audio too large").
			WithHint(conversion.Alternative, "Try a shorter video").
			WithDetail(err.Error())
	case errors.As(err, &exitErr):
		log.Errorf("yt-dlp error (exit %d) for %s: %s\n", exitErr.Code, url, exitErr.Stderr)
		return Classify(string(exitErr.Stderr), fetcher.limits.MaxDiagnostic).WithDetail(string(exitErr.Stderr))
	}

	var stderr []byte
	if out != nil {
		stderr = out.Stderr
	}
	return conversion.NewFailure(conversion.InternalError, "Conversion failed").
		WithDetail(fmt.Sprintf("yt-dlp invocation failed: %v (stderr: %s)", err, stderr))
}
