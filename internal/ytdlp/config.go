package ytdlp

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config controls the yt-dlp invocation used to download and extract audio
// from remote videos. Throttle and sleep values are intentionally conservative
// to reduce the likelihood of being rate-limited upstream.
// Fields which may legitimately be zero take their default from DefaultConfig.
type Config struct {
	BinaryPath     string        `toml:"binary_path" env:"YTDLP_BINARY_PATH" env-default:"/usr/local/bin/yt-dlp" validate:"required"`
	AudioQuality   string        `toml:"audio_quality" env:"YTDLP_AUDIO_QUALITY" env-default:"192k" validate:"required"`
	ThrottledRate  string        `toml:"throttled_rate" env:"YTDLP_THROTTLED_RATE"`
	SleepInterval  int           `toml:"sleep_interval" env:"YTDLP_SLEEP_INTERVAL" validate:"gte=0"`
	Referer        string        `toml:"referer" env:"YTDLP_REFERER"`
	UserAgent      string        `toml:"user_agent" env:"YTDLP_USER_AGENT"`
	EmbedThumbnail bool          `toml:"embed_thumbnail" env:"YTDLP_EMBED_THUMBNAIL"`
	EmbedMetadata  bool          `toml:"embed_metadata" env:"YTDLP_EMBED_METADATA"`
	ID3Version     int           `toml:"id3v2_version" env:"YTDLP_ID3V2_VERSION" validate:"oneof=0 3 4"`
	CookieFilePath string        `toml:"cookie_file" env:"YTDLP_COOKIE_FILE"`
	Proxy          string        `toml:"proxy" env:"ARIA_DOWNLOAD_PROXY" validate:"omitempty,url"`
	Timeout        time.Duration `toml:"timeout" env:"YTDLP_TIMEOUT" env-default:"300s"`
}

func DefaultConfig() Config {
	return Config{
		BinaryPath:     "/usr/local/bin/yt-dlp",
		AudioQuality:   "192k",
		ThrottledRate:  "50K",
		SleepInterval:  30,
		Referer:        "https://www.google.com/",
		UserAgent:      defaultUserAgent,
		EmbedThumbnail: false,
		EmbedMetadata:  true,
		ID3Version:     3,
		CookieFilePath: "cookies.txt",
		Timeout:        300 * time.Second,
	}
}

// resolveCookieFile expands the configured cookie file path (supporting '~') and
// returns it only if a regular file exists there.
func (config Config) resolveCookieFile() (string, error) {
	if config.CookieFilePath == "" {
		return "", nil
	}

	path, err := homedir.Expand(config.CookieFilePath)
	if err != nil {
		return "", fmt.Errorf("failed to expand cookie file path %q: %w", config.CookieFilePath, err)
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", nil
	}

	return path, nil
}

// Arguments builds the yt-dlp argument list for the URL provided. The cookie file
// path, if any, must already be resolved.
func (config Config) Arguments(url string, cookieFile string) []string {
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	args := []string{
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", config.AudioQuality,
		"--output", "-",
		"--quiet",
		"--no-warnings",
		"--no-progress",
		"--no-playlist",
		"--force-ipv4",
		"--user-agent", userAgent,
	}

	if config.EmbedThumbnail {
		args = append(args, "--embed-thumbnail")
	}
	if config.EmbedMetadata {
		args = append(args, "--embed-metadata")
	}
	if config.ID3Version > 0 {
		args = append(args, "--postprocessor-args", fmt.Sprintf("ffmpeg:-id3v2_version %d", config.ID3Version))
	}
	if config.ThrottledRate != "" {
		args = append(args, "--throttled-rate", config.ThrottledRate)
	}
	if config.SleepInterval > 0 {
		args = append(args, "--sleep-interval", fmt.Sprint(config.SleepInterval))
	}
	if config.Referer != "" {
		args = append(args, "--referer", config.Referer)
	}
	if cookieFile != "" {
		args = append(args, "--cookies", cookieFile)
	}
	if config.Proxy != "" {
		args = append(args, "--proxy", config.Proxy)
	}

	// Terminate option parsing so a URL beginning with '-' can never be
	// interpreted as a flag.
	return append(args, "--", url)
}
