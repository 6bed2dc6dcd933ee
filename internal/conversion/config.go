package conversion

type MatchMode string

const (
	// MatchAll requires both the declared content type and the file extension to be allowed.
	MatchAll MatchMode = "all"
	// MatchAny accepts an upload if either its content type or its extension is allowed.
	MatchAny MatchMode = "any"
)

type Config struct {
	MaxUploadSize       string    `toml:"max_upload_size" env:"CONVERSION_MAX_UPLOAD_SIZE" env-default:"500MiB" validate:"required"`
	MaxOutputSize       string    `toml:"max_output_size" env:"CONVERSION_MAX_OUTPUT_SIZE" env-default:"500MiB" validate:"required"`
	MaxDiagnosticBytes  int       `toml:"max_diagnostic_bytes" env:"CONVERSION_MAX_DIAGNOSTIC_BYTES" validate:"gte=0"`
	MaxConcurrent       int64     `toml:"max_concurrent" env:"CONVERSION_MAX_CONCURRENT" env-default:"4" validate:"gte=1"`
	UploadMatchMode     MatchMode `toml:"upload_match_mode" env:"CONVERSION_UPLOAD_MATCH_MODE" env-default:"all" validate:"oneof=all any"`
	AllowedContentTypes []string  `toml:"allowed_content_types" env:"CONVERSION_ALLOWED_CONTENT_TYPES" env-default:"video/mp4,video/quicktime,video/x-msvideo,video/mpeg,video/webm"`
	AllowedExtensions   []string  `toml:"allowed_extensions" env:"CONVERSION_ALLOWED_EXTENSIONS" env-default:".mp4,.mov,.avi,.mkv,.webm"`
}

// DefaultConfig returns the configuration used when no file or environment
// overrides are present.
func DefaultConfig() Config {
	return Config{
		MaxUploadSize:       "500MiB",
		MaxOutputSize:       "500MiB",
		MaxDiagnosticBytes:  2048,
		MaxConcurrent:       4,
		UploadMatchMode:     MatchAll,
		AllowedContentTypes: []string{"video/mp4", "video/quicktime", "video/x-msvideo", "video/mpeg", "video/webm"},
		AllowedExtensions:   []string{".mp4", ".mov", ".avi", ".mkv", ".webm"},
	}
}
