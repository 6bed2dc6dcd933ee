package conversion

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/labstack/gommon/bytes"
)

type Kind int

const (
	NoInput Kind = iota
	FileUpload
	RemoteURL
	AmbiguousInput
)

type (
	// Upload describes a file provided by the caller. The body of the file is
	// only accessible via Open, so that validation can be performed
	// using the declared metadata alone.
	Upload struct {
		FileName    string
		ContentType string
		Size        int64
		Open        func() (io.ReadCloser, error)
	}

	// Request is a single conversion request. Exactly one of Upload or URL
	// should be populated.
	Request struct {
		Upload *Upload
		URL    string
	}

	Validator struct {
		maxUploadSize int64
		matchMode     MatchMode
		contentTypes  map[string]struct{}
		extensions    map[string]struct{}
	}
)

func (req Request) Kind() Kind {
	hasFile := req.Upload != nil
	hasURL := strings.TrimSpace(req.URL) != ""
	switch {
	case hasFile && hasURL:
		return AmbiguousInput
	case hasFile:
		return FileUpload
	case hasURL:
		return RemoteURL
	}

	return NoInput
}

// NormalizedURL returns the requested URL with surrounding whitespace removed.
func (req Request) NormalizedURL() string { return strings.TrimSpace(req.URL) }

func NewValidator(config Config) (*Validator, error) {
	maxSize, err := bytes.Parse(config.MaxUploadSize)
	if err != nil {
		return nil, fmt.Errorf("illegal max upload size %q: %w", config.MaxUploadSize, err)
	}

	validator := &Validator{
		maxUploadSize: maxSize,
		matchMode:     config.UploadMatchMode,
		contentTypes:  make(map[string]struct{}, len(config.AllowedContentTypes)),
		extensions:    make(map[string]struct{}, len(config.AllowedExtensions)),
	}
	for _, ct := range config.AllowedContentTypes {
		validator.contentTypes[strings.ToLower(strings.TrimSpace(ct))] = struct{}{}
	}
	for _, ext := range config.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		validator.extensions[ext] = struct{}{}
	}
	if validator.matchMode == "" {
		validator.matchMode = MatchAll
	}

	return validator, nil
}

// MaxUploadSize returns the largest upload, in bytes, this validator will accept.
func (v *Validator) MaxUploadSize() int64 { return v.maxUploadSize }

// Validate inspects the request and returns a Failure if it must be rejected. A nil
// return indicates the request was accepted. The body of an upload is never read.
func (v *Validator) Validate(req Request) *Failure {
	switch req.Kind() {
	case NoInput, AmbiguousInput:
		return NewFailure(BadInput, "Please provide input").
			WithHint(Solution, "Provide exactly one of 'file' or 'url'")
	case FileUpload:
		return v.validateUpload(req.Upload)
	case RemoteURL:
		return v.validateURL(req.NormalizedURL())
	}

	return NewFailure(InternalError, "Conversion failed")
}

func (v *Validator) validateUpload(upload *Upload) *Failure {
	typeOk := v.contentTypeAllowed(upload.ContentType)
	extOk := v.extensionAllowed(upload.FileName)

	var allowed bool
	if v.matchMode == MatchAny {
		allowed = typeOk || extOk
	} else {
		allowed = typeOk && extOk
	}
	if !allowed {
		return NewFailure(UnsupportedFormat, "Unsupported file format").
			WithDetail(fmt.Sprintf("content type %q (allowed=%v), file name %q (allowed=%v)", upload.ContentType, typeOk, upload.FileName, extOk))
	}

	if upload.Size > v.maxUploadSize {
		return NewFailure(TooLarge, "File too large").
			WithDetail(fmt.Sprintf("declared size %s exceeds limit of %s", bytes.Format(upload.Size), bytes.Format(v.maxUploadSize)))
	}

	return nil
}

func (v *Validator) validateURL(url string) *Failure {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return NewFailure(BadInput, "Invalid URL format")
	}

	return nil
}

func (v *Validator) contentTypeAllowed(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	_, ok := v.contentTypes[strings.ToLower(mediaType)]
	return ok
}

func (v *Validator) extensionAllowed(fileName string) bool {
	_, ok := v.extensions[strings.ToLower(filepath.Ext(fileName))]
	return ok
}
