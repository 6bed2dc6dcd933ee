package conversions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hbomb79/Aria/internal/api/gen"
	"github.com/hbomb79/Aria/internal/conversion"
	"github.com/hbomb79/Aria/pkg/logger"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"
)

type (
	// UrlRequest is the body accepted (as JSON or form values) when
	// requesting conversion of a remote video.
	UrlRequest struct {
		URL string `json:"url" form:"url" validate:"max=4096"`
	}

	MediaConverter interface {
		Convert(context.Context, io.Reader) conversion.Result
	}

	RemoteFetcher interface {
		Fetch(context.Context, string) conversion.Result
	}

	// Controller exposes the conversion endpoint. Each request is validated,
	// dispatched to either the media converter (file uploads) or the remote
	// fetcher (URLs), and the result rendered as either an MP3 attachment or
	// a JSON error.
	Controller struct {
		validate       *validator.Validate
		inputValidator *conversion.Validator
		converter      MediaConverter
		fetcher        RemoteFetcher
		slots          *semaphore.Weighted
	}
)

const (
	fileField       = "file"
	audioMIME       = "audio/mpeg"
	filePrefix      = "converted_"
	fileSuffix      = ".mp3"
	formSlack       = 1024 * 1024
	multipartMemory = 32 << 20
)

var log = logger.Get("ConversionsController")

func New(
	validate *validator.Validate,
	inputValidator *conversion.Validator,
	converter MediaConverter,
	fetcher RemoteFetcher,
	maxConcurrent int64,
) *Controller {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return &Controller{
		validate:       validate,
		inputValidator: inputValidator,
		converter:      converter,
		fetcher:        fetcher,
		slots:          semaphore.NewWeighted(maxConcurrent),
	}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/", controller.convert)
}

// convert is the single conversion entry point: validate, then convert or fetch,
// then respond. No subprocess is started unless validation succeeds.
func (controller *Controller) convert(ec echo.Context) error {
	request, failure := controller.parseRequest(ec)
	if failure == nil {
		failure = controller.inputValidator.Validate(request)
	}
	if failure != nil {
		log.Debugf("Rejected conversion request: %s (%s)\n", failure.Message, failure.Detail)
		return NewAPIError(failure)
	}

	// Subprocesses are bounded by their own timeouts; a caller disconnecting
	// does not cancel an in-flight conversion.
	ctx := context.WithoutCancel(ec.Request().Context())
	if err := controller.slots.Acquire(ec.Request().Context(), 1); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Server busy, try again later").SetInternal(err)
	}
	defer controller.slots.Release(1)

	var result conversion.Result
	switch request.Kind() {
	case conversion.FileUpload:
		result = controller.convertUpload(ctx, request.Upload)
	case conversion.RemoteURL:
		result = controller.fetcher.Fetch(ctx, request.NormalizedURL())
	default:
		return fmt.Errorf("validated request has unexpected kind %d", request.Kind())
	}

	if !result.Ok() {
		return NewAPIError(result.Failure)
	}

	return respondWithAudio(ec, result.Audio)
}

func (controller *Controller) convertUpload(ctx context.Context, upload *conversion.Upload) conversion.Result {
	file, err := upload.Open()
	if err != nil {
		return conversion.Failed(conversion.NewFailure(conversion.InternalError, gen.GenericFailureMessage).
			WithDetail(fmt.Sprintf("failed to open uploaded file %q: %v", upload.FileName, err)))
	}
	defer file.Close()

	return controller.converter.Convert(ctx, file)
}

// parseRequest extracts the conversion request from the HTTP request. The declared
// request length is checked before any of the body is read, and the body is capped
// so a request that lies about its length cannot exceed the upload limit.
func (controller *Controller) parseRequest(ec echo.Context) (conversion.Request, *conversion.Failure) {
	req := ec.Request()
	maxBody := controller.inputValidator.MaxUploadSize() + formSlack
	if req.ContentLength > maxBody {
		return conversion.Request{}, conversion.NewFailure(conversion.TooLarge, "File too large").
			WithDetail(fmt.Sprintf("declared request length %d exceeds %d", req.ContentLength, maxBody))
	}
	req.Body = http.MaxBytesReader(ec.Response(), req.Body, maxBody)

	if isMultipart(req) {
		if err := req.ParseMultipartForm(multipartMemory); err != nil {
			return conversion.Request{}, bodyFailure(err)
		}
	}

	var body UrlRequest
	if err := ec.Bind(&body); err != nil {
		return conversion.Request{}, bodyFailure(err)
	}
	if err := controller.validate.Struct(body); err != nil {
		return conversion.Request{}, conversion.NewFailure(conversion.BadInput, "Invalid URL format").WithDetail(err.Error())
	}

	request := conversion.Request{URL: body.URL}
	if req.MultipartForm != nil {
		if headers := req.MultipartForm.File[fileField]; len(headers) > 0 {
			request.Upload = newUpload(headers[0])
		}
	}

	return request, nil
}

func newUpload(header *multipart.FileHeader) *conversion.Upload {
	return &conversion.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get(echo.HeaderContentType),
		Size:        header.Size,
		Open: func() (io.ReadCloser, error) {
			return header.Open()
		},
	}
}

func bodyFailure(err error) *conversion.Failure {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return conversion.NewFailure(conversion.TooLarge, "File too large").WithDetail(err.Error())
	}

	return conversion.NewFailure(conversion.BadInput, "Please provide input").WithDetail(err.Error())
}

func isMultipart(req *http.Request) bool {
	return strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// respondWithAudio writes the MP3 audio as an attachment with a freshly generated
// filename. Caching is disabled as every response is unique.
func respondWithAudio(ec echo.Context, audio []byte) error {
	name := filePrefix + strings.ReplaceAll(uuid.NewString(), "-", "") + fileSuffix

	header := ec.Response().Header()
	header.Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	header.Set(echo.HeaderContentLength, fmt.Sprint(len(audio)))
	header.Set("Accept-Ranges", "bytes")
	header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	header.Set("Pragma", "no-cache")
	header.Set("Expires", "0")

	return ec.Blob(http.StatusOK, audioMIME, audio)
}
