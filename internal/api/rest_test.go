package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/hbomb79/Aria/internal/api"
	"github.com/hbomb79/Aria/internal/conversion"
	"github.com/labstack/gommon/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const convertPath = "/api/aria/v1/convert/"

var filenameMatcher = regexp.MustCompile(`^attachment; filename="converted_[0-9a-f]{32}\.mp3"$`)

type (
	fakeConverter struct {
		sync.Mutex
		inputs [][]byte
		result conversion.Result
		panics bool
	}

	fakeFetcher struct {
		sync.Mutex
		urls   []string
		result conversion.Result
	}

	errorBody struct {
		Error       string `json:"error"`
		Code        string `json:"code"`
		Solution    string `json:"solution"`
		Workaround  string `json:"workaround"`
		Alternative string `json:"alternative"`
	}
)

func (c *fakeConverter) Convert(_ context.Context, r io.Reader) conversion.Result {
	c.Lock()
	defer c.Unlock()
	if c.panics {
		panic("converter exploded")
	}

	input, _ := io.ReadAll(r)
	c.inputs = append(c.inputs, input)
	return c.result
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) conversion.Result {
	f.Lock()
	defer f.Unlock()
	f.urls = append(f.urls, url)
	return f.result
}

type harness struct {
	gateway   *api.RestGateway
	converter *fakeConverter
	fetcher   *fakeFetcher
}

func newHarness(t *testing.T, mutate ...func(*api.RestConfig, *conversion.Config)) *harness {
	restConfig := &api.RestConfig{HostAddr: "127.0.0.1:0"}
	conversionConfig := conversion.DefaultConfig()
	for _, m := range mutate {
		m(restConfig, &conversionConfig)
	}

	inputValidator, err := conversion.NewValidator(conversionConfig)
	require.NoError(t, err)

	h := &harness{
		converter: &fakeConverter{result: conversion.Success([]byte("ID3converted-audio"))},
		fetcher:   &fakeFetcher{result: conversion.Success([]byte("ID3fetched-audio"))},
	}
	h.gateway = api.NewRestGateway(restConfig, conversionConfig, inputValidator, h.converter, h.fetcher)
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.gateway.ServeHTTP(rec, req)
	return rec
}

func (h *harness) assertNoSubprocess(t *testing.T) {
	assert.Empty(t, h.converter.inputs, "converter must not be invoked")
	assert.Empty(t, h.fetcher.urls, "fetcher must not be invoked")
}

func uploadRequest(t *testing.T, fileName, contentType string, content []byte) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, convertPath, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, payload any) *http.Request {
	encoded, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, convertPath, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "error response was not JSON: %s", rec.Body.String())
	assert.NotEmpty(t, body.Error)
	return body
}

func TestConvert_NoInput(t *testing.T) {
	h := newHarness(t)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, convertPath, nil),
		jsonRequest(t, map[string]string{}),
		jsonRequest(t, map[string]string{"url": "   "}),
	} {
		rec := h.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Please provide input", decodeError(t, rec).Error)
	}

	h.assertNoSubprocess(t)
}

func TestConvert_RejectedUploads(t *testing.T) {
	tests := []struct {
		summary     string
		fileName    string
		contentType string
	}{
		{"disallowed content type", "clip.mp4", "application/octet-stream"},
		{"disallowed extension", "clip.exe", "video/mp4"},
		{"no extension", "clip", "video/mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			h := newHarness(t)
			rec := h.do(uploadRequest(t, tt.fileName, tt.contentType, []byte("video")))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, "Unsupported file format", body.Error)
			assert.Equal(t, conversion.UnsupportedFormat.String(), body.Code)
			h.assertNoSubprocess(t)
		})
	}
}

func TestConvert_UploadTooLarge(t *testing.T) {
	h := newHarness(t, func(_ *api.RestConfig, c *conversion.Config) { c.MaxUploadSize = "1KiB" })

	rec := h.do(uploadRequest(t, "clip.mp4", "video/mp4", bytes.Repeat([]byte{0}, 2048)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File too large", decodeError(t, rec).Error)
	h.assertNoSubprocess(t)
}

// TestConvert_DeclaredLengthTooLarge ensures a request whose declared length exceeds
// the limit is rejected without its body being consumed.
func TestConvert_DeclaredLengthTooLarge(t *testing.T) {
	h := newHarness(t)

	body := &trackingReader{}
	req := httptest.NewRequest(http.MethodPost, convertPath, body)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	req.ContentLength = 600 * 1024 * 1024

	rec := h.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File too large", decodeError(t, rec).Error)
	assert.False(t, body.read, "request body must not be read")
	h.assertNoSubprocess(t)
}

func TestConvert_InvalidURL(t *testing.T) {
	h := newHarness(t)

	for _, url := range []string{"ftp://example.com/a.mp4", "example.com/video", "HTTPS://example.com", "javascript:alert(1)"} {
		rec := h.do(jsonRequest(t, map[string]string{"url": url}))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "url %q", url)
		assert.Equal(t, "Invalid URL format", decodeError(t, rec).Error)
	}

	h.assertNoSubprocess(t)
}

func TestConvert_FileAndURL(t *testing.T) {
	h := newHarness(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("url", "https://example.com/video"))
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="clip.mp4"`)
	header.Set("Content-Type", "video/mp4")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, _ = part.Write([]byte("video"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, convertPath, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := h.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	h.assertNoSubprocess(t)
}

func TestConvert_UploadSuccess(t *testing.T) {
	h := newHarness(t)
	content := []byte(random.String(200))

	rec := h.do(uploadRequest(t, "Holiday.MP4", "video/mp4", content))

	require.Equal(t, http.StatusOK, rec.Code, "unexpected failure: %s", rec.Body.String())
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Regexp(t, filenameMatcher, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	assert.Equal(t, fmt.Sprint(len("ID3converted-audio")), rec.Header().Get("Content-Length"))
	assert.Equal(t, "ID3converted-audio", rec.Body.String())

	require.Len(t, h.converter.inputs, 1, "converter must be invoked exactly once")
	assert.Equal(t, content, h.converter.inputs[0])
	assert.Empty(t, h.fetcher.urls)
}

func TestConvert_UploadTwiceProducesDistinctFilenames(t *testing.T) {
	h := newHarness(t)
	content := []byte("same video content")

	first := h.do(uploadRequest(t, "clip.webm", "video/webm", content))
	second := h.do(uploadRequest(t, "clip.webm", "video/webm", content))

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.NotEqual(t, first.Header().Get("Content-Disposition"), second.Header().Get("Content-Disposition"))
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Len(t, h.converter.inputs, 2)
}

func TestConvert_URLSuccess(t *testing.T) {
	h := newHarness(t)

	jsonRec := h.do(jsonRequest(t, map[string]string{"url": "  https://www.youtube.com/watch?v=abc  "}))
	require.Equal(t, http.StatusOK, jsonRec.Code, "unexpected failure: %s", jsonRec.Body.String())
	assert.Equal(t, "ID3fetched-audio", jsonRec.Body.String())
	assert.Regexp(t, filenameMatcher, jsonRec.Header().Get("Content-Disposition"))

	formReq := httptest.NewRequest(http.MethodPost, strings.TrimSuffix(convertPath, "/"), strings.NewReader("url=http%3A%2F%2Fexample.com%2Fvideo"))
	formReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	formRec := h.do(formReq)
	require.Equal(t, http.StatusOK, formRec.Code, "unexpected failure: %s", formRec.Body.String())

	assert.Equal(t, []string{"https://www.youtube.com/watch?v=abc", "http://example.com/video"}, h.fetcher.urls)
	assert.Empty(t, h.converter.inputs)
}

func TestConvert_FailureMapping(t *testing.T) {
	tests := []struct {
		summary string
		failure *conversion.Failure
		status  int
		check   func(t *testing.T, body errorBody)
	}{
		{
			summary: "rate limited",
			failure: conversion.NewFailure(conversion.UpstreamRateLimited, "YouTube limit reached 😢 Try again later").
				WithHint(conversion.Workaround, "Download video first, then upload file"),
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, body errorBody) {
				assert.Equal(t, "Download video first, then upload file", body.Workaround)
			},
		},
		{
			summary: "access restricted",
			failure: conversion.NewFailure(conversion.UpstreamAccessRestricted, "Age-restricted content").
				WithHint(conversion.Solution, "Use file upload instead"),
			status: http.StatusForbidden,
			check: func(t *testing.T, body errorBody) {
				assert.Equal(t, "Use file upload instead", body.Solution)
			},
		},
		{
			summary: "timeout",
			failure: conversion.NewFailure(conversion.UpstreamTimeout, "Download timed out - try smaller videos"),
			status:  http.StatusRequestTimeout,
			check: func(t *testing.T, body errorBody) {
				assert.Equal(t, "Download timed out - try smaller videos", body.Error)
			},
		},
		{
			summary: "conversion error",
			failure: conversion.NewFailure(conversion.ConversionError, "URL conversion failed: Unsupported URL").
				WithHint(conversion.Alternative, "Try uploading the video file"),
			status: http.StatusInternalServerError,
			check: func(t *testing.T, body errorBody) {
				assert.Equal(t, "Try uploading the video file", body.Alternative)
			},
		},
		{
			summary: "internal error hides detail",
			failure: conversion.NewFailure(conversion.InternalError, "exec: yt-dlp not found").WithDetail("secret detail"),
			status:  http.StatusInternalServerError,
			check: func(t *testing.T, body errorBody) {
				assert.Equal(t, "Conversion failed", body.Error)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			h := newHarness(t)
			h.fetcher.result = conversion.Failed(tt.failure)

			rec := h.do(jsonRequest(t, map[string]string{"url": "https://example.com/video"}))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", strings.Split(rec.Header().Get("Content-Type"), ";")[0])
			assert.NotContains(t, rec.Body.String(), "secret detail")
			tt.check(t, decodeError(t, rec))
		})
	}
}

func TestConvert_PanicIsContained(t *testing.T) {
	h := newHarness(t)
	h.converter.panics = true

	rec := h.do(uploadRequest(t, "clip.mp4", "video/mp4", []byte("video")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "Conversion failed", body.Error)
	assert.NotContains(t, rec.Body.String(), "exploded")
}

func TestConvert_RateLimited(t *testing.T) {
	h := newHarness(t, func(r *api.RestConfig, _ *conversion.Config) {
		r.RequestsPerSecond = 0.001
		r.RequestBurst = 1
	})

	first := h.do(jsonRequest(t, map[string]string{"url": "https://example.com/a"}))
	second := h.do(jsonRequest(t, map[string]string{"url": "https://example.com/b"}))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, second).Code)
	assert.Len(t, h.fetcher.urls, 1)
}

func TestConvert_RateLimitIgnoresForwardedFor(t *testing.T) {
	h := newHarness(t, func(r *api.RestConfig, _ *conversion.Config) {
		r.RequestsPerSecond = 0.001
		r.RequestBurst = 1
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := jsonRequest(t, map[string]string{"url": fmt.Sprintf("https://example.com/%d", i)})
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i+1))
		codes = append(codes, h.do(req).Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	assert.Len(t, h.fetcher.urls, 1)
}

func TestHealth(t *testing.T) {
	rec := newHarness(t).do(httptest.NewRequest(http.MethodGet, "/api/aria/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	rec := newHarness(t).do(httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	decodeError(t, rec)
}

type trackingReader struct{ read bool }

func (r *trackingReader) Read(p []byte) (int, error) {
	r.read = true
	return 0, io.EOF
}
