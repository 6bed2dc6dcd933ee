package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Aria/internal/api/conversions"
	"github.com/hbomb79/Aria/internal/api/gen"
	"github.com/hbomb79/Aria/internal/conversion"
	"github.com/hbomb79/Aria/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr          string        `toml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080" validate:"required"`
		RequestsPerSecond float64       `toml:"requests_per_second" env:"API_REQUESTS_PER_SECOND" validate:"gte=0"`
		RequestBurst      int           `toml:"request_burst" env:"API_REQUEST_BURST" validate:"gte=0"`
		ShutdownTimeout   time.Duration `toml:"shutdown_timeout" env:"API_SHUTDOWN_TIMEOUT" env-default:"10s"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// The RestGateway is a thin-wrapper around the Echo HTTP router. It's sole responsbility
	// is to create the routes Aria exposes and apply the middleware common to them.
	RestGateway struct {
		config               *RestConfig
		ec                   *echo.Echo
		conversionController controller
	}
)

// DefaultRestConfig returns the gateway configuration used for any value not
// supplied by file or environment.
func DefaultRestConfig() RestConfig {
	return RestConfig{
		HostAddr:          "0.0.0.0:8080",
		RequestsPerSecond: 1,
		RequestBurst:      5,
		ShutdownTimeout:   10 * time.Second,
	}
}

// NewRestGateway constructs the Echo router and populates it with the
// conversion endpoint, backed by the converter and fetcher provided.
func NewRestGateway(
	config *RestConfig,
	conversionConfig conversion.Config,
	inputValidator *conversion.Validator,
	converter conversions.MediaConverter,
	fetcher conversions.RemoteFetcher,
) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true
	ec.HTTPErrorHandler = gen.GetHTTPErrorHandler()
	// Rate limiting is keyed on the client IP, so forwarding headers supplied
	// by the client must not be trusted.
	ec.IPExtractor = echo.ExtractIPDirect()

	gateway := &RestGateway{
		config:               config,
		ec:                   ec,
		conversionController: conversions.New(validator.New(), inputValidator, converter, fetcher, conversionConfig.MaxConcurrent),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Pre(middleware.AddTrailingSlash())

	ec.GET("/api/aria/v1/health/", func(ec echo.Context) error {
		return ec.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	convert := ec.Group("/api/aria/v1/convert")
	if limiter := newRateLimiter(config); limiter != nil {
		convert.Use(limiter)
	}
	gateway.conversionController.SetRoutes(convert)

	return gateway
}

// newRateLimiter returns a middleware which limits the rate at which a
// single client (by IP) can submit conversions. A zero rate disables limiting.
func newRateLimiter(config *RestConfig) echo.MiddlewareFunc {
	if config.RequestsPerSecond <= 0 {
		return nil
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(config.RequestsPerSecond),
			Burst:     config.RequestBurst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return gen.APIError{Status: http.StatusForbidden, Code: "FORBIDDEN", InternalMessage: err.Error()}
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return gen.APIError{
				Status:     http.StatusTooManyRequests,
				Code:       "RATE_LIMITED",
				Message:    "Too many conversion requests, try again later",
				Workaround: "Wait a moment before submitting another conversion",
			}
		},
	})
}

// ServeHTTP allows the gateway to be used directly as an http.Handler.
func (gateway *RestGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gateway.ec.ServeHTTP(w, r)
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Emit(logger.NEW, "Listening on %s\n", gateway.config.HostAddr)
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil && err != http.ErrServerClosed {
			ctxCancel(err)
		}
	}()

	// Gracefully shutdown the server once the context is cancelled, allowing
	// in-flight conversions the chance to complete.
	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gateway.config.ShutdownTimeout)
	defer shutdownCancel()
	if err := gateway.ec.Shutdown(shutdownCtx); err != nil {
		log.Emit(logger.WARNING, "Graceful shutdown failed, forcing close: %v\n", err)
		gateway.ec.Close()
	}

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}
