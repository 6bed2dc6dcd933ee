package internal

import (
	"context"
	"fmt"

	"github.com/hbomb79/Aria/internal/api"
	"github.com/hbomb79/Aria/internal/conversion"
	"github.com/hbomb79/Aria/internal/ffmpeg"
	"github.com/hbomb79/Aria/internal/ytdlp"
	"github.com/hbomb79/Aria/pkg/logger"
	"github.com/hbomb79/Aria/pkg/process"
)

var log = logger.Get("Core")

type RunnableService interface {
	Run(context.Context) error
}

// ariaImpl is the top-level object for the server, and is responsible
// for constructing the converter, fetcher and REST gateway from the
// configuration provided.
type ariaImpl struct {
	config      AriaConfig
	restGateway RunnableService
}

func New(config AriaConfig) (*ariaImpl, error) {
	logger.Log.SetMinimumStatus(logger.ParseStatus(config.LogLevel))
	log.Emit(logger.DEBUG, "Bootstrapping Aria services using config: %#v\n", config)

	inputValidator, err := conversion.NewValidator(config.Conversion)
	if err != nil {
		return nil, fmt.Errorf("failed to construct input validator: %w", err)
	}

	limits, err := config.Conversion.Limits()
	if err != nil {
		return nil, fmt.Errorf("failed to derive conversion limits: %w", err)
	}

	runner := process.NewRunner()
	converter := ffmpeg.NewConverter(config.Ffmpeg, limits, runner)
	fetcher := ytdlp.NewFetcher(config.Downloader, limits, runner)

	return &ariaImpl{
		config:      config,
		restGateway: api.NewRestGateway(&config.RestConfig, config.Conversion, inputValidator, converter, fetcher),
	}, nil
}

// Run starts the REST gateway. This function will not return until the provided
// context is cancelled, or the gateway fails.
func (aria *ariaImpl) Run(ctx context.Context) error {
	log.Emit(logger.NEW, "Starting Aria...\n")
	if err := aria.restGateway.Run(ctx); err != nil {
		log.Emit(logger.FATAL, "Service crash (REST gateway)! %s\n", err.Error())
		return err
	}

	log.Emit(logger.STOP, "Aria stopped\n")
	return nil
}
