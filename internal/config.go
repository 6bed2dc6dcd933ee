package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Aria/internal/api"
	"github.com/hbomb79/Aria/internal/conversion"
	"github.com/hbomb79/Aria/internal/ffmpeg"
	"github.com/hbomb79/Aria/internal/ytdlp"
	"github.com/ilyakaznacheev/cleanenv"
)

// AriaConfig is the struct used to contain the
// various user config supplied by file, or
// by the environment.
type AriaConfig struct {
	LogLevel   string            `toml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	RestConfig api.RestConfig    `toml:"api"`
	Conversion conversion.Config `toml:"conversion"`
	Ffmpeg     ffmpeg.Config     `toml:"ffmpeg"`
	Downloader ytdlp.Config      `toml:"downloader"`
}

// DefaultConfig returns the configuration Aria uses for any value not supplied
// by the configuration file or the environment.
func DefaultConfig() *AriaConfig {
	return &AriaConfig{
		LogLevel:   "info",
		RestConfig: api.DefaultRestConfig(),
		Conversion: conversion.DefaultConfig(),
		Ffmpeg:     ffmpeg.DefaultConfig(),
		Downloader: ytdlp.DefaultConfig(),
	}
}

// LoadConfig reads the TOML configuration file at the path provided (if it exists)
// over the defaults and applies any environment overrides. Values explicitly set in
// the file (including zero values such as `force_sample_rate = 0`) are retained. A
// missing file is not an error, in which case the configuration is sourced entirely
// from the environment and defaults.
func LoadConfig(configPath string) (*AriaConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); configPath != "" && err == nil {
		if err := cleanenv.ReadConfig(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
		}
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat configuration file %s: %w", configPath, err)
	} else {
		if err := cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("failed to load configuration from environment: %w", err)
		}
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("configuration is invalid: %w", err)
	}

	return config, nil
}
