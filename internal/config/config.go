// Package config loads runtime settings from the environment, with an
// optional .env file for local development. Flags on the CLI override these
// values; the environment only provides defaults.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Settings holds every tunable that is not a per-request synthesis
// parameter.
type Settings struct {
	// Endpoint overrides the synthesis WebSocket URL, VoiceListURL the
	// catalog URL. Empty means the built-in service endpoints.
	Endpoint     string `envconfig:"READALOUD_ENDPOINT" default:""`
	VoiceListURL string `envconfig:"READALOUD_VOICE_LIST_URL" default:""`

	Proxy string `envconfig:"READALOUD_PROXY" default:""`

	ConnectTimeout time.Duration `envconfig:"READALOUD_CONNECT_TIMEOUT" default:"10s"`
	ReceiveTimeout time.Duration `envconfig:"READALOUD_RECEIVE_TIMEOUT" default:"10s"`

	// TrailingPadding compensates for encoder silence at the end of each
	// turn. Exposed because the upstream encoder behavior drifts.
	TrailingPadding time.Duration `envconfig:"READALOUD_TRAILING_PADDING" default:"875ms"`

	// BatchConcurrency caps how many texts of a batch run at once.
	BatchConcurrency int `envconfig:"READALOUD_BATCH_CONCURRENCY" default:"4"`

	// Player is the external command used by --play, fed audio on stdin.
	Player string `envconfig:"READALOUD_PLAYER" default:"ffplay -autoexit -nodisp -loglevel quiet -i -"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
}

// Load reads settings from the environment, first merging in a .env file if
// one exists in the working directory.
func Load() (*Settings, error) {
	_ = godotenv.Load()

	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if s.BatchConcurrency < 1 {
		return nil, fmt.Errorf("READALOUD_BATCH_CONCURRENCY must be at least 1, got %d", s.BatchConcurrency)
	}
	if s.TrailingPadding < 0 {
		return nil, fmt.Errorf("READALOUD_TRAILING_PADDING must not be negative, got %s", s.TrailingPadding)
	}
	return &s, nil
}
