package main

import (
	"github.com/Masterminds/semver/v3"
	env "github.com/xyproto/env/v2"
)

// config holds the CLI's runtime settings, loaded from environment
// variables with flag overrides applied on top — the same layering the
// teacher compiler's logger.Config expects a caller to assemble before
// calling logger.Init, generalized here to the whole CLI's configuration.
type config struct {
	InputPath   string
	Debug       bool
	Concurrency int
	Watch       bool
	LogFormat   string
	MinAPILevel *semver.Version
}

// loadConfigFromEnv reads DEXALLOC_* environment variables, mirroring
// the env/v2 convention of a typed accessor per variable with an inline
// default.
func loadConfigFromEnv() config {
	cfg := config{
		Debug:       env.Bool("DEXALLOC_DEBUG"),
		Concurrency: env.Int("DEXALLOC_CONCURRENCY", 4),
		Watch:       env.Bool("DEXALLOC_WATCH"),
		LogFormat:   env.Str("DEXALLOC_LOG_FORMAT", "text"),
	}
	if raw := env.Str("DEXALLOC_MIN_API_LEVEL", ""); raw != "" {
		if v, err := semver.NewVersion(raw); err == nil {
			cfg.MinAPILevel = v
		}
	}
	return cfg
}
