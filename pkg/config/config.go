// Package config loads environment-backed configuration structs.
//
// Each component declares its own Config struct with `env` tags and the
// entrypoint loads it once at startup. A .env file, when present, is loaded
// before parsing so local development does not require exported variables.
package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrNilPointer is returned when a nil config pointer is passed to Load.
	ErrNilPointer = errors.New("config: nil pointer provided")
	// ErrParsingConfig wraps env parsing failures.
	ErrParsingConfig = errors.New("config: failed to parse environment")
)

var dotenvOnce sync.Once

// Load populates cfg from environment variables based on field tags.
// The default .env file is loaded once per process; a missing file is not an error.
func Load[T any](cfg *T) error {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	if cfg == nil {
		return ErrNilPointer
	}

	if err := env.Parse(cfg); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics on failure. Use for configuration
// without which the process cannot start.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
