package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every variable name declared in Config tags.
const EnvPrefix = "BERBO_"

// parseEnv loads an optional .env file from the working directory and then
// overlays every BERBO_* variable that is set. Unset variables leave the
// current value untouched. It panics when a value cannot be parsed.
func parseEnv(config *Config) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
