// Package config reads runtime settings from the environment.
//
// Settings come from LANGSIFT_* variables, optionally seeded from a .env file.
// Variables already present in the environment win over the file. Command-line
// flags override both (see cmd/langsift).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Prefix is prepended to every variable name.
const Prefix = "LANGSIFT_"

// Defaults.
const (
	DefaultModelPath = "models/language-model.json"
	DefaultAddr      = ":8080"
	DefaultLogLevel  = "error"
	DefaultLogFormat = "console"
	DefaultFallback  = "en"
	DefaultDataDir   = "data/processed"
)

// Config holds the settings shared by every command.
type Config struct {
	ModelPath        string `validate:"required"`
	Addr             string `validate:"required"`
	LogLevel         string `validate:"required,oneof=trace debug info warn warning error fatal panic disabled"`
	LogFormat        string `validate:"required,oneof=console json"`
	FallbackLanguage string `validate:"required,bcp47_language_tag"`
	DataDir          string `validate:"required"`
}

var validate = validator.New()

// Load reads the given .env files (".env" when none are named), then the environment.
// A missing .env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Debug().Str("file", file).Msg("No .env file found, using environment variables")
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
	}

	cfg := &Config{
		ModelPath:        getEnv("MODEL_PATH", DefaultModelPath),
		Addr:             getEnv("ADDR", DefaultAddr),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", DefaultLogLevel)),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", DefaultLogFormat)),
		FallbackLanguage: strings.ToLower(getEnv("FALLBACK_LANGUAGE", DefaultFallback)),
		DataDir:          getEnv("DATA_DIR", DefaultDataDir),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field, naming the variable behind the first bad one.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid configuration: %s%s=%q fails %q", Prefix, envName(fe.Field()), fe.Value(), fe.Tag())
	}
	return fmt.Errorf("invalid configuration: %w", err)
}

// getEnv gets a prefixed environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(Prefix + key)); value != "" {
		return value
	}
	return defaultValue
}

// envName turns a field name such as ModelPath into MODEL_PATH.
func envName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}
