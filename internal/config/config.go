// Package config loads the casebot configuration from the environment.
package config

import (
	"github.com/myrjola/casebot/internal/envstruct"
	"github.com/myrjola/casebot/internal/errors"
	"log/slog"
	"strconv"
	"time"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

var ErrInvalidConfig = errors.NewSentinel("invalid configuration")

// Config holds every setting of the service. Fields are populated with [envstruct.Populate].
type Config struct {
	TelegramToken        string        `env:"TELEGRAM_BOT_TOKEN" envDefault:""`
	TelegramAllowedUsers []string      `env:"TELEGRAM_ALLOWED_USERS" envDefault:""`
	DataDir              string        `env:"DATA_DIR" envDefault:"./data"`
	StateFile            string        `env:"STATE_FILE" envDefault:"./data/app_state.json"`
	StorageBackend       string        `env:"STORAGE_BACKEND" envDefault:"file"`
	SQLiteURL            string        `env:"SQLITE_URL" envDefault:"./data/casebot.sqlite"`
	OpenAIAPIKey         string        `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIModel          string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL        string        `env:"OPENAI_BASE_URL" envDefault:""`
	TranscriptionLang    string        `env:"TRANSCRIPTION_LANGUAGE" envDefault:"pt"`
	CaseIDPrefix         string        `env:"CASE_ID_PREFIX" envDefault:"SEPPATRI"`
	CollaboratorTimeout  time.Duration `env:"COLLABORATOR_TIMEOUT" envDefault:"60s"`
	AdminAddr            string        `env:"ADMIN_ADDR" envDefault:"localhost:4000"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	PprofAddr            string        `env:"PPROF_ADDR" envDefault:""`
	UseDummyAPIs         bool          `env:"USE_DUMMY_APIS" envDefault:"false"`
}

// Load populates a Config with lookupEnv, usually [os.LookupEnv], and validates it.
func Load(lookupEnv func(string) (string, bool)) (Config, error) {
	var cfg Config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return Config{}, errors.Wrap(err, "populate config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem in the configuration at once.
func (c Config) Validate() error {
	var problems []error
	if c.StorageBackend != BackendFile && c.StorageBackend != BackendSQLite {
		problems = append(problems, errors.Wrap(ErrInvalidConfig, "unknown storage backend",
			slog.String("STORAGE_BACKEND", c.StorageBackend)))
	}
	if c.DataDir == "" {
		problems = append(problems, errors.Wrap(ErrInvalidConfig, "DATA_DIR must not be empty"))
	}
	if c.StorageBackend == BackendFile && c.StateFile == "" {
		problems = append(problems, errors.Wrap(ErrInvalidConfig, "STATE_FILE must not be empty"))
	}
	if c.CollaboratorTimeout <= 0 {
		problems = append(problems, errors.Wrap(ErrInvalidConfig, "COLLABORATOR_TIMEOUT must be positive",
			slog.Duration("COLLABORATOR_TIMEOUT", c.CollaboratorTimeout)))
	}
	if !c.UseDummyAPIs && c.OpenAIAPIKey == "" {
		problems = append(problems, errors.Wrap(ErrInvalidConfig, "OPENAI_API_KEY is required unless USE_DUMMY_APIS"))
	}
	for _, user := range c.TelegramAllowedUsers {
		if _, err := strconv.ParseInt(user, 10, 64); err != nil {
			problems = append(problems, errors.Wrap(ErrInvalidConfig, "TELEGRAM_ALLOWED_USERS must be numeric ids",
				slog.String("user", user)))
		}
	}
	return errors.Join(problems...)
}

// AllowedUserIDs returns the parsed Telegram user ids. Validate guarantees they parse.
func (c Config) AllowedUserIDs() []int64 {
	ids := make([]int64, 0, len(c.TelegramAllowedUsers))
	for _, user := range c.TelegramAllowedUsers {
		if id, err := strconv.ParseInt(user, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
