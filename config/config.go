package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/dermlab/skinconsult-client/logging"
)

// Config holds the project config values
type Config struct {
	// APIBaseURL is the root of the remote consultation service.
	APIBaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:5000"`

	// RequestTimeout bounds every remote call.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`

	// Poll intervals per channel. AI sessions refresh faster because the
	// responder replies within seconds.
	AIPollInterval         time.Duration `env:"AI_POLL_INTERVAL" envDefault:"2500ms"`
	SpecialistPollInterval time.Duration `env:"SPECIALIST_POLL_INTERVAL" envDefault:"5s"`

	// TokenPath is where the bearer credential is persisted across restarts.
	TokenPath string `env:"TOKEN_PATH"`

	// Cloudinary settings for direct attachment upload. Empty URL disables
	// image attachments.
	CloudinaryURL    string `env:"CLOUDINARY_URL"`
	CloudinaryFolder string `env:"CLOUDINARY_FOLDER" envDefault:"skinconsult"`
}

// New sets up all config related services
func New() (*Config, error) {

	//setup zap logger and replace default logger
	logger := logging.New()
	_ = zap.ReplaceGlobals(logger.Desugar())

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.TokenPath == "" {
		cfg.TokenPath = defaultTokenPath()
	}
	return cfg, nil
}

// defaultTokenPath places the credential file under the user config dir,
// falling back to the working directory when none is available.
func defaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".skinconsult-token.json"
	}
	return filepath.Join(dir, "skinconsult", "token.json")
}
