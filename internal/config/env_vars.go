package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	appNameVar = "APP_NAME"
	baseURLVar = "IDENTITY_URL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Session Client")
}

// GetBaseURL returns the base URL for the identity API
// (e.g., "https://api.example.com")
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8000")
}

func (EnvVars) GetHTTPTimeout() time.Duration {
	timeout, err := time.ParseDuration(GetEnv("HTTP_TIMEOUT", "10s"))
	if err != nil {
		return 10 * time.Second
	}
	return timeout
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

type Session struct{}

var _ SessionConfig = Session{}

// GetSessionFile returns the path of the durable session store.
func (Session) GetSessionFile() string {
	if file := os.Getenv("SESSION_FILE"); file != "" {
		return file
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".session"
	}
	return filepath.Join(home, ".config", "sessionctl", "session")
}

// GetSessionSecret returns the secret used to seal the session file at rest.
// Empty disables sealing.
func (Session) GetSessionSecret() string {
	return GetEnv("SESSION_SECRET", "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
