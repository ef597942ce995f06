package config

import "time"

type Config interface {
	EnvConfig
	SessionConfig
}

type EnvConfig interface {
	GetAppName() string
	GetBaseURL() string
	GetHTTPTimeout() time.Duration
	GetEnv() string
}

type SessionConfig interface {
	GetSessionFile() string
	GetSessionSecret() string
}

type mainConfig struct {
	EnvVars
	Session
}

func New() Config {
	return mainConfig{}
}
