package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	DevServerConfig
}

type EnvConfig interface {
	GetEnv() string
	GetAppName() string
	GetLogLevel() string
	GetMetricsAddr() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetAuthPathFragment() string
	GetRequestTimeout() time.Duration
}

type SessionConfig interface {
	GetSessionBackend() string
	GetSessionDir() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisKey() string
	GetExpiryWarning() bool
	GetShowSessionTimer() bool
}

type DevServerConfig interface {
	GetDevPort() string
	GetDevSigningSecret() string
	GetDevTokenTTL() time.Duration
}

type mainConfig struct {
	EnvVars
	API
	Session
	DevServer
}

// New returns a Config backed by environment variables only.
func New() Config {
	return newConfig(nil)
}

// Load returns a Config backed by environment variables, falling back to the
// values of the YAML file at path. The file's keys mirror the environment
// variable names. An empty path behaves like New.
func Load(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config.Load ReadFile")
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrapf(err, "config.Load parse %s", path)
	}
	return newConfig(values), nil
}

func newConfig(file map[string]string) Config {
	src := source{file: file}
	return mainConfig{
		EnvVars:   EnvVars{src},
		API:       API{src},
		Session:   Session{src},
		DevServer: DevServer{src},
	}
}
