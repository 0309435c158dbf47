package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	envVar              = "ENV"
	appNameVar          = "APP_NAME"
	logLevelVar         = "LOG_LEVEL"
	metricsAddrVar      = "METRICS_ADDR"
	apiBaseURLVar       = "API_BASE_URL"
	authPathFragmentVar = "AUTH_PATH_FRAGMENT"
	requestTimeoutVar   = "REQUEST_TIMEOUT"
	sessionBackendVar   = "SESSION_BACKEND"
	sessionDirVar       = "SESSION_DIR"
	redisAddrVar        = "REDIS_ADDR"
	redisPasswordVar    = "REDIS_PASSWORD"
	redisKeyVar         = "REDIS_KEY"
	expiryWarningVar    = "SESSION_EXPIRY_WARNING"
	showTimerVar        = "SHOW_SESSION_TIMER"
	devPortVar          = "DEV_PORT"
	devSecretVar        = "DEV_SIGNING_SECRET"
	devTokenTTLVar      = "DEV_TOKEN_TTL"
)

// source resolves a setting from the environment first, then from the
// optional config file.
type source struct {
	file map[string]string
}

func (s source) get(name, defaultValue string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	if value := s.file[name]; value != "" {
		return value
	}
	return defaultValue
}

func (s source) getDuration(name string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(s.get(name, ""))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func (s source) getBool(name string, defaultValue bool) bool {
	b, err := strconv.ParseBool(s.get(name, ""))
	if err != nil {
		return defaultValue
	}
	return b
}

type EnvVars struct{ source }

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetEnv() string {
	return e.get(envVar, "DEV")
}

func (e EnvVars) GetAppName() string {
	return e.get(appNameVar, "Gigan Session")
}

func (e EnvVars) GetLogLevel() string {
	return e.get(logLevelVar, "info")
}

// GetMetricsAddr is empty unless metrics should be served.
func (e EnvVars) GetMetricsAddr() string {
	return e.get(metricsAddrVar, "")
}

type API struct{ source }

var _ APIConfig = API{}

func (a API) GetAPIBaseURL() string {
	return a.get(apiBaseURLVar, "http://localhost:4000")
}

// GetAuthPathFragment identifies authentication endpoints. Requests whose path
// contains it never get a bearer token attached and never trigger logout on 401.
func (a API) GetAuthPathFragment() string {
	return a.get(authPathFragmentVar, "/api/auth/")
}

func (a API) GetRequestTimeout() time.Duration {
	return a.getDuration(requestTimeoutVar, 15*time.Second)
}

type Session struct{ source }

var _ SessionConfig = Session{}

// GetSessionBackend is either "file" or "redis".
func (s Session) GetSessionBackend() string {
	return s.get(sessionBackendVar, "file")
}

func (s Session) GetSessionDir() string {
	if dir := s.get(sessionDirVar, ""); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gigan"
	}
	return filepath.Join(home, ".gigan")
}

func (s Session) GetRedisAddr() string {
	return s.get(redisAddrVar, "localhost:6379")
}

func (s Session) GetRedisPassword() string {
	return s.get(redisPasswordVar, "")
}

func (s Session) GetRedisKey() string {
	return s.get(redisKeyVar, "gigan:session")
}

func (s Session) GetExpiryWarning() bool {
	return s.getBool(expiryWarningVar, true)
}

func (s Session) GetShowSessionTimer() bool {
	return s.getBool(showTimerVar, false)
}

type DevServer struct{ source }

var _ DevServerConfig = DevServer{}

func (d DevServer) GetDevPort() string {
	port := d.get(devPortVar, "4000")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (d DevServer) GetDevSigningSecret() string {
	return d.get(devSecretVar, "gigan-dev-secret")
}

func (d DevServer) GetDevTokenTTL() time.Duration {
	return d.getDuration(devTokenTTLVar, time.Hour)
}
