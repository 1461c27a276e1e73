package config

import (
	"os"
	"strings"
	"time"
)

const (
	appNameVar     = "APP_NAME"
	apiBaseURLVar  = "API_BASE_URL"
	httpTimeoutVar = "HTTP_TIMEOUT"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Compare AI")
}

// GetAPIBaseURL returns the base URL of the identity service
// (e.g. "https://compare.example.com"). API paths are appended to it.
func (EnvVars) GetAPIBaseURL() string {
	return strings.TrimSuffix(GetEnv(apiBaseURLVar, "http://localhost:5000"), "/")
}

func (EnvVars) GetHTTPTimeout() time.Duration {
	timeout, err := time.ParseDuration(GetEnv(httpTimeoutVar, "15s"))
	if err != nil {
		return 15 * time.Second
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

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
