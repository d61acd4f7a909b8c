package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	baseURLVar     = "BASE_URL"
	databaseURLVar = "DATABASE_URL"
	envVar         = "ENV"
)

// MemoryDatabaseURL selects the in-memory backing store.
const MemoryDatabaseURL = "memory"

// source resolves a variable from overrides first and the environment second.
type source struct {
	overrides map[string]string
}

func (s *source) get(key, defaultValue string) string {
	if s != nil {
		if v, ok := s.overrides[key]; ok {
			return v
		}
	}
	return GetEnv(key, defaultValue)
}

func (s *source) getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := s.get(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func (s *source) getInt(key string, defaultValue int) int {
	raw := s.get(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

type EnvVars struct {
	src *source
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.src.get(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.src.get(appNameVar, "School Console")
}

// GetBaseURL returns the externally visible URL of the console (e.g., "https://console.example.com").
// Magic links and the OIDC redirect URL are built from it.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(e.src.get(baseURLVar, "http://localhost:8080"), "/")
}

// GetDatabaseURL returns the backing store DSN. "memory" selects the in-memory store,
// postgres:// URLs select PostgreSQL and anything else is treated as a SQLite path.
func (e EnvVars) GetDatabaseURL() string {
	return e.src.get(databaseURLVar, MemoryDatabaseURL)
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.src.get(envVar, "DEV"))
}

func (e EnvVars) IsDev() bool {
	return e.GetEnv() == "DEV"
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
