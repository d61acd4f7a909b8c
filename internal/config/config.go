package config

type Config interface {
	EnvConfig
	AuthConfig
	OIDCConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetDatabaseURL() string
	GetEnv() string
	IsDev() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Auth
	OIDC
	Cors
}

// Option overrides configuration values, typically from command line flags.
type Option func(*source)

// WithOverride sets a value that takes precedence over the environment.
// Empty values are ignored so unset flags fall through to the environment.
func WithOverride(envVar, value string) Option {
	return func(s *source) {
		if value != "" {
			s.overrides[envVar] = value
		}
	}
}

func New(options ...Option) Config {
	src := &source{overrides: make(map[string]string)}
	for _, opt := range options {
		opt(src)
	}
	return mainConfig{
		EnvVars: EnvVars{src: src},
		Auth:    Auth{src: src},
		OIDC:    OIDC{src: src},
		Cors:    Cors{src: src},
	}
}
