package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jrsteele09/school-console/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cfg config.Config

var (
	flagPort          string
	flagEnv           string
	flagBaseURL       string
	flagDatabaseURL   string
	flagSessionSecret string
	flagLogLevel      string
)

var rootCmd = &cobra.Command{
	Use:   "school-console",
	Short: "Multi-tenant school administration console",
	Long: `school-console serves the console API: staff manage their own school's
student archive, super admins manage the directory of schools.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.New(
			config.WithOverride("PORT", flagPort),
			config.WithOverride("ENV", flagEnv),
			config.WithOverride("BASE_URL", flagBaseURL),
			config.WithOverride("DATABASE_URL", flagDatabaseURL),
			config.WithOverride("SESSION_SECRET", flagSessionSecret),
		)
		return setupLogging(cfg, flagLogLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagPort, "port", "", "Listen port (env: PORT)")
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", "", "Environment, DEV enables console logging (env: ENV)")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "Externally visible URL (env: BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagDatabaseURL, "db-url", "", "memory, a postgres:// URL or a SQLite path (env: DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagSessionSecret, "session-secret", "", "HMAC secret for session tokens (env: SESSION_SECRET)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level, defaults to debug in DEV and info otherwise")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(tenantCmd)
}

func setupLogging(c config.Config, level string) error {
	lvl := zerolog.InfoLevel
	if c.IsDev() {
		lvl = zerolog.DebugLevel
	}
	if level != "" {
		parsed, err := zerolog.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}
	zerolog.SetGlobalLevel(lvl)

	if c.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("app", c.GetAppName()).Logger()
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the console API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}
