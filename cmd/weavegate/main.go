package main

// cmd/weavegate/main.go — cobra root command, following the teacher's
// cmd/synnergy/main.go shape (a bare cobra.Command root wiring sub-command
// groups) combined with cmd/dexserver's config.LoadConfig(env)+logrus
// bootstrap.

import (
	"os"

	"github.com/joho/godotenv"
	logrus "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cliroutes "weavegate/cmd/cli"
	config "weavegate/cmd/config"
)

func main() {
	_ = godotenv.Load()
	config.LoadConfig(os.Getenv("WEAVEGATE_ENV"))
	configureLogging()

	rootCmd := &cobra.Command{Use: "weavegate"}
	rootCmd.AddCommand(cliroutes.GatewayRoute)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configureLogging sets up the per-component logrus level/output used by
// the CLI's constructed types, and installs a global zap logger for the
// free functions and background goroutines (the resolver's attribute-cache
// persist, among them) that have no logger injected into them.
func configureLogging() {
	level, err := logrus.ParseLevel(config.AppConfig.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if config.AppConfig.Logging.File != "" {
		f, err := os.OpenFile(config.AppConfig.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			logrus.SetOutput(f)
		}
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		zapLogger = zap.NewNop()
	}
	zap.ReplaceGlobals(zapLogger)
}
