// Package main is the entry point for the Hydro-Québec peak data coordinator.
package main

import (
	"log/slog"
	"os"
	"strings"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/jf-navica/hydroqc-ha/cmd/hydroqc-coordinator/app"
)

// getLogLevel reads HYDROQC_LOG_LEVEL, falling back to LOG_LEVEL.
// Defaults to info when neither is set or the value is invalid.
func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix("HYDROQC")
	v.AutomaticEnv()

	levelStr := v.GetString("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
		return slog.LevelInfo
	}
}

func main() {
	// stderr keeps stdout clean for version --format json and hash-password
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: getLogLevel()}))
	slog.SetDefault(logger)

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
