package cmd

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/Davincible/gemini-gateway/internal/config"
)

const (
	AppName = "gemini-gateway"
	Version = "0.1.0"
)

var (
	logger  *slog.Logger
	homeDir string
	baseDir string
	cfgMgr  *config.Manager
)

func init() {
	_ = godotenv.Load()

	setupLogging(false, false)

	var err error

	homeDir, err = os.UserHomeDir()
	if err != nil {
		logger.Error("failed to determine home directory", "error", err)
		os.Exit(1)
	}

	baseDir = filepath.Join(homeDir, "."+AppName)
	cfgMgr = config.NewManager(baseDir)
}

var rootCmd = &cobra.Command{
	Use:     "gemini-gateway",
	Short:   "A Dialect A to Dialect G protocol-translation gateway",
	Long:    `gemini-gateway accepts Anthropic Messages API requests and translates them to the Gemini generateContent API, forwarding streaming and non-streaming responses back in Anthropic's shape.`,
	Version: Version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolP("json-logs", "j", false, "emit logs as JSON instead of colorized text")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

// setupLogging configures slog with lmittmann/tint's colorized handler for
// interactive use, or plain JSON when jsonLogs is set (e.g. under a
// process supervisor).
func setupLogging(verbose, jsonLogs bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	if jsonLogs {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		return
	}

	logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: level}))
}

func ensureConfigExists() error {
	if !cfgMgr.Exists() {
		color.Yellow("no configuration found, bootstrapping with environment defaults...")
	}

	return nil
}
