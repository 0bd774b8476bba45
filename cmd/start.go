package cmd

import (
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/gemini-gateway/internal/config"
	"github.com/Davincible/gemini-gateway/internal/process"
	"github.com/Davincible/gemini-gateway/internal/server"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway",
	Long:  `Start the translation gateway in the foreground.`,
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, _ []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonLogs, _ := cmd.Flags().GetBool("json-logs")
	setupLogging(verbose, jsonLogs)

	if err := ensureConfigExists(); err != nil {
		return err
	}

	boot := config.Bootstrap{
		Port:            envInt("GATEWAY_PORT", config.DefaultPort),
		AdminPassword:   os.Getenv("GATEWAY_ADMIN_PASSWORD"),
		UpstreamBaseURL: os.Getenv("GATEWAY_UPSTREAM_BASE_URL"),
		UpstreamAPIKey:  os.Getenv("GATEWAY_UPSTREAM_API_KEY"),
		DefaultModel:    os.Getenv("GATEWAY_DEFAULT_MODEL"),
		MaxBodyBytes:    int64(envInt("GATEWAY_MAX_BODY_BYTES", int(config.DefaultMaxBodyBytes))),
	}

	cfg, err := cfgMgr.LoadOrInit(boot)
	if err != nil {
		return err
	}

	color.Green("Starting %s v%s...", AppName, Version)
	logger.Info("starting gateway",
		"host", cfg.Host,
		"port", cfg.Port,
		"default_model", cfg.DefaultModel,
	)

	procMgr := process.NewManager(baseDir)
	if err := procMgr.WritePID(); err != nil {
		return err
	}
	defer procMgr.CleanupPID()

	srv := server.New(cfgMgr, logger)

	return srv.Start()
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}

	return n
}
