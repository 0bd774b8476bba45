package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Inspect the gateway's persisted configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration, with secrets masked.`,
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		color.Yellow("no configuration found. Run 'gemini-gateway start' once to bootstrap one.")
		return nil
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	sanitized := cfg.WithoutSecret()

	color.Blue("Current Configuration:")
	fmt.Printf("  %-18s: %s\n", "Host", sanitized.Host)
	fmt.Printf("  %-18s: %d\n", "Port", sanitized.Port)
	fmt.Printf("  %-18s: %s\n", "Upstream base URL", sanitized.UpstreamBaseURL)
	fmt.Printf("  %-18s: %s\n", "Upstream API key", maskString(sanitized.UpstreamAPIKey))
	fmt.Printf("  %-18s: %s\n", "Default model", sanitized.DefaultModel)
	fmt.Printf("  %-18s: %s\n", "Local API key", maskString(sanitized.LocalAPIKey))
	fmt.Printf("  %-18s: %d\n", "Max body bytes", sanitized.MaxBodyBytes)
	fmt.Printf("  %-18s: %s\n", "Config Path", cfgMgr.GetPath())

	return nil
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}

	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}

	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
