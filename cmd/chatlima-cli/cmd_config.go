package main

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"chatlima-server/internal/config"
)

const redacted = "REDACTED"

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate server configuration",
		Long:  `Load configuration from the environment exactly as the server does and report problems.`,
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate environment configuration and the model policy file",
		RunE:  runConfigValidate,
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		RunE:  runConfigShow,
	}
	showCmd.Flags().String("format", "yaml", "Output format: yaml, json")

	configCmd.AddCommand(validateCmd, showCmd)
	return configCmd
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "environment: ok")

	blocklist, err := config.NewBlockList(cfg.ModelPolicyFile)
	if err != nil {
		return fmt.Errorf("model policy %s: %w", cfg.ModelPolicyFile, err)
	}
	fmt.Fprintf(out, "model policy: ok (%d entries from %s)\n", blocklist.Size(), cfg.ModelPolicyFile)

	if cfg.OpenRouterAPIKey == "" && cfg.RequestyAPIKey == "" {
		fmt.Fprintln(out, "warning: no provider API key configured, only user supplied keys will work")
	}
	if cfg.CronSecret == "" {
		fmt.Fprintln(out, "warning: CRON_SECRET is empty, scheduler requests with the cron header are refused")
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	safe := redactConfig(*cfg)

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(safe)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(safe)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// redactConfig blanks credentials and strips passwords from connection URLs.
func redactConfig(cfg config.Config) config.Config {
	for _, secret := range []*string{&cfg.AuthJWTSecret, &cfg.CronSecret, &cfg.OpenRouterAPIKey, &cfg.RequestyAPIKey, &cfg.OTLPHeaders} {
		if *secret != "" {
			*secret = redacted
		}
	}
	cfg.DatabaseURL = redactURL(cfg.DatabaseURL)
	cfg.RedisURL = redactURL(cfg.RedisURL)
	return cfg
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	return u.String()
}
