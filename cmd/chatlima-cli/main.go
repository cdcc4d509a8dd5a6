package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chatlima-server/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chatlima-cli",
		Short: "Operator tooling for the ChatLima server",
		Long: `chatlima-cli validates configuration, applies database migrations and
drives the admin API of a running ChatLima server.

Examples:
  chatlima-cli config validate
  chatlima-cli migrate up
  chatlima-cli cleanup preview --threshold-days 60
  chatlima-cli cleanup execute --confirm
  chatlima-cli models reload-blocklist
  chatlima-cli limits set --user 3f1c... --daily 50`,
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("server", envOr("CHATLIMA_URL", "http://localhost:8080"), "Base URL of the ChatLima server")
	rootCmd.PersistentFlags().String("token", os.Getenv("CHATLIMA_ADMIN_TOKEN"), "Admin bearer token")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print raw responses")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newCleanupCmd())
	rootCmd.AddCommand(newModelsCmd())
	rootCmd.AddCommand(newLimitsCmd())
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
