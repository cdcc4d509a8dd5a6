package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"chatlima-server/internal/domain/cleanup"
	"chatlima-server/internal/domain/usagelimit"
)

type apiEnvelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message"`
}

func newCleanupCmd() *cobra.Command {
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Anonymous user cleanup",
	}

	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Count anonymous users a run would delete",
		RunE:  runCleanupPreview,
	}
	previewCmd.Flags().Int("threshold-days", cleanup.DefaultThresholdDays, "Inactivity threshold in days")

	executeCmd := &cobra.Command{
		Use:   "execute",
		Short: "Delete inactive anonymous users",
		Long: `Run one cleanup batch. Without --confirm the run is a dry run.
With --cron the request is sent as the platform scheduler and the stored config applies.`,
		RunE: runCleanupExecute,
	}
	executeCmd.Flags().Int("threshold-days", cleanup.DefaultThresholdDays, "Inactivity threshold in days")
	executeCmd.Flags().Int("batch-size", cleanup.DefaultBatchSize, "Maximum users to delete")
	executeCmd.Flags().Bool("confirm", false, "Actually delete users")
	executeCmd.Flags().Bool("cron", false, "Authenticate as the scheduler using --token as CRON_SECRET")

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "List recent cleanup executions",
		RunE:  runCleanupLogs,
	}
	logsCmd.Flags().Int("limit", 10, "Number of entries")

	cleanupCmd.AddCommand(previewCmd, executeCmd, logsCmd)
	return cleanupCmd
}

func runCleanupPreview(cmd *cobra.Command, _ []string) error {
	client, err := newAdminClient(cmd)
	if err != nil {
		return err
	}
	days, _ := cmd.Flags().GetInt("threshold-days")

	var resp apiEnvelope[cleanup.PreviewResult]
	if _, err := client.call(cmd, http.MethodGet, "/api/admin/cleanup-users/preview",
		map[string]string{"thresholdDays": strconv.Itoa(days)}, nil, &resp); err != nil {
		return err
	}
	fmt.Fprintf(client.out, "%d anonymous users inactive for %d days (cutoff %s)\n",
		resp.Data.CandidatesFound, resp.Data.ThresholdDays, resp.Data.Cutoff.Format("2006-01-02"))
	return nil
}

func runCleanupExecute(cmd *cobra.Command, _ []string) error {
	client, err := newAdminClient(cmd)
	if err != nil {
		return err
	}
	asCron, _ := cmd.Flags().GetBool("cron")
	confirm, _ := cmd.Flags().GetBool("confirm")

	var body any
	if asCron {
		client.asCron()
	} else {
		days, _ := cmd.Flags().GetInt("threshold-days")
		batch, _ := cmd.Flags().GetInt("batch-size")
		payload := map[string]any{
			"thresholdDays": days,
			"batchSize":     batch,
			"dryRun":        !confirm,
		}
		if confirm {
			payload["confirmationToken"] = cleanup.ConfirmationToken
		}
		body = payload
	}

	var resp apiEnvelope[cleanup.ExecutionResult]
	status, err := client.call(cmd, http.MethodPost, "/api/admin/cleanup-users/execute", nil, body, &resp)
	if err != nil {
		return err
	}
	if resp.Message != "" {
		fmt.Fprintln(client.out, resp.Message)
		return nil
	}

	result := resp.Data
	verb := "deleted"
	if result.DryRun {
		verb = "would delete"
	}
	fmt.Fprintf(client.out, "execution %s: %s %d of %d candidates in %dms\n",
		result.ExecutionID, verb, result.UsersDeleted, result.CandidatesFound, result.ExecutionTimeMs)
	for _, e := range result.Errors {
		fmt.Fprintf(client.out, "  failed %s: %s\n", e.UserID, e.Error)
	}
	if status == http.StatusPartialContent {
		return fmt.Errorf("%d users could not be deleted", len(result.Errors))
	}
	return nil
}

func runCleanupLogs(cmd *cobra.Command, _ []string) error {
	client, err := newAdminClient(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	var resp struct {
		Data  []cleanup.ExecutionLog `json:"data"`
		Total int64                  `json:"total"`
	}
	if _, err := client.call(cmd, http.MethodGet, "/api/admin/cleanup-users/logs",
		map[string]string{"limit": strconv.Itoa(limit)}, nil, &resp); err != nil {
		return err
	}
	for _, l := range resp.Data {
		fmt.Fprintf(client.out, "%s  %-8s %-6s deleted=%d candidates=%d\n",
			l.ExecutedAt.Format("2006-01-02 15:04:05"), l.Status, l.TriggeredBy, l.UsersDeleted, l.CandidatesFound)
	}
	fmt.Fprintf(client.out, "%d of %d executions\n", len(resp.Data), resp.Total)
	return nil
}

func newModelsCmd() *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Model catalog administration",
	}
	reloadCmd := &cobra.Command{
		Use:   "reload-blocklist",
		Short: "Re-read the model policy file on the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newAdminClient(cmd)
			if err != nil {
				return err
			}
			if _, err := client.call(cmd, http.MethodPost, "/api/admin/models/blocklist/reload", nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(client.out, "model blocklist reloaded")
			return nil
		},
	}
	modelsCmd.AddCommand(reloadCmd)
	return modelsCmd
}

func newLimitsCmd() *cobra.Command {
	limitsCmd := &cobra.Command{
		Use:   "limits",
		Short: "Per-user message limits",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show effective limits and usage for a user",
		RunE:  runLimitsGet,
	}
	getCmd.Flags().String("user", "", "User id")
	_ = getCmd.MarkFlagRequired("user")

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Override a user's daily or monthly message limit",
		Long:  `Set a per-user override. A limit that is omitted or "none" falls back to the default.`,
		RunE:  runLimitsSet,
	}
	setCmd.Flags().String("user", "", "User id")
	setCmd.Flags().String("daily", "", "Daily message limit or none")
	setCmd.Flags().String("monthly", "", "Monthly message limit or none")
	_ = setCmd.MarkFlagRequired("user")

	limitsCmd.AddCommand(getCmd, setCmd)
	return limitsCmd
}

func runLimitsGet(cmd *cobra.Command, _ []string) error {
	client, err := newAdminClient(cmd)
	if err != nil {
		return err
	}
	userID, _ := cmd.Flags().GetString("user")

	var view usagelimit.UsageView
	if _, err := client.call(cmd, http.MethodGet, "/api/limits/usage", map[string]string{"userId": userID}, nil, &view); err != nil {
		return err
	}
	fmt.Fprintf(client.out, "user %s (%s)\n  daily   %d / %d\n  monthly %d / %d\n",
		view.UserID, view.Limits.Source,
		view.Usage.Daily, view.Limits.Daily,
		view.Usage.Monthly, view.Limits.Monthly)
	return nil
}

func runLimitsSet(cmd *cobra.Command, _ []string) error {
	client, err := newAdminClient(cmd)
	if err != nil {
		return err
	}
	userID, _ := cmd.Flags().GetString("user")
	body := map[string]any{"userId": userID}
	for flag, field := range map[string]string{"daily": "dailyMessageLimit", "monthly": "monthlyMessageLimit"} {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		raw, _ := cmd.Flags().GetString(flag)
		value, err := parseLimit(raw)
		if err != nil {
			return fmt.Errorf("--%s: %w", flag, err)
		}
		body[field] = value
	}

	var resp apiEnvelope[usagelimit.Override]
	if _, err := client.call(cmd, http.MethodPut, "/api/limits/usage", nil, body, &resp); err != nil {
		return err
	}
	fmt.Fprintf(client.out, "limits updated for %s\n", resp.Data.UserID)
	return nil
}

// parseLimit returns nil for "none", which clears the override on the server.
func parseLimit(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "none") {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("expected a number or none, got %q", raw)
	}
	if v < 0 {
		return nil, fmt.Errorf("limit must not be negative")
	}
	return &v, nil
}
