package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"chatlima-server/internal/domain/query"
	"chatlima-server/internal/infrastructure/metrics"
	"chatlima-server/internal/utils/platformerrors"
)

const lockTTL = 10 * time.Minute

// PreviewResult is the dry count of users a run would delete.
type PreviewResult struct {
	ThresholdDays   int       `json:"thresholdDays"`
	Cutoff          time.Time `json:"cutoff"`
	CandidatesFound int64     `json:"candidatesFound"`
}

// CleanupService deletes long-inactive anonymous users.
type CleanupService struct {
	repo     Repository
	locker   Locker
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

func NewCleanupService(repo Repository, locker Locker, log zerolog.Logger) *CleanupService {
	return &CleanupService{
		repo:     repo,
		locker:   locker,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.With().Str("component", "anonymous-cleanup").Logger(),
		now:      time.Now,
	}
}

// ValidateParams checks ranges and the confirmation token.
func (s *CleanupService) ValidateParams(ctx context.Context, params ExecuteParams) error {
	if err := s.validate.Struct(params); err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"thresholdDays must be between 7 and 365 and batchSize between 1 and 100", err, "4b8e2d6f-1a73-4c9e-b5d0-7f3a9c1e6b28").WithCode("INVALID_PARAMETERS")
	}
	if params.TriggeredBy != TriggerCron && !params.DryRun && params.ConfirmationToken != ConfirmationToken {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("confirmationToken %q is required for a destructive run", ConfirmationToken), nil, "c1f7a3e9-6d28-4b5a-9e0c-2a8d4f6b1c93").WithCode("CONFIRMATION_REQUIRED")
	}
	return nil
}

// Execute runs one cleanup batch under the distributed lock.
func (s *CleanupService) Execute(ctx context.Context, params ExecuteParams) (*ExecutionResult, error) {
	if err := s.ValidateParams(ctx, params); err != nil {
		return nil, err
	}

	release, err := s.locker.TryLock(ctx, LockName, lockTTL)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "a cleanup run is already in progress", err, "7e2c9a4f-3b61-4d8e-a7f5-0c9b2e6d4a17").WithCode("CLEANUP_IN_PROGRESS")
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to acquire cleanup lock")
	}
	defer release()

	start := s.now()
	cutoff := start.UTC().AddDate(0, 0, -params.ThresholdDays)
	result := &ExecutionResult{
		ExecutionID:    uuid.NewString(),
		DryRun:         params.DryRun,
		DeletedUserIDs: []string{},
		Errors:         []UserError{},
	}

	candidates, err := s.repo.FindCandidates(ctx, cutoff, params.BatchSize)
	if err != nil {
		s.appendLog(ctx, params, result, start, StatusFailed, err)
		metrics.RecordCleanupRun(string(params.TriggeredBy), StatusFailed, 0)
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to find cleanup candidates")
	}
	result.CandidatesFound = len(candidates)

	for _, c := range candidates {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, UserError{UserID: c.UserID, Error: ctx.Err().Error()})
			continue
		}
		if params.DryRun {
			result.DeletedUserIDs = append(result.DeletedUserIDs, c.UserID)
			continue
		}
		if err := s.repo.DeleteUser(ctx, c.UserID); err != nil {
			s.log.Warn().Err(err).Str("user_id", c.UserID).Msg("failed to delete anonymous user")
			result.Errors = append(result.Errors, UserError{UserID: c.UserID, Error: err.Error()})
			continue
		}
		result.DeletedUserIDs = append(result.DeletedUserIDs, c.UserID)
	}
	if !params.DryRun {
		result.UsersDeleted = len(result.DeletedUserIDs)
	}
	result.ExecutionTimeMs = s.now().Sub(start).Milliseconds()

	status := StatusSuccess
	switch {
	case params.DryRun:
		status = StatusDryRun
	case result.Partial() && result.UsersDeleted == 0:
		status = StatusFailed
	case result.Partial():
		status = StatusPartial
	}
	s.appendLog(ctx, params, result, start, status, nil)
	metrics.RecordCleanupRun(string(params.TriggeredBy), status, result.UsersDeleted)

	s.log.Info().
		Str("execution_id", result.ExecutionID).
		Str("triggered_by", string(params.TriggeredBy)).
		Bool("dry_run", params.DryRun).
		Int("candidates", result.CandidatesFound).
		Int("deleted", result.UsersDeleted).
		Int("errors", len(result.Errors)).
		Msg("anonymous user cleanup finished")
	return result, nil
}

// RunScheduled executes with the stored config. A disabled config yields a skipped result.
func (s *CleanupService) RunScheduled(ctx context.Context) (*ExecutionResult, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		s.log.Debug().Msg("scheduled cleanup disabled, skipping")
		return &ExecutionResult{Skipped: true, DeletedUserIDs: []string{}, Errors: []UserError{}}, nil
	}
	return s.Execute(ctx, ExecuteParams{
		ThresholdDays: cfg.ThresholdDays,
		BatchSize:     cfg.BatchSize,
		TriggeredBy:   TriggerCron,
	})
}

// Preview counts users older than the threshold without deleting anything.
func (s *CleanupService) Preview(ctx context.Context, thresholdDays int) (*PreviewResult, error) {
	if thresholdDays < 7 || thresholdDays > 365 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "thresholdDays must be between 7 and 365", nil, "9d3f6b1e-4c82-4a7d-b9e5-1f0c7a3d8e52").WithCode("INVALID_PARAMETERS")
	}
	cutoff := s.now().UTC().AddDate(0, 0, -thresholdDays)
	count, err := s.repo.CountCandidates(ctx, cutoff)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to count cleanup candidates")
	}
	return &PreviewResult{ThresholdDays: thresholdDays, Cutoff: cutoff, CandidatesFound: count}, nil
}

// GetConfig returns the stored config or the defaults.
func (s *CleanupService) GetConfig(ctx context.Context) (*Config, error) {
	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load cleanup config")
	}
	if cfg == nil {
		def := DefaultConfig()
		return &def, nil
	}
	return cfg, nil
}

// UpdateConfig validates and stores the config.
func (s *CleanupService) UpdateConfig(ctx context.Context, cfg Config, adminUserID string) (*Config, error) {
	if err := s.validate.Struct(cfg); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid cleanup config", err, "2f8a5c1d-7e39-4b6f-a0d2-8c4e1b7f3a96").WithCode("INVALID_PARAMETERS")
	}
	if err := validateSchedule(cfg.Schedule); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid cron schedule", err, "6a1d8e3f-9b52-4c7e-8f0a-3d6b9e2c5f14").WithCode("INVALID_PARAMETERS")
	}
	cfg.UpdatedBy = adminUserID
	cfg.UpdatedAt = s.now().UTC()
	if err := s.repo.SaveConfig(ctx, &cfg); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to save cleanup config")
	}
	return &cfg, nil
}

// SeedConfig stores cfg when nothing has been stored yet and reports whether it wrote.
func (s *CleanupService) SeedConfig(ctx context.Context, cfg Config) (bool, error) {
	existing, err := s.repo.GetConfig(ctx)
	if err != nil {
		return false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load cleanup config")
	}
	if existing != nil {
		return false, nil
	}
	if _, err := s.UpdateConfig(ctx, cfg, string(TriggerCron)); err != nil {
		return false, err
	}
	return true, nil
}

// ListLogs pages through past executions, newest first.
func (s *CleanupService) ListLogs(ctx context.Context, pagination *query.Pagination) ([]*ExecutionLog, int64, error) {
	logs, total, err := s.repo.ListLogs(ctx, pagination)
	if err != nil {
		return nil, 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list cleanup logs")
	}
	return logs, total, nil
}

func (s *CleanupService) appendLog(ctx context.Context, params ExecuteParams, result *ExecutionResult, start time.Time, status string, runErr error) {
	errs := make([]string, 0, len(result.Errors)+1)
	for _, e := range result.Errors {
		errs = append(errs, e.UserID+": "+e.Error)
	}
	if runErr != nil {
		errs = append(errs, runErr.Error())
	}
	entry := &ExecutionLog{
		ID:              result.ExecutionID,
		TriggeredBy:     params.TriggeredBy,
		AdminUserID:     params.AdminUserID,
		ThresholdDays:   params.ThresholdDays,
		BatchSize:       params.BatchSize,
		DryRun:          params.DryRun,
		CandidatesFound: result.CandidatesFound,
		UsersDeleted:    result.UsersDeleted,
		DeletedUserIDs:  result.DeletedUserIDs,
		Errors:          errs,
		DurationMs:      s.now().Sub(start).Milliseconds(),
		Status:          status,
		ExecutedAt:      start.UTC(),
	}
	// the audit row must not fail the run it describes
	if err := s.repo.AppendLog(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Error().Err(err).Str("execution_id", entry.ID).Msg("failed to append cleanup execution log")
	}
}

// validateSchedule parses the expression with the same scheduler the server runs.
func validateSchedule(schedule string) error {
	ctab := crontab.New()
	defer ctab.Shutdown()
	return ctab.AddJob(schedule, func() {})
}
