package cleanup

import (
	"context"
	"errors"
	"time"

	"chatlima-server/internal/domain/query"
)

const (
	// ConfirmationToken must accompany a manual, non-dry-run execution.
	ConfirmationToken = "DELETE_ANONYMOUS_USERS"
	LockName          = "chatlima:cleanup:lock"

	DefaultThresholdDays = 45
	DefaultBatchSize     = 50
	DefaultSchedule      = "0 3 * * *"
)

// Trigger identifies who started a run.
type Trigger string

const (
	TriggerAdmin Trigger = "admin"
	TriggerCron  Trigger = "cron"
)

// ErrLockHeld is returned by a Locker when another run owns the lock.
var ErrLockHeld = errors.New("cleanup lock is held by another run")

// Locker provides a cluster-wide mutex. The returned func releases it.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (func(), error)
}

// Config is the stored cleanup configuration used by scheduled runs.
type Config struct {
	Enabled       bool      `json:"enabled"`
	ThresholdDays int       `json:"thresholdDays" validate:"min=7,max=365"`
	BatchSize     int       `json:"batchSize" validate:"min=1,max=100"`
	Schedule      string    `json:"schedule" validate:"required"`
	UpdatedBy     string    `json:"updatedBy,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// DefaultConfig is used until an admin stores one.
func DefaultConfig() Config {
	return Config{
		Enabled:       false,
		ThresholdDays: DefaultThresholdDays,
		BatchSize:     DefaultBatchSize,
		Schedule:      DefaultSchedule,
	}
}

// ExecuteParams are the inputs of one cleanup run.
type ExecuteParams struct {
	ThresholdDays     int     `json:"thresholdDays" validate:"min=7,max=365"`
	BatchSize         int     `json:"batchSize" validate:"min=1,max=100"`
	DryRun            bool    `json:"dryRun"`
	ConfirmationToken string  `json:"confirmationToken"`
	TriggeredBy       Trigger `json:"-" validate:"oneof=admin cron"`
	AdminUserID       string  `json:"-"`
}

// Candidate is an anonymous user eligible for deletion.
type Candidate struct {
	UserID       string
	LastActiveAt time.Time
}

// UserError records a per-user deletion failure.
type UserError struct {
	UserID string `json:"userId"`
	Error  string `json:"error"`
}

// ExecutionResult summarises a run.
type ExecutionResult struct {
	ExecutionID     string      `json:"executionId"`
	UsersDeleted    int         `json:"usersDeleted"`
	DeletedUserIDs  []string    `json:"deletedUserIds"`
	Errors          []UserError `json:"errors"`
	ExecutionTimeMs int64       `json:"executionTimeMs"`
	DryRun          bool        `json:"dryRun"`
	CandidatesFound int         `json:"candidatesFound"`
	Skipped         bool        `json:"skipped,omitempty"`
}

// Partial reports whether some users failed to delete.
func (r *ExecutionResult) Partial() bool {
	return len(r.Errors) > 0
}

// Status values of an execution log row.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
	StatusDryRun  = "dry_run"
)

// ExecutionLog is the append-only audit row of one run.
type ExecutionLog struct {
	ID              string    `json:"id"`
	TriggeredBy     Trigger   `json:"triggeredBy"`
	AdminUserID     string    `json:"adminUserId,omitempty"`
	ThresholdDays   int       `json:"thresholdDays"`
	BatchSize       int       `json:"batchSize"`
	DryRun          bool      `json:"dryRun"`
	CandidatesFound int       `json:"candidatesFound"`
	UsersDeleted    int       `json:"usersDeleted"`
	DeletedUserIDs  []string  `json:"deletedUserIds"`
	Errors          []string  `json:"errors"`
	DurationMs      int64     `json:"durationMs"`
	Status          string    `json:"status"`
	ExecutedAt      time.Time `json:"executedAt"`
}

// Repository is the persistence required by the cleanup job.
type Repository interface {
	FindCandidates(ctx context.Context, cutoff time.Time, limit int) ([]Candidate, error)
	CountCandidates(ctx context.Context, cutoff time.Time) (int64, error)
	// DeleteUser removes the user; chats, messages and credits cascade.
	DeleteUser(ctx context.Context, userID string) error
	// GetConfig returns nil when no config has been stored yet.
	GetConfig(ctx context.Context) (*Config, error)
	SaveConfig(ctx context.Context, cfg *Config) error
	AppendLog(ctx context.Context, log *ExecutionLog) error
	ListLogs(ctx context.Context, pagination *query.Pagination) ([]*ExecutionLog, int64, error)
}
