package dbschema

import (
	"time"

	"github.com/lib/pq"

	"chatlima-server/internal/domain/cleanup"
)

// CleanupConfigID is the id of the single configuration row.
const CleanupConfigID = 1

type CleanupConfig struct {
	ID            int16   `gorm:"primaryKey"`
	Enabled       bool    `gorm:"not null"`
	ThresholdDays int     `gorm:"not null"`
	BatchSize     int     `gorm:"not null"`
	Schedule      string  `gorm:"type:varchar(100);not null"`
	UpdatedBy     *string `gorm:"type:varchar(64)"`
	UpdatedAt     time.Time
}

func (CleanupConfig) TableName() string { return "cleanup_config" }

func NewSchemaCleanupConfig(cfg *cleanup.Config) *CleanupConfig {
	var updatedBy *string
	if cfg.UpdatedBy != "" {
		s := cfg.UpdatedBy
		updatedBy = &s
	}
	return &CleanupConfig{
		ID:            CleanupConfigID,
		Enabled:       cfg.Enabled,
		ThresholdDays: cfg.ThresholdDays,
		BatchSize:     cfg.BatchSize,
		Schedule:      cfg.Schedule,
		UpdatedBy:     updatedBy,
		UpdatedAt:     cfg.UpdatedAt,
	}
}

func (c *CleanupConfig) EtoD() *cleanup.Config {
	cfg := &cleanup.Config{
		Enabled:       c.Enabled,
		ThresholdDays: c.ThresholdDays,
		BatchSize:     c.BatchSize,
		Schedule:      c.Schedule,
		UpdatedAt:     c.UpdatedAt,
	}
	if c.UpdatedBy != nil {
		cfg.UpdatedBy = *c.UpdatedBy
	}
	return cfg
}

type CleanupExecutionLog struct {
	ID              string         `gorm:"type:varchar(64);primaryKey"`
	TriggeredBy     string         `gorm:"type:varchar(10);not null"`
	AdminUserID     *string        `gorm:"type:varchar(64)"`
	ThresholdDays   int            `gorm:"not null"`
	BatchSize       int            `gorm:"not null"`
	DryRun          bool           `gorm:"not null"`
	CandidatesFound int            `gorm:"not null"`
	UsersDeleted    int            `gorm:"not null"`
	DeletedUserIDs  pq.StringArray `gorm:"type:text[];not null"`
	Errors          pq.StringArray `gorm:"type:text[];not null"`
	DurationMs      int64          `gorm:"not null"`
	Status          string         `gorm:"type:varchar(20);not null"`
	ExecutedAt      time.Time      `gorm:"not null;index:idx_cleanup_execution_logs_executed"`
}

func (CleanupExecutionLog) TableName() string { return "cleanup_execution_logs" }

func NewSchemaCleanupExecutionLog(l *cleanup.ExecutionLog) *CleanupExecutionLog {
	var admin *string
	if l.AdminUserID != "" {
		s := l.AdminUserID
		admin = &s
	}
	deleted := pq.StringArray(l.DeletedUserIDs)
	if deleted == nil {
		deleted = pq.StringArray{}
	}
	errs := pq.StringArray(l.Errors)
	if errs == nil {
		errs = pq.StringArray{}
	}
	return &CleanupExecutionLog{
		ID:              l.ID,
		TriggeredBy:     string(l.TriggeredBy),
		AdminUserID:     admin,
		ThresholdDays:   l.ThresholdDays,
		BatchSize:       l.BatchSize,
		DryRun:          l.DryRun,
		CandidatesFound: l.CandidatesFound,
		UsersDeleted:    l.UsersDeleted,
		DeletedUserIDs:  deleted,
		Errors:          errs,
		DurationMs:      l.DurationMs,
		Status:          l.Status,
		ExecutedAt:      l.ExecutedAt,
	}
}

func (l *CleanupExecutionLog) EtoD() *cleanup.ExecutionLog {
	out := &cleanup.ExecutionLog{
		ID:              l.ID,
		TriggeredBy:     cleanup.Trigger(l.TriggeredBy),
		ThresholdDays:   l.ThresholdDays,
		BatchSize:       l.BatchSize,
		DryRun:          l.DryRun,
		CandidatesFound: l.CandidatesFound,
		UsersDeleted:    l.UsersDeleted,
		DeletedUserIDs:  []string(l.DeletedUserIDs),
		Errors:          []string(l.Errors),
		DurationMs:      l.DurationMs,
		Status:          l.Status,
		ExecutedAt:      l.ExecutedAt,
	}
	if l.AdminUserID != nil {
		out.AdminUserID = *l.AdminUserID
	}
	return out
}
