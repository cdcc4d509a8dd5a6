package usagelimit

import (
	"context"
	"time"
)

// Unlimited marks a window without a cap.
const Unlimited int64 = -1

// Override is a per-user limit row. Nil fields fall back to the defaults.
type Override struct {
	UserID              string    `json:"userId"`
	DailyMessageLimit   *int64    `json:"dailyMessageLimit,omitempty"`
	MonthlyMessageLimit *int64    `json:"monthlyMessageLimit,omitempty"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Subject identifies the caller whose messages are counted.
type Subject struct {
	UserID      string
	IsAnonymous bool
	HasCredits  bool
}

// Limits are the effective caps for a subject.
type Limits struct {
	Daily   int64 `json:"dailyMessageLimit"`
	Monthly int64 `json:"monthlyMessageLimit"`
	// Source is "override", "credits", "anonymous" or "free".
	Source string `json:"source"`
}

// UsageDecision is the result of a limit check.
type UsageDecision struct {
	Allowed      bool      `json:"allowed"`
	Reason       string    `json:"reason,omitempty"`
	DailyUsed    int64     `json:"dailyUsed"`
	DailyLimit   int64     `json:"dailyLimit"`
	MonthlyUsed  int64     `json:"monthlyUsed"`
	MonthlyLimit int64     `json:"monthlyLimit"`
	ResetAt      time.Time `json:"resetAt"`
	// Degraded is set when the counter store was unreachable and the request was let through.
	Degraded bool `json:"-"`
}

// UsageView is returned by GetLimits.
type UsageView struct {
	UserID   string    `json:"userId"`
	Limits   Limits    `json:"limits"`
	Override *Override `json:"override,omitempty"`
	Usage    struct {
		Daily   int64 `json:"daily"`
		Monthly int64 `json:"monthly"`
	} `json:"usage"`
}

// CounterResult reports counters after an increment attempt.
type CounterResult struct {
	Incremented bool
	Daily       int64
	Monthly     int64
}

// Counter stores the per-window message counters.
type Counter interface {
	// IncrementIfAllowed bumps both windows only when neither has reached its limit.
	IncrementIfAllowed(ctx context.Context, userID string, now time.Time, dailyLimit, monthlyLimit int64) (*CounterResult, error)
	Peek(ctx context.Context, userID string, now time.Time) (daily int64, monthly int64, err error)
}

// Repository persists limit overrides.
type Repository interface {
	// FindOverride returns nil when the user has no override.
	FindOverride(ctx context.Context, userID string) (*Override, error)
	UpsertOverride(ctx context.Context, override *Override) (*Override, error)
}
