package usagelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"chatlima-server/internal/infrastructure/metrics"
	"chatlima-server/internal/utils/platformerrors"
)

// Settings are the default limits.
type Settings struct {
	AnonymousDaily int64
	FreeDaily      int64
	DefaultMonthly int64
}

// UsageLimitsService enforces daily and monthly message limits.
type UsageLimitsService struct {
	counter  Counter
	repo     Repository
	settings Settings
	log      zerolog.Logger
	now      func() time.Time
}

func NewUsageLimitsService(counter Counter, repo Repository, settings Settings, log zerolog.Logger) *UsageLimitsService {
	return &UsageLimitsService{
		counter:  counter,
		repo:     repo,
		settings: settings,
		log:      log.With().Str("component", "usage-limits").Logger(),
		now:      time.Now,
	}
}

// ResolveLimits applies override, then the anonymous default, then unlimited for credit holders, then the free default.
func (s *UsageLimitsService) ResolveLimits(ctx context.Context, subject Subject) (Limits, *Override, error) {
	limits := Limits{Monthly: s.settings.DefaultMonthly}
	switch {
	case subject.IsAnonymous:
		limits.Daily = s.settings.AnonymousDaily
		limits.Source = "anonymous"
	case subject.HasCredits:
		limits.Daily = Unlimited
		limits.Monthly = Unlimited
		limits.Source = "credits"
	default:
		limits.Daily = s.settings.FreeDaily
		limits.Source = "free"
	}

	override, err := s.repo.FindOverride(ctx, subject.UserID)
	if err != nil {
		return limits, nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load usage limit override")
	}
	if override != nil {
		if override.DailyMessageLimit != nil {
			limits.Daily = *override.DailyMessageLimit
			limits.Source = "override"
		}
		if override.MonthlyMessageLimit != nil {
			limits.Monthly = *override.MonthlyMessageLimit
			limits.Source = "override"
		}
	}
	return limits, override, nil
}

// CheckAndIncrement counts one message when the subject is under both limits.
// The check fails open when the counter store is unavailable.
func (s *UsageLimitsService) CheckAndIncrement(ctx context.Context, subject Subject) (*UsageDecision, error) {
	now := s.now().UTC()
	limits, _, err := s.ResolveLimits(ctx, subject)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", subject.UserID).Msg("usage limit override unavailable, using defaults")
	}

	decision := &UsageDecision{
		DailyLimit:   limits.Daily,
		MonthlyLimit: limits.Monthly,
		ResetAt:      nextDay(now),
	}

	res, err := s.counter.IncrementIfAllowed(ctx, subject.UserID, now, limits.Daily, limits.Monthly)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", subject.UserID).Msg("usage counter unavailable, allowing request")
		decision.Allowed = true
		decision.Degraded = true
		return decision, nil
	}

	decision.DailyUsed = res.Daily
	decision.MonthlyUsed = res.Monthly
	decision.Allowed = res.Incremented
	if !decision.Allowed {
		if exceeded(limits.Daily, res.Daily) {
			decision.Reason = "Daily message limit reached"
			metrics.RecordUsageLimitRejection("daily")
		} else {
			decision.Reason = "Monthly message limit reached"
			decision.ResetAt = nextMonth(now)
			metrics.RecordUsageLimitRejection("monthly")
		}
		s.log.Info().Str("user_id", subject.UserID).Int64("daily_used", res.Daily).Int64("monthly_used", res.Monthly).Msg(decision.Reason)
	}
	return decision, nil
}

// Peek reports the current usage without counting a message.
func (s *UsageLimitsService) Peek(ctx context.Context, subject Subject) (*UsageDecision, error) {
	now := s.now().UTC()
	limits, _, err := s.ResolveLimits(ctx, subject)
	if err != nil {
		return nil, err
	}
	decision := &UsageDecision{
		DailyLimit:   limits.Daily,
		MonthlyLimit: limits.Monthly,
		ResetAt:      nextDay(now),
	}
	daily, monthly, err := s.counter.Peek(ctx, subject.UserID, now)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", subject.UserID).Msg("usage counter unavailable")
		decision.Allowed = true
		decision.Degraded = true
		return decision, nil
	}
	decision.DailyUsed = daily
	decision.MonthlyUsed = monthly
	decision.Allowed = !exceeded(limits.Daily, daily) && !exceeded(limits.Monthly, monthly)
	return decision, nil
}

// GetLimits returns effective limits, the stored override and current counters.
func (s *UsageLimitsService) GetLimits(ctx context.Context, subject Subject) (*UsageView, error) {
	limits, override, err := s.ResolveLimits(ctx, subject)
	if err != nil {
		return nil, err
	}
	view := &UsageView{UserID: subject.UserID, Limits: limits, Override: override}
	daily, monthly, err := s.counter.Peek(ctx, subject.UserID, s.now().UTC())
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", subject.UserID).Msg("usage counter unavailable")
		return view, nil
	}
	view.Usage.Daily = daily
	view.Usage.Monthly = monthly
	return view, nil
}

// UpdateLimits stores an override. Nil values clear that window's override.
func (s *UsageLimitsService) UpdateLimits(ctx context.Context, userID string, daily, monthly *int64) (*Override, error) {
	if userID == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "userId is required", nil, "1d7e3a9c-5b2f-4e8a-9c6d-0a3f7b1e5d28").WithCode("INVALID_PARAMETERS")
	}
	for _, v := range []*int64{daily, monthly} {
		if v != nil && *v < Unlimited {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "limits must be -1 (unlimited) or a non-negative number", nil, "8f2c6d1a-4e9b-4a7c-b3d5-2e6a9c0f7b41").WithCode("INVALID_PARAMETERS")
		}
	}

	saved, err := s.repo.UpsertOverride(ctx, &Override{
		UserID:              userID,
		DailyMessageLimit:   daily,
		MonthlyMessageLimit: monthly,
		UpdatedAt:           s.now().UTC(),
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update usage limits")
	}
	s.log.Info().Str("user_id", userID).Msg("usage limit override updated")
	return saved, nil
}

func exceeded(limit, used int64) bool {
	return limit != Unlimited && used >= limit
}

func nextDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

func nextMonth(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
}
