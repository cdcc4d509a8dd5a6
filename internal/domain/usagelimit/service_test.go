package usagelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlima-server/internal/utils/platformerrors"
)

type memoryCounter struct {
	mu      sync.Mutex
	daily   map[string]int64
	monthly map[string]int64
	err     error
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{daily: map[string]int64{}, monthly: map[string]int64{}}
}

func (c *memoryCounter) IncrementIfAllowed(_ context.Context, userID string, _ time.Time, dailyLimit, monthlyLimit int64) (*CounterResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	d, m := c.daily[userID], c.monthly[userID]
	if (dailyLimit >= 0 && d >= dailyLimit) || (monthlyLimit >= 0 && m >= monthlyLimit) {
		return &CounterResult{Daily: d, Monthly: m}, nil
	}
	c.daily[userID]++
	c.monthly[userID]++
	return &CounterResult{Incremented: true, Daily: c.daily[userID], Monthly: c.monthly[userID]}, nil
}

func (c *memoryCounter) Peek(_ context.Context, userID string, _ time.Time) (int64, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, 0, c.err
	}
	return c.daily[userID], c.monthly[userID], nil
}

type memoryOverrides struct {
	rows map[string]*Override
}

func (r *memoryOverrides) FindOverride(_ context.Context, userID string) (*Override, error) {
	return r.rows[userID], nil
}

func (r *memoryOverrides) UpsertOverride(_ context.Context, o *Override) (*Override, error) {
	r.rows[o.UserID] = o
	return o, nil
}

func newTestService(counter Counter) (*UsageLimitsService, *memoryOverrides) {
	repo := &memoryOverrides{rows: map[string]*Override{}}
	svc := NewUsageLimitsService(counter, repo, Settings{AnonymousDaily: 2, FreeDaily: 3, DefaultMonthly: 100}, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC) }
	return svc, repo
}

func int64Ptr(v int64) *int64 { return &v }

func TestCheckAndIncrement_AnonymousDailyLimit(t *testing.T) {
	svc, _ := newTestService(newMemoryCounter())
	ctx := context.Background()
	subject := Subject{UserID: "anon-1", IsAnonymous: true}

	for i := 1; i <= 2; i++ {
		decision, err := svc.CheckAndIncrement(ctx, subject)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, int64(i), decision.DailyUsed)
		assert.Equal(t, int64(2), decision.DailyLimit)
	}

	decision, err := svc.CheckAndIncrement(ctx, subject)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "Daily message limit reached", decision.Reason)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), decision.ResetAt)
	assert.Equal(t, int64(2), decision.DailyUsed)
}

func TestCheckAndIncrement_MonthlyOverride(t *testing.T) {
	svc, repo := newTestService(newMemoryCounter())
	ctx := context.Background()
	repo.rows["u1"] = &Override{UserID: "u1", MonthlyMessageLimit: int64Ptr(1)}

	decision, err := svc.CheckAndIncrement(ctx, Subject{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = svc.CheckAndIncrement(ctx, Subject{UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "Monthly message limit reached", decision.Reason)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), decision.ResetAt)
}

func TestCheckAndIncrement_FailsOpen(t *testing.T) {
	counter := newMemoryCounter()
	counter.err = errors.New("dial tcp: connection refused")
	svc, _ := newTestService(counter)

	decision, err := svc.CheckAndIncrement(context.Background(), Subject{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.True(t, decision.Degraded)
}

func TestResolveLimits(t *testing.T) {
	svc, repo := newTestService(newMemoryCounter())
	ctx := context.Background()

	limits, _, err := svc.ResolveLimits(ctx, Subject{UserID: "a", IsAnonymous: true})
	require.NoError(t, err)
	assert.Equal(t, Limits{Daily: 2, Monthly: 100, Source: "anonymous"}, limits)

	limits, _, err = svc.ResolveLimits(ctx, Subject{UserID: "f"})
	require.NoError(t, err)
	assert.Equal(t, Limits{Daily: 3, Monthly: 100, Source: "free"}, limits)

	limits, _, err = svc.ResolveLimits(ctx, Subject{UserID: "c", HasCredits: true})
	require.NoError(t, err)
	assert.Equal(t, Limits{Daily: Unlimited, Monthly: Unlimited, Source: "credits"}, limits)

	repo.rows["c"] = &Override{UserID: "c", DailyMessageLimit: int64Ptr(50)}
	limits, override, err := svc.ResolveLimits(ctx, Subject{UserID: "c", HasCredits: true})
	require.NoError(t, err)
	require.NotNil(t, override)
	assert.Equal(t, Limits{Daily: 50, Monthly: Unlimited, Source: "override"}, limits)
}

func TestPeekDoesNotIncrement(t *testing.T) {
	counter := newMemoryCounter()
	svc, _ := newTestService(counter)
	ctx := context.Background()

	_, err := svc.CheckAndIncrement(ctx, Subject{UserID: "u1"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		decision, err := svc.Peek(ctx, Subject{UserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), decision.DailyUsed)
		assert.True(t, decision.Allowed)
	}
}

func TestUpdateLimitsValidation(t *testing.T) {
	svc, repo := newTestService(newMemoryCounter())
	ctx := context.Background()

	_, err := svc.UpdateLimits(ctx, "", int64Ptr(1), nil)
	require.Error(t, err)
	assert.Equal(t, "INVALID_PARAMETERS", platformerrors.CodeOf(err))

	_, err = svc.UpdateLimits(ctx, "u1", int64Ptr(-5), nil)
	assert.Equal(t, "INVALID_PARAMETERS", platformerrors.CodeOf(err))

	saved, err := svc.UpdateLimits(ctx, "u1", int64Ptr(40), int64Ptr(Unlimited))
	require.NoError(t, err)
	assert.Equal(t, int64(40), *saved.DailyMessageLimit)
	assert.Contains(t, repo.rows, "u1")

	view, err := svc.GetLimits(ctx, Subject{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(40), view.Limits.Daily)
	assert.Equal(t, Unlimited, view.Limits.Monthly)
}
