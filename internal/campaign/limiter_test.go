package campaign

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is an adjustable time source shared by a test's limiters.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(t *testing.T, cfg LimiterConfig, clock *fakeClock) *AccountLimiter {
	t.Helper()
	r := NewRegistry(cfg)
	r.now = clock.Now
	l, err := r.Account("acct-1", "UTC")
	require.NoError(t, err)
	return l
}

func TestAccountLimiter_WarmupDayOne(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
	l := newTestLimiter(t, LimiterConfig{WarmupEnabled: true, DailyLimit: 200}, clock)

	assert.Equal(t, 10, l.WarmupCap())
	for i := 0; i < 10; i++ {
		ok, _ := l.CanSend(0)
		require.True(t, ok, "send %d should be allowed", i+1)
		l.RecordSend()
	}
	ok, reason := l.CanSend(0)
	assert.False(t, ok)
	assert.Contains(t, reason, "daily limit")
}

func TestAccountLimiter_HourlyReset(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC))
	l := newTestLimiter(t, LimiterConfig{HourlyLimit: 2, DailyLimit: 100}, clock)

	l.RecordSend()
	l.RecordSend()
	ok, reason := l.CanSend(0)
	assert.False(t, ok)
	assert.Contains(t, reason, "hourly limit")

	clock.Advance(31 * time.Minute)
	ok, _ = l.CanSend(0)
	assert.True(t, ok, "hour rollover resets the hourly counter")
}

func TestAccountLimiter_MidnightAdvancesWarmup(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC))
	l := newTestLimiter(t, LimiterConfig{WarmupEnabled: true}, clock)

	for i := 0; i < 10; i++ {
		l.RecordSend()
	}
	ok, _ := l.CanSend(0)
	require.False(t, ok)

	clock.Advance(2 * time.Hour) // past local midnight
	ok, _ = l.CanSend(0)
	assert.True(t, ok, "daily counter resets at midnight")
	assert.Equal(t, 25, l.WarmupCap(), "new calendar day advances one warmup step")
}

func TestAccountLimiter_WarmupCapsAtLastStep(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	l := newTestLimiter(t, LimiterConfig{WarmupEnabled: true}, clock)
	require.Equal(t, 10, l.WarmupCap())

	clock.Advance(30 * 24 * time.Hour)
	assert.Equal(t, 200, l.WarmupCap())
}

func TestAccountLimiter_CampaignLimitTightens(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	l := newTestLimiter(t, LimiterConfig{DailyLimit: 100}, clock)

	l.RecordSend()
	l.RecordSend()
	ok, _ := l.CanSend(2)
	assert.False(t, ok, "campaign daily limit overrides the account cap when lower")
	ok, _ = l.CanSend(0)
	assert.True(t, ok)
}

func TestAccountLimiter_WarmupDisabled(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	l := newTestLimiter(t, LimiterConfig{DailyLimit: 50}, clock)

	assert.Equal(t, 0, l.WarmupCap())
	for i := 0; i < 20; i++ {
		l.RecordSend()
	}
	ok, _ := l.CanSend(0)
	assert.True(t, ok, "only the account daily limit applies")
}

func TestRegistry_SharedAccount(t *testing.T) {
	t.Parallel()

	r := NewRegistry(LimiterConfig{DailyLimit: 10})
	a, err := r.Account("acct-1", "America/Chicago")
	require.NoError(t, err)
	b, err := r.Account("acct-1", "America/New_York")
	require.NoError(t, err)
	assert.Same(t, a, b, "campaigns sharing an account share limiter state")

	_, err = r.Account("acct-2", "Not/AZone")
	assert.Error(t, err)
}
