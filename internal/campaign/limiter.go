package campaign

import (
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// warmupSchedule caps sends per day for a newly active sending account,
// advancing one step per calendar day and holding at the last value.
var warmupSchedule = []int{10, 25, 50, 100, 150, 200}

// LimiterConfig bounds a sending account independently of any campaign.
type LimiterConfig struct {
	HourlyLimit   int
	DailyLimit    int
	MinDelay      time.Duration
	WarmupEnabled bool
}

// AccountLimiter tracks hourly/daily counters and warmup progress for one
// sending account. All access is serialized through its mutex so campaigns
// sharing an account cannot double-spend quota.
type AccountLimiter struct {
	mu  sync.Mutex
	cfg LimiterConfig
	loc *time.Location
	now func() time.Time

	warmupIndex  int
	sentThisHour int
	sentToday    int
	hourStart    time.Time
	dayStart     time.Time
}

// CanSend reports whether the account has quota for one more send.
// campaignDailyLimit further tightens the daily cap when positive. The
// returned reason is empty when sending is allowed.
func (l *AccountLimiter) CanSend(campaignDailyLimit int) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll(l.now().In(l.loc))

	if l.cfg.HourlyLimit > 0 && l.sentThisHour >= l.cfg.HourlyLimit {
		return false, fmt.Sprintf("hourly limit of %d reached", l.cfg.HourlyLimit)
	}
	daily := l.dailyCap(campaignDailyLimit)
	if daily > 0 && l.sentToday >= daily {
		return false, fmt.Sprintf("daily limit of %d reached", daily)
	}
	return true, ""
}

// RecordSend charges one send against the hourly and daily counters.
func (l *AccountLimiter) RecordSend() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll(l.now().In(l.loc))
	l.sentThisHour++
	l.sentToday++
}

// WarmupCap returns the current warmup-schedule daily cap, or 0 when
// warmup is disabled.
func (l *AccountLimiter) WarmupCap() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll(l.now().In(l.loc))
	if !l.cfg.WarmupEnabled {
		return 0
	}
	return warmupSchedule[l.warmupIndex]
}

func (l *AccountLimiter) dailyCap(campaignDailyLimit int) int {
	limit := l.cfg.DailyLimit
	if l.cfg.WarmupEnabled {
		if w := warmupSchedule[l.warmupIndex]; limit == 0 || w < limit {
			limit = w
		}
	}
	if campaignDailyLimit > 0 && (limit == 0 || campaignDailyLimit < limit) {
		limit = campaignDailyLimit
	}
	return limit
}

// roll resets the hourly counter on hour rollover and the daily counter
// at local midnight. Each new calendar day advances the warmup index.
func (l *AccountLimiter) roll(now time.Time) {
	hour := now.Truncate(time.Hour)
	if hour.After(l.hourStart) {
		l.hourStart = hour
		l.sentThisHour = 0
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if day.After(l.dayStart) {
		if !l.dayStart.IsZero() {
			days := int(day.Sub(l.dayStart).Hours() / 24)
			l.warmupIndex += days
			if l.warmupIndex >= len(warmupSchedule) {
				l.warmupIndex = len(warmupSchedule) - 1
			}
		}
		l.dayStart = day
		l.sentToday = 0
	}
}

// Registry hands out one limiter per sending account id, shared across
// campaigns.
type Registry struct {
	mu       sync.Mutex
	cfg      LimiterConfig
	now      func() time.Time
	accounts map[string]*AccountLimiter
}

// NewRegistry creates an account-limiter registry.
func NewRegistry(cfg LimiterConfig) *Registry {
	return &Registry{
		cfg:      cfg,
		now:      time.Now,
		accounts: make(map[string]*AccountLimiter),
	}
}

// Account returns the limiter for the given account id, creating it in
// the given timezone on first use. The timezone of an existing limiter
// is not changed.
func (r *Registry) Account(accountID, timezone string) (*AccountLimiter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.accounts[accountID]; ok {
		return l, nil
	}

	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, eris.Wrapf(err, "campaign: load timezone %q", timezone)
		}
	}

	l := &AccountLimiter{cfg: r.cfg, loc: loc, now: r.now}
	r.accounts[accountID] = l
	return l, nil
}
