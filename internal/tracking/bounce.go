package tracking

import (
	"regexp"
	"strings"
	"time"
)

// Bounce categories.
const (
	CategoryInvalidEmail     = "invalid_email"
	CategoryInvalidDomain    = "invalid_domain"
	CategoryPermanentFailure = "permanent_failure"
	CategoryMailboxFull      = "mailbox_full"
	CategoryTemporaryFailure = "temporary_failure"
	CategoryServerIssue      = "server_issue"
	CategorySoftBounce       = "soft_bounce"
)

// Follow-up actions attached to a bounce analysis.
const (
	ActionMarkEmailInvalid      = "mark_email_invalid"
	ActionMarkDomainInvalid     = "mark_domain_invalid"
	ActionFlagPermanentFailure  = "flag_permanent_failure"
	ActionUpdateProspectBounced = "update_prospect_status:bounced"
	ActionRemoveFromCampaign    = "remove_from_campaign"
	ActionScheduleRetry         = "schedule_retry"
)

// BounceAnalysis is computed per bounce event; it is never persisted as
// its own entity.
type BounceAnalysis struct {
	Category     string        `json:"category"`
	IsHardBounce bool          `json:"is_hard_bounce"`
	ShouldRetry  bool          `json:"should_retry"`
	RetryDelay   time.Duration `json:"retry_delay"`
	Actions      []string      `json:"actions"`
}

// hardBounceRule maps a reason pattern to a permanent-failure category.
// These patterns mark a bounce hard regardless of the reported type.
type hardBounceRule struct {
	pattern  *regexp.Regexp
	category string
	action   string
}

var hardBounceRules = []hardBounceRule{
	{
		pattern:  regexp.MustCompile(`(?i)(user|mailbox|address|recipient)\s+(unknown|not\s+found|does\s+not\s+exist|rejected|disabled)`),
		category: CategoryInvalidEmail,
		action:   ActionMarkEmailInvalid,
	},
	{
		pattern:  regexp.MustCompile(`(?i)no\s+such\s+(user|mailbox|recipient|address)`),
		category: CategoryInvalidEmail,
		action:   ActionMarkEmailInvalid,
	},
	{
		pattern:  regexp.MustCompile(`(?i)(invalid|bad)\s+(recipient|address|mailbox)`),
		category: CategoryInvalidEmail,
		action:   ActionMarkEmailInvalid,
	},
	{
		pattern:  regexp.MustCompile(`(?i)(domain\s+(not\s+found|does\s+not\s+exist)|no\s+such\s+domain|host\s+(unknown|not\s+found))`),
		category: CategoryInvalidDomain,
		action:   ActionMarkDomainInvalid,
	},
	{
		pattern:  regexp.MustCompile(`\b550\b`),
		category: CategoryPermanentFailure,
		action:   ActionFlagPermanentFailure,
	},
}

// softBounceRule keyword-categorizes a transient bounce and carries its
// retry delay.
type softBounceRule struct {
	keywords []string
	category string
	delay    time.Duration
}

var softBounceRules = []softBounceRule{
	{
		keywords: []string{"mailbox full", "quota exceeded", "over quota", "insufficient storage"},
		category: CategoryMailboxFull,
		delay:    24 * time.Hour,
	},
	{
		keywords: []string{"temporar", "try again", "deferred", "greylisted", "throttl"},
		category: CategoryTemporaryFailure,
		delay:    4 * time.Hour,
	},
	{
		keywords: []string{"server error", "connection", "timed out", "timeout", "service unavailable", "internal error"},
		category: CategoryServerIssue,
		delay:    time.Hour,
	},
}

const defaultSoftDelay = 4 * time.Hour

// ClassifyBounce maps a bounce event to its category, retry policy, and
// follow-up actions. A reason matching any hard pattern is permanent no
// matter what bounceType the provider reported.
func ClassifyBounce(bounceType, reason string) BounceAnalysis {
	for _, rule := range hardBounceRules {
		if rule.pattern.MatchString(reason) {
			return hardAnalysis(rule.category, rule.action)
		}
	}

	if strings.EqualFold(bounceType, "hard") || strings.EqualFold(bounceType, "permanent") {
		return hardAnalysis(CategoryPermanentFailure, ActionFlagPermanentFailure)
	}

	lower := strings.ToLower(reason)
	for _, rule := range softBounceRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return softAnalysis(rule.category, rule.delay)
			}
		}
	}
	return softAnalysis(CategorySoftBounce, defaultSoftDelay)
}

func hardAnalysis(category, action string) BounceAnalysis {
	return BounceAnalysis{
		Category:     category,
		IsHardBounce: true,
		ShouldRetry:  false,
		Actions: []string{
			action,
			ActionUpdateProspectBounced,
			ActionRemoveFromCampaign,
		},
	}
}

func softAnalysis(category string, delay time.Duration) BounceAnalysis {
	return BounceAnalysis{
		Category:    category,
		ShouldRetry: true,
		RetryDelay:  delay,
		Actions:     []string{ActionScheduleRetry},
	}
}
