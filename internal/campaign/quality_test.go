package campaign

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckQuality_CleanPersonalizedEmail(t *testing.T) {
	t.Parallel()

	report := CheckQuality(
		"Quick question about {{company_name}}",
		"Noticed Acme Roofing expanded into Austin last quarter. We help roofing contractors cut bid turnaround in half. Would you be open to a short call next week?",
	)

	assert.Equal(t, 100, report.Score)
	assert.Equal(t, "A", report.Grade)
	assert.Empty(t, report.Warnings)
	assert.Contains(t, report.Feedback, "subject line personalized")
	assert.Contains(t, report.Feedback, "has clear call-to-action")
	assert.Contains(t, report.Recommendations, "email looks good, consider A/B testing subject lines")
}

func TestCheckQuality_SpamHeavyEmailFloorsAtZero(t *testing.T) {
	t.Parallel()

	report := CheckQuality(
		"RE: AMAZING FREE OFFER!!!",
		"Act now! This is a risk-free offer with no obligation. Click here to buy now and save big. 100% guarantee!",
	)

	assert.Equal(t, 0, report.Score)
	assert.Equal(t, "F", report.Grade)
	assert.Contains(t, report.Warnings[0], "spam triggers found")
	assert.Contains(t, report.Feedback, "subject is all caps")
	assert.Contains(t, report.Feedback, "fake reply/forward prefix")
	assert.Contains(t, report.Feedback, "too many exclamation marks")
	assert.Contains(t, report.Recommendations, "remove spam trigger words to improve deliverability")
}

func TestCheckQuality_GenericPhrasePenaltyCaps(t *testing.T) {
	t.Parallel()

	report := CheckQuality(
		"Checking in",
		"Hope this email finds you well. I wanted to reach out. Just following up and touching base, circling back per my last email.",
	)

	// Six phrases at 5 points each hit the 30-point cap; the two-word
	// subject loses 10 and the single-proper-noun subject earns 10 back.
	assert.Equal(t, 70, report.Score)
	assert.Equal(t, "C", report.Grade)
	assert.Contains(t, report.Warnings[0], "generic phrases found")
	assert.Contains(t, report.Feedback, "subject too short")
	assert.Contains(t, report.Recommendations, "replace generic phrases with specific, personalized content")
}

func TestCheckQuality_LongBodyWithoutAskIsFlagged(t *testing.T) {
	t.Parallel()

	body := strings.TrimSpace(strings.Repeat("roofing product update ", 80))
	report := CheckQuality("Monthly product notes for roofers", body)

	assert.Equal(t, 75, report.Score)
	assert.Contains(t, report.Feedback, "missing clear call-to-action")
	assert.Contains(t, report.Recommendations, "shorten the email, aim for 100-150 words")
	assert.Contains(t, report.Recommendations, "add a clear call-to-action")
}
