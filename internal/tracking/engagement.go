package tracking

import (
	"time"

	"github.com/sells-group/outreach-engine/internal/model"
)

// Engagement levels, most to least engaged.
const (
	LevelHot       = "hot"
	LevelWarm      = "warm"
	LevelCold      = "cold"
	LevelUnengaged = "unengaged"
)

const (
	recencyWindow = 24 * time.Hour
	maxScore      = 100
	openPoints    = 10
	reopenPoints  = 5
	clickPoints   = 25
	replyPoints   = 50
	recencyPoints = 10
	hotThreshold  = 50
	warmThreshold = 30
	coldThreshold = 10
)

var levelActions = map[string]string{
	LevelHot:       "reach out personally within one business day",
	LevelWarm:      "send the next sequence step",
	LevelCold:      "keep nurturing on the regular cadence",
	LevelUnengaged: "try a different angle or channel",
}

// EngagementScore is the scored view of a metrics snapshot.
type EngagementScore struct {
	Score             int    `json:"score"`
	Level             string `json:"level"`
	RecommendedAction string `json:"recommended_action"`
}

// ScoreEngagement grades a metrics snapshot on a 0-100 scale. A reply
// always makes the prospect hot regardless of raw score.
func ScoreEngagement(m model.EngagementMetrics, now time.Time) EngagementScore {
	score := 0
	if m.EmailsOpened > 0 {
		score += openPoints + reopenPoints*(m.EmailsOpened-1)
	}
	if m.EmailsClicked > 0 {
		score += clickPoints
	}
	if m.EmailsReplied > 0 {
		score += replyPoints
	}
	if last := lastActivity(m); last != nil && now.Sub(*last) <= recencyWindow {
		score += recencyPoints
	}
	if score > maxScore {
		score = maxScore
	}

	level := levelFor(score, m)
	return EngagementScore{
		Score:             score,
		Level:             level,
		RecommendedAction: levelActions[level],
	}
}

// ScoreDelta reports the change between two snapshots of the same
// prospect, scored at the same instant.
func ScoreDelta(before, after model.EngagementMetrics, now time.Time) int {
	return ScoreEngagement(after, now).Score - ScoreEngagement(before, now).Score
}

func levelFor(score int, m model.EngagementMetrics) string {
	switch {
	case m.EmailsReplied > 0 || score >= hotThreshold:
		return LevelHot
	case m.EmailsClicked > 0 || score >= warmThreshold:
		return LevelWarm
	case m.EmailsOpened > 0 || score >= coldThreshold:
		return LevelCold
	default:
		return LevelUnengaged
	}
}

func lastActivity(m model.EngagementMetrics) *time.Time {
	var last *time.Time
	for _, ts := range []*time.Time{m.LastOpenAt, m.LastClickAt, m.LastReplyAt} {
		if ts == nil {
			continue
		}
		if last == nil || ts.After(*last) {
			last = ts
		}
	}
	return last
}

// BuildMetrics derives an engagement snapshot from a prospect's sent
// emails within one campaign. Emails for other campaigns are skipped so
// callers can pass an unfiltered list.
func BuildMetrics(campaignID, prospectID string, emails []model.SentEmail) model.EngagementMetrics {
	m := model.EngagementMetrics{CampaignID: campaignID, ProspectID: prospectID}
	for _, e := range emails {
		if e.CampaignID != campaignID || e.ProspectID != prospectID {
			continue
		}
		if e.Status == model.EmailStatusPending || e.Status == model.EmailStatusFailed {
			continue
		}
		m.EmailsSent++
		if e.OpenCount > 0 {
			m.EmailsOpened += e.OpenCount
			m.UniqueOpens++
		}
		if e.ClickCount > 0 {
			m.EmailsClicked += e.ClickCount
			m.UniqueClicks++
		}
		if e.RepliedAt != nil {
			m.EmailsReplied++
			m.LastReplyAt = laterOf(m.LastReplyAt, e.RepliedAt)
		}
		m.LastOpenAt = laterOf(m.LastOpenAt, e.OpenedAt)
		m.LastClickAt = laterOf(m.LastClickAt, e.ClickedAt)
	}
	return m
}

func laterOf(a, b *time.Time) *time.Time {
	if b == nil {
		return a
	}
	if a == nil || b.After(*a) {
		return b
	}
	return a
}
