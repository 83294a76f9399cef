package model

import "time"

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// EmailTemplate is one step of an outreach sequence, addressed by sequence
// number. Subject and body carry {{placeholder}} expressions resolved at
// send time.
type EmailTemplate struct {
	Sequence  int    `json:"sequence"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	DelayDays int    `json:"delay_days,omitempty"`
}

// CampaignSettings control when and how fast a campaign may send.
type CampaignSettings struct {
	DailySendLimit  int    `json:"daily_send_limit"`
	SendWindowStart int    `json:"send_window_start"` // hour of day, inclusive
	SendWindowEnd   int    `json:"send_window_end"`   // hour of day, exclusive
	Timezone        string `json:"timezone"`
	SkipWeekends    bool   `json:"skip_weekends"`
	FromAddress     string `json:"from_address"`
	AccountID       string `json:"account_id"` // sending account for rate-limit state
}

// CampaignStats are running counters maintained by send and tracking events.
type CampaignStats struct {
	EmailsSent      int `json:"emails_sent"`
	EmailsDelivered int `json:"emails_delivered"`
	EmailsBounced   int `json:"emails_bounced"`
	EmailsOpened    int `json:"emails_opened"`
	UniqueOpens     int `json:"unique_opens"`
	EmailsClicked   int `json:"emails_clicked"`
	UniqueClicks    int `json:"unique_clicks"`
	EmailsReplied   int `json:"emails_replied"`
	EmailsFailed    int `json:"emails_failed"`
}

// Campaign groups prospects with an email sequence and send settings.
//
// Status transitions: draft→active requires at least one template and one
// prospect; active→paused is manual; paused→active resumes; active→completed
// once every prospect has been emailed.
type Campaign struct {
	ID          string           `json:"id"`
	ClientID    string           `json:"client_id"`
	ICPID       string           `json:"icp_id,omitempty"`
	Name        string           `json:"name"`
	Status      CampaignStatus   `json:"status"`
	ProspectIDs []string         `json:"prospect_ids"`
	Templates   []EmailTemplate  `json:"templates"`
	Settings    CampaignSettings `json:"settings"`
	Stats       CampaignStats    `json:"stats"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TemplateForSequence returns the template with the given sequence number.
func (c *Campaign) TemplateForSequence(seq int) (EmailTemplate, bool) {
	for _, t := range c.Templates {
		if t.Sequence == seq {
			return t, true
		}
	}
	return EmailTemplate{}, false
}

// CanActivate reports whether a draft campaign satisfies the activation
// preconditions.
func (c *Campaign) CanActivate() bool {
	return len(c.Templates) > 0 && len(c.ProspectIDs) > 0
}

// EmailStatus is the delivery state of a single sent email.
type EmailStatus string

const (
	EmailStatusPending   EmailStatus = "pending"
	EmailStatusSent      EmailStatus = "sent"
	EmailStatusDelivered EmailStatus = "delivered"
	EmailStatusOpened    EmailStatus = "opened"
	EmailStatusClicked   EmailStatus = "clicked"
	EmailStatusReplied   EmailStatus = "replied"
	EmailStatusBounced   EmailStatus = "bounced"
	EmailStatusFailed    EmailStatus = "failed"
)

// SentEmail is one transport attempt for one (campaign, prospect, sequence).
// A row is created pending before the attempt and only ever appended to via
// status/timestamp updates, never deleted.
type SentEmail struct {
	ID             string      `json:"id"`
	CampaignID     string      `json:"campaign_id"`
	ProspectID     string      `json:"prospect_id"`
	SequenceNumber int         `json:"sequence_number"`
	ToEmail        string      `json:"to_email"`
	Subject        string      `json:"subject"`
	Status         EmailStatus `json:"status"`
	MessageID      string      `json:"message_id,omitempty"`
	Error          string      `json:"error,omitempty"`

	OpenCount  int `json:"open_count"`
	ClickCount int `json:"click_count"`

	CreatedAt   time.Time  `json:"created_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	OpenedAt    *time.Time `json:"opened_at,omitempty"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty"`
	RepliedAt   *time.Time `json:"replied_at,omitempty"`
	BouncedAt   *time.Time `json:"bounced_at,omitempty"`
}

// EngagementMetrics is a derived per-(campaign, prospect) snapshot; an
// engagement score is always recomputed fresh from it.
type EngagementMetrics struct {
	CampaignID string `json:"campaign_id"`
	ProspectID string `json:"prospect_id"`

	EmailsSent    int `json:"emails_sent"`
	EmailsOpened  int `json:"emails_opened"`
	UniqueOpens   int `json:"unique_opens"`
	EmailsClicked int `json:"emails_clicked"`
	UniqueClicks  int `json:"unique_clicks"`
	EmailsReplied int `json:"emails_replied"`

	LastOpenAt  *time.Time `json:"last_open_at,omitempty"`
	LastClickAt *time.Time `json:"last_click_at,omitempty"`
	LastReplyAt *time.Time `json:"last_reply_at,omitempty"`
}
