package tracking

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
)

// Event types accepted by the handler.
const (
	EventDelivered = "delivered"
	EventOpen      = "open"
	EventClick     = "click"
	EventReply     = "reply"
	EventBounce    = "bounce"
)

// Event is a provider webhook notification, keyed by the transport
// message ID assigned at send time.
type Event struct {
	Type       string    `json:"type"`
	MessageID  string    `json:"message_id"`
	Timestamp  time.Time `json:"timestamp"`
	BounceType string    `json:"bounce_type,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ReplyBody  string    `json:"reply_body,omitempty"`
}

// EventResult summarizes what a single event changed.
type EventResult struct {
	Email      *model.SentEmail `json:"email"`
	Bounce     *BounceAnalysis  `json:"bounce,omitempty"`
	Sentiment  string           `json:"sentiment,omitempty"`
	Engagement EngagementScore  `json:"engagement"`
	ScoreDelta int              `json:"score_delta"`
}

// statusRank orders delivery states so late-arriving events never move
// an email backwards. Bounced and failed are terminal.
var statusRank = map[model.EmailStatus]int{
	model.EmailStatusPending:   0,
	model.EmailStatusSent:      1,
	model.EmailStatusDelivered: 2,
	model.EmailStatusOpened:    3,
	model.EmailStatusClicked:   4,
	model.EmailStatusReplied:   5,
	model.EmailStatusBounced:   6,
	model.EmailStatusFailed:    6,
}

// Handler applies tracking events to stored emails, campaigns, and
// prospects.
type Handler struct {
	store store.Store
	now   func() time.Time
}

// NewHandler creates an event handler backed by the given store.
func NewHandler(s store.Store) *Handler {
	return &Handler{store: s, now: time.Now}
}

// HandleEvent processes one webhook event. Events for unknown message
// IDs are an error so the provider retries after a late send commit.
func (h *Handler) HandleEvent(ctx context.Context, ev Event) (*EventResult, error) {
	email, err := h.store.GetSentEmailByMessageID(ctx, ev.MessageID)
	if err != nil {
		return nil, eris.Wrap(err, "tracking: look up email by message id")
	}
	campaign, err := h.store.GetCampaign(ctx, email.CampaignID)
	if err != nil {
		return nil, eris.Wrap(err, "tracking: load campaign")
	}
	history, err := h.store.ListSentEmailsForProspect(ctx, email.CampaignID, email.ProspectID)
	if err != nil {
		return nil, eris.Wrap(err, "tracking: load prospect emails")
	}
	before := BuildMetrics(email.CampaignID, email.ProspectID, history)

	when := ev.Timestamp
	if when.IsZero() {
		when = h.now()
	}

	result := &EventResult{Email: email}
	switch strings.ToLower(ev.Type) {
	case EventDelivered:
		if email.DeliveredAt == nil {
			email.DeliveredAt = &when
			campaign.Stats.EmailsDelivered++
		}
		advanceStatus(email, model.EmailStatusDelivered)
	case EventOpen:
		email.OpenCount++
		campaign.Stats.EmailsOpened++
		if email.OpenedAt == nil {
			email.OpenedAt = &when
			campaign.Stats.UniqueOpens++
		}
		advanceStatus(email, model.EmailStatusOpened)
	case EventClick:
		email.ClickCount++
		campaign.Stats.EmailsClicked++
		if email.ClickedAt == nil {
			email.ClickedAt = &when
			campaign.Stats.UniqueClicks++
		}
		advanceStatus(email, model.EmailStatusClicked)
	case EventReply:
		if email.RepliedAt == nil {
			email.RepliedAt = &when
			campaign.Stats.EmailsReplied++
		}
		advanceStatus(email, model.EmailStatusReplied)
		result.Sentiment = ClassifyReply(ev.ReplyBody)
		if err := h.store.UpdateProspectStatus(ctx, email.ProspectID, model.ProspectStatusResponded); err != nil {
			return nil, eris.Wrap(err, "tracking: mark prospect responded")
		}
	case EventBounce:
		analysis := ClassifyBounce(ev.BounceType, ev.Reason)
		result.Bounce = &analysis
		if email.BouncedAt == nil {
			email.BouncedAt = &when
			campaign.Stats.EmailsBounced++
		}
		email.Status = model.EmailStatusBounced
		email.Error = ev.Reason
		if analysis.IsHardBounce {
			if err := h.applyHardBounce(ctx, campaign, email.ProspectID); err != nil {
				return nil, err
			}
		}
	default:
		return nil, eris.Errorf("tracking: unknown event type %q", ev.Type)
	}

	if err := h.store.UpdateSentEmail(ctx, email); err != nil {
		return nil, eris.Wrap(err, "tracking: update email")
	}
	if err := h.store.UpdateCampaign(ctx, campaign); err != nil {
		return nil, eris.Wrap(err, "tracking: update campaign stats")
	}

	after := BuildMetrics(email.CampaignID, email.ProspectID, replaceEmail(history, email))
	result.Engagement = ScoreEngagement(after, h.now())
	result.ScoreDelta = ScoreEngagement(after, h.now()).Score - ScoreEngagement(before, h.now()).Score

	zap.L().Debug("tracking event applied",
		zap.String("type", ev.Type),
		zap.String("email_id", email.ID),
		zap.String("level", result.Engagement.Level),
		zap.Int("delta", result.ScoreDelta))
	return result, nil
}

// applyHardBounce removes the prospect from the campaign and flags it
// bounced so future sends skip it.
func (h *Handler) applyHardBounce(ctx context.Context, c *model.Campaign, prospectID string) error {
	if err := h.store.UpdateProspectStatus(ctx, prospectID, model.ProspectStatusBounced); err != nil {
		return eris.Wrap(err, "tracking: mark prospect bounced")
	}
	kept := c.ProspectIDs[:0:0]
	for _, id := range c.ProspectIDs {
		if id != prospectID {
			kept = append(kept, id)
		}
	}
	c.ProspectIDs = kept
	return nil
}

func advanceStatus(e *model.SentEmail, next model.EmailStatus) {
	if statusRank[next] > statusRank[e.Status] {
		e.Status = next
	}
}

func replaceEmail(history []model.SentEmail, updated *model.SentEmail) []model.SentEmail {
	out := make([]model.SentEmail, len(history))
	copy(out, history)
	for i := range out {
		if out[i].ID == updated.ID {
			out[i] = *updated
		}
	}
	return out
}
