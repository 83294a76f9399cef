package campaign

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
	"github.com/sells-group/outreach-engine/pkg/ses"
)

// Stop reasons reported by a send run that ended before exhausting the
// prospect list. None of them are errors; the run resumes later.
const (
	StopNotActive     = "campaign not active"
	StopOutsideWindow = "outside send window"
	StopRateLimited   = "rate limited"
	StopCompleted     = "all prospects emailed"
)

// RunResult summarizes one invocation of the send loop.
type RunResult struct {
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	StopReason string `json:"stop_reason"`
}

// Sender runs campaign send loops against the store and email transport.
type Sender struct {
	store        store.Store
	transport    ses.Client
	registry     *Registry
	personalizer *Personalizer
	now          func() time.Time
}

// NewSender creates a campaign sender.
func NewSender(s store.Store, transport ses.Client, registry *Registry) *Sender {
	return &Sender{
		store:        s,
		transport:    transport,
		registry:     registry,
		personalizer: NewPersonalizer(),
		now:          time.Now,
	}
}

// Run executes the send loop for one campaign until the prospect list is
// exhausted or a scheduling check stops it. Prospects already in the
// campaign's sent-set are skipped, so a stopped run picks up where it
// left off.
func (s *Sender) Run(ctx context.Context, campaignID string) (*RunResult, error) {
	c, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, eris.Wrap(err, "campaign: load campaign")
	}
	result := &RunResult{}
	if c.Status != model.CampaignStatusActive {
		result.StopReason = StopNotActive
		return result, nil
	}

	sentSet, err := s.store.SentProspectIDs(ctx, c.ID)
	if err != nil {
		return nil, eris.Wrap(err, "campaign: load sent-set")
	}

	limiter, err := s.registry.Account(c.Settings.AccountID, c.Settings.Timezone)
	if err != nil {
		return nil, err
	}

	tpl, ok := c.TemplateForSequence(1)
	if !ok {
		return nil, eris.Errorf("campaign: %s has no sequence 1 template", c.ID)
	}

	pace := rate.NewLimiter(rate.Inf, 1)
	if d := s.registry.cfg.MinDelay; d > 0 {
		pace = rate.NewLimiter(rate.Every(d), 1)
	}

	for _, prospectID := range c.ProspectIDs {
		if _, done := sentSet[prospectID]; done {
			continue
		}

		if stop := s.checkSchedule(ctx, c, limiter); stop != "" {
			result.StopReason = stop
			if err := s.store.UpdateCampaign(ctx, c); err != nil {
				return result, eris.Wrap(err, "campaign: update campaign")
			}
			return result, nil
		}

		status, err := s.sendOne(ctx, c, tpl, prospectID, pace)
		if err != nil {
			return result, err
		}
		switch status {
		case model.EmailStatusSent:
			result.Sent++
			limiter.RecordSend()
			sentSet[prospectID] = struct{}{}
		case model.EmailStatusFailed:
			result.Failed++
			sentSet[prospectID] = struct{}{}
		default:
			result.Skipped++
		}
	}

	if len(sentSet) >= len(c.ProspectIDs) {
		c.Status = model.CampaignStatusCompleted
		result.StopReason = StopCompleted
	}
	if err := s.store.UpdateCampaign(ctx, c); err != nil {
		return result, eris.Wrap(err, "campaign: update campaign")
	}
	return result, nil
}

// checkSchedule runs the pre-send checks. A non-empty return is the stop
// reason.
func (s *Sender) checkSchedule(ctx context.Context, c *model.Campaign, limiter *AccountLimiter) string {
	cur, err := s.store.GetCampaign(ctx, c.ID)
	if err != nil || cur.Status != model.CampaignStatusActive {
		return StopNotActive
	}
	if ok, reason := limiter.CanSend(c.Settings.DailySendLimit); !ok {
		zap.L().Info("campaign rate limited",
			zap.String("campaign_id", c.ID),
			zap.String("reason", reason))
		return StopRateLimited
	}
	if !s.inSendWindow(c.Settings) {
		return StopOutsideWindow
	}
	return ""
}

// inSendWindow reports whether the current local time falls inside the
// campaign's send window. Start is inclusive, end exclusive; a zero
// window means always.
func (s *Sender) inSendWindow(settings model.CampaignSettings) bool {
	loc := time.UTC
	if settings.Timezone != "" {
		if l, err := time.LoadLocation(settings.Timezone); err == nil {
			loc = l
		}
	}
	now := s.now().In(loc)

	if settings.SkipWeekends {
		if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}
	if settings.SendWindowStart == 0 && settings.SendWindowEnd == 0 {
		return true
	}
	hour := now.Hour()
	return hour >= settings.SendWindowStart && hour < settings.SendWindowEnd
}

// sendOne personalizes and dispatches one email. The pending SentEmail
// row is created only once the send slot is held, and always reaches a
// terminal status before the loop moves on, even when the context is
// cancelled. Returns an empty status when the prospect was skipped
// without a send attempt.
func (s *Sender) sendOne(ctx context.Context, c *model.Campaign, tpl model.EmailTemplate, prospectID string, pace *rate.Limiter) (model.EmailStatus, error) {
	prospect, err := s.store.GetProspect(ctx, prospectID)
	if err != nil {
		zap.L().Warn("prospect missing, skipping",
			zap.String("campaign_id", c.ID),
			zap.String("prospect_id", prospectID))
		return "", nil
	}

	to := recipientEmail(prospect)
	if to == "" {
		zap.L().Info("prospect has no email, skipping",
			zap.String("prospect_id", prospectID))
		return "", nil
	}

	subject, body, err := s.personalizer.Render(tpl, prospect)
	if err != nil {
		return "", err
	}

	// Wait out the inter-send delay before the pending row exists, so a
	// cancellation here leaves nothing behind for the sent-set to count.
	if err := pace.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "campaign: wait for send slot")
	}

	email := &model.SentEmail{
		CampaignID:     c.ID,
		ProspectID:     prospectID,
		SequenceNumber: tpl.Sequence,
		ToEmail:        to,
		Subject:        subject,
		Status:         model.EmailStatusPending,
	}
	if err := s.store.CreateSentEmail(ctx, email); err != nil {
		return "", eris.Wrap(err, "campaign: create sent email")
	}

	now := s.now().UTC()
	var res *ses.SendResult
	sendErr := ctx.Err()
	if sendErr == nil {
		res, sendErr = s.transport.Send(ctx, ses.Message{
			From:     c.Settings.FromAddress,
			To:       to,
			Subject:  subject,
			TextBody: body,
		})
	}
	if sendErr != nil {
		email.Status = model.EmailStatusFailed
		email.Error = sendErr.Error()
		c.Stats.EmailsFailed++
		zap.L().Warn("send failed",
			zap.String("campaign_id", c.ID),
			zap.String("prospect_id", prospectID),
			zap.Error(sendErr))
	} else {
		email.Status = model.EmailStatusSent
		email.SentAt = &now
		email.MessageID = res.MessageID
		c.Stats.EmailsSent++
	}
	// Finalize on a detached context so a cancelled run still moves the
	// row out of pending.
	if err := s.store.UpdateSentEmail(context.WithoutCancel(ctx), email); err != nil {
		return "", eris.Wrap(err, "campaign: finalize sent email")
	}

	if email.Status == model.EmailStatusSent {
		if err := s.store.UpdateProspectStatus(ctx, prospectID, model.ProspectStatusContacted); err != nil {
			zap.L().Warn("mark prospect contacted",
				zap.String("prospect_id", prospectID),
				zap.Error(err))
		}
	}
	return email.Status, nil
}

// recipientEmail picks the primary contact's address, falling back to any
// contact with a verified email. Guessed addresses are never sent to.
func recipientEmail(p *model.Prospect) string {
	for _, contact := range p.Contacts {
		if contact.IsPrimary && contact.Email != "" {
			return contact.Email
		}
	}
	for _, contact := range p.Contacts {
		if contact.Email != "" {
			return contact.Email
		}
	}
	return ""
}
