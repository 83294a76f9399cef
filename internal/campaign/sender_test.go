package campaign

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
	"github.com/sells-group/outreach-engine/pkg/ses"
)

// fakeTransport records outbound messages and fails addresses on demand.
type fakeTransport struct {
	sent     []ses.Message
	failAddr map[string]error
}

func (f *fakeTransport) Send(_ context.Context, msg ses.Message) (*ses.SendResult, error) {
	if err, ok := f.failAddr[msg.To]; ok {
		return nil, err
	}
	f.sent = append(f.sent, msg)
	return &ses.SendResult{MessageID: fmt.Sprintf("msg-%d", len(f.sent))}, nil
}

type senderFixture struct {
	sender    *Sender
	store     store.Store
	transport *fakeTransport
	clock     *fakeClock
	campaign  *model.Campaign
}

// newSenderFixture seeds an active campaign with n emailable prospects.
// The clock starts on a Monday inside the 9-17 send window.
func newSenderFixture(t *testing.T, n int) *senderFixture {
	t.Helper()

	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))

	prospects := make([]model.Prospect, n)
	ids := make([]string, n)
	for i := range prospects {
		id := fmt.Sprintf("p%d", i+1)
		ids[i] = id
		prospects[i] = model.Prospect{
			ID:          id,
			CompanyName: fmt.Sprintf("Company %d", i+1),
			Status:      model.ProspectStatusResearched,
			Contacts: []model.Contact{
				{Name: "Jane Smith", Email: fmt.Sprintf("jane%d@example.com", i+1), IsPrimary: true},
			},
		}
	}
	require.NoError(t, s.SaveProspects(ctx, prospects))

	campaign := &model.Campaign{
		ClientID:    "client-1",
		Name:        "spring outreach",
		Status:      model.CampaignStatusActive,
		ProspectIDs: ids,
		Templates: []model.EmailTemplate{
			{Sequence: 1, Subject: "Hi {{first_name}}", Body: "About {{company_name}}."},
		},
		Settings: model.CampaignSettings{
			DailySendLimit:  100,
			SendWindowStart: 9,
			SendWindowEnd:   17,
			Timezone:        "UTC",
			SkipWeekends:    true,
			FromAddress:     "sales@sells.example",
			AccountID:       "acct-1",
		},
	}
	require.NoError(t, s.CreateCampaign(ctx, campaign))

	clock := newFakeClock(time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)) // Monday
	registry := NewRegistry(LimiterConfig{DailyLimit: 200})
	registry.now = clock.Now

	transport := &fakeTransport{failAddr: map[string]error{}}
	sender := NewSender(s, transport, registry)
	sender.now = clock.Now

	return &senderFixture{
		sender:    sender,
		store:     s,
		transport: transport,
		clock:     clock,
		campaign:  campaign,
	}
}

func TestSender_SendsAllAndCompletes(t *testing.T) {
	t.Parallel()

	fx := newSenderFixture(t, 3)
	ctx := context.Background()

	res, err := fx.sender.Run(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)
	assert.Equal(t, StopCompleted, res.StopReason)
	assert.Len(t, fx.transport.sent, 3)
	assert.Equal(t, "Hi Jane", fx.transport.sent[0].Subject)
	assert.Equal(t, "About Company 1.", fx.transport.sent[0].TextBody)

	c, err := fx.store.GetCampaign(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusCompleted, c.Status)
	assert.Equal(t, 3, c.Stats.EmailsSent)

	p, err := fx.store.GetProspect(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.ProspectStatusContacted, p.Status)

	emails, err := fx.store.ListSentEmails(ctx, fx.campaign.ID)
	require.NoError(t, err)
	require.Len(t, emails, 3)
	for _, e := range emails {
		assert.Equal(t, model.EmailStatusSent, e.Status)
		assert.NotEmpty(t, e.MessageID)
	}
}

func TestSender_ResumesPastSentSet(t *testing.T) {
	t.Parallel()

	fx := newSenderFixture(t, 3)
	ctx := context.Background()

	require.NoError(t, fx.store.CreateSentEmail(ctx, &model.SentEmail{
		CampaignID: fx.campaign.ID,
		ProspectID: "p1",
		ToEmail:    "jane1@example.com",
		Status:     model.EmailStatusSent,
	}))

	res, err := fx.sender.Run(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent, "already-emailed prospect is skipped")

	emails, err := fx.store.ListSentEmails(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Len(t, emails, 3, "never more rows than prospects")
}

func TestSender_NeverExceedsDailyLimit(t *testing.T) {
	t.Parallel()

	fx := newSenderFixture(t, 5)
	ctx := context.Background()

	fx.campaign.Settings.DailySendLimit = 2
	require.NoError(t, fx.store.UpdateCampaign(ctx, fx.campaign))

	res, err := fx.sender.Run(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, StopRateLimited, res.StopReason)

	// Re-running the same day sends nothing more.
	res, err = fx.sender.Run(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sent)
	assert.Equal(t, StopRateLimited, res.StopReason)

	// The next day the loop resumes where it stopped.
	fx.clock.Advance(24 * time.Hour)
	res, err = fx.sender.Run(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)

	emails, err := fx.store.ListSentEmails(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Len(t, emails, 4)
}

func TestSender_StopsOutsideWindow(t *testing.T) {
	t.Parallel()

	fx := newSenderFixture(t, 2)
	fx.clock.Advance(9 * time.Hour) // 19:00, window is 9-17

	res, err := fx.sender.Run(context.Background(), fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sent)
	assert.Equal(t, StopOutsideWindow, res.StopReason)
	assert.Empty(t, fx.transport.sent)
}

func TestSender_SkipsWeekends(t *testing.T) {
	t.Parallel()

	fx := newSenderFixture(t, 2)
	fx.clock.Advance(5 * 24 * time.Hour) // Saturday 10:00

	res, err := fx.sender.Run(context.Background(), fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, StopOutsideWindow, res.StopReason)
	assert.Empty(t, fx.transport.sent)
}

func TestSender_InactiveCampaignStops(t *testing.T) {
	t.Parallel()

	fx := newSenderFixture(t, 2)
	ctx := context.Background()

	fx.campaign.Status = model.CampaignStatusPaused
	require.NoError(t, fx.store.UpdateCampaign(ctx, fx.campaign))

	res, err := fx.sender.Run(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, StopNotActive, res.StopReason)
	assert.Empty(t, fx.transport.sent)
}

func TestSender_FailedSendIsTerminalAndLoopContinues(t *testing.T) {
	t.Parallel()

	fx := newSenderFixture(t, 3)
	ctx := context.Background()
	fx.transport.failAddr["jane2@example.com"] = errors.New("mailbox unavailable")

	res, err := fx.sender.Run(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, StopCompleted, res.StopReason)

	emails, err := fx.store.ListSentEmails(ctx, fx.campaign.ID)
	require.NoError(t, err)
	require.Len(t, emails, 3)
	for _, e := range emails {
		assert.NotEqual(t, model.EmailStatusPending, e.Status, "no row left pending")
		if e.ProspectID == "p2" {
			assert.Equal(t, model.EmailStatusFailed, e.Status)
			assert.Equal(t, "mailbox unavailable", e.Error)
		}
	}

	c, err := fx.store.GetCampaign(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Stats.EmailsSent)
	assert.Equal(t, 1, c.Stats.EmailsFailed)
}

func TestSender_CancelledDelayLeavesNoPendingRow(t *testing.T) {
	t.Parallel()

	fx := newSenderFixture(t, 2)
	fx.sender.registry.cfg.MinDelay = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(100*time.Millisecond, cancel)
	defer timer.Stop()
	defer cancel()

	// The first send goes out on the limiter's burst; cancellation lands
	// while the loop waits out the delay before the second.
	_, err := fx.sender.Run(ctx, fx.campaign.ID)
	require.Error(t, err)
	assert.Len(t, fx.transport.sent, 1)

	emails, err := fx.store.ListSentEmails(context.Background(), fx.campaign.ID)
	require.NoError(t, err)
	require.Len(t, emails, 1, "aborted send leaves no row behind")
	assert.Equal(t, model.EmailStatusSent, emails[0].Status)

	// A fresh run still owes p2 its email and then completes.
	fx.sender.registry.cfg.MinDelay = 0
	res, err := fx.sender.Run(context.Background(), fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, StopCompleted, res.StopReason)
}

func TestSender_ProspectWithoutEmailSkipped(t *testing.T) {
	t.Parallel()

	fx := newSenderFixture(t, 2)
	ctx := context.Background()

	p, err := fx.store.GetProspect(ctx, "p1")
	require.NoError(t, err)
	p.Contacts = nil
	require.NoError(t, fx.store.UpdateProspect(ctx, p))

	res, err := fx.sender.Run(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Skipped)

	emails, err := fx.store.ListSentEmails(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Len(t, emails, 1, "skipped prospect gets no row")
}
