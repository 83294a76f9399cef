package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
)

type eventFixture struct {
	handler  *Handler
	store    store.Store
	campaign *model.Campaign
	email    *model.SentEmail
}

func newEventFixture(t *testing.T) *eventFixture {
	t.Helper()

	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	ctx := context.Background()
	prospect := model.Prospect{
		ID:          "p1",
		CompanyName: "Acme Roofing",
		Status:      model.ProspectStatusContacted,
	}
	require.NoError(t, s.SaveProspects(ctx, []model.Prospect{prospect}))

	campaign := &model.Campaign{
		ClientID:    "client-1",
		Name:        "Q3 roofing",
		Status:      model.CampaignStatusActive,
		ProspectIDs: []string{"p1", "p2"},
		Templates:   []model.EmailTemplate{{Sequence: 1, Subject: "hi", Body: "hello"}},
	}
	require.NoError(t, s.CreateCampaign(ctx, campaign))

	sent := time.Now().UTC().Add(-time.Hour)
	email := &model.SentEmail{
		CampaignID:     campaign.ID,
		ProspectID:     "p1",
		SequenceNumber: 1,
		ToEmail:        "jane@acme.com",
		Status:         model.EmailStatusSent,
		MessageID:      "msg-1",
		SentAt:         &sent,
	}
	require.NoError(t, s.CreateSentEmail(ctx, email))

	return &eventFixture{
		handler:  NewHandler(s),
		store:    s,
		campaign: campaign,
		email:    email,
	}
}

func TestHandler_OpenEvent(t *testing.T) {
	t.Parallel()

	fx := newEventFixture(t)
	ctx := context.Background()

	res, err := fx.handler.HandleEvent(ctx, Event{Type: EventOpen, MessageID: "msg-1", Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	assert.Equal(t, model.EmailStatusOpened, res.Email.Status)
	assert.Equal(t, 1, res.Email.OpenCount)
	assert.NotNil(t, res.Email.OpenedAt)
	assert.Equal(t, 20, res.Engagement.Score, "open plus recency")
	assert.Equal(t, LevelCold, res.Engagement.Level)
	assert.Equal(t, 20, res.ScoreDelta)

	c, err := fx.store.GetCampaign(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Stats.EmailsOpened)
	assert.Equal(t, 1, c.Stats.UniqueOpens)
}

func TestHandler_RepeatOpenCountsOnce(t *testing.T) {
	t.Parallel()

	fx := newEventFixture(t)
	ctx := context.Background()

	_, err := fx.handler.HandleEvent(ctx, Event{Type: EventOpen, MessageID: "msg-1"})
	require.NoError(t, err)
	res, err := fx.handler.HandleEvent(ctx, Event{Type: EventOpen, MessageID: "msg-1"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Email.OpenCount)

	c, err := fx.store.GetCampaign(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Stats.EmailsOpened)
	assert.Equal(t, 1, c.Stats.UniqueOpens)
}

func TestHandler_ReplyEvent(t *testing.T) {
	t.Parallel()

	fx := newEventFixture(t)
	ctx := context.Background()

	res, err := fx.handler.HandleEvent(ctx, Event{
		Type:      EventReply,
		MessageID: "msg-1",
		ReplyBody: "Sounds good, let's talk next week.",
	})
	require.NoError(t, err)

	assert.Equal(t, model.EmailStatusReplied, res.Email.Status)
	assert.Equal(t, SentimentPositive, res.Sentiment)
	assert.Equal(t, LevelHot, res.Engagement.Level)

	p, err := fx.store.GetProspect(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.ProspectStatusResponded, p.Status)
}

func TestHandler_HardBounceRemovesProspect(t *testing.T) {
	t.Parallel()

	fx := newEventFixture(t)
	ctx := context.Background()

	res, err := fx.handler.HandleEvent(ctx, Event{
		Type:       EventBounce,
		MessageID:  "msg-1",
		BounceType: "hard",
		Reason:     "550 No such user",
	})
	require.NoError(t, err)

	require.NotNil(t, res.Bounce)
	assert.Equal(t, CategoryInvalidEmail, res.Bounce.Category)
	assert.Equal(t, model.EmailStatusBounced, res.Email.Status)
	assert.Equal(t, "550 No such user", res.Email.Error)

	p, err := fx.store.GetProspect(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.ProspectStatusBounced, p.Status)

	c, err := fx.store.GetCampaign(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, c.ProspectIDs)
	assert.Equal(t, 1, c.Stats.EmailsBounced)
}

func TestHandler_SoftBounceKeepsProspect(t *testing.T) {
	t.Parallel()

	fx := newEventFixture(t)
	ctx := context.Background()

	res, err := fx.handler.HandleEvent(ctx, Event{
		Type:       EventBounce,
		MessageID:  "msg-1",
		BounceType: "soft",
		Reason:     "452 mailbox full",
	})
	require.NoError(t, err)

	require.NotNil(t, res.Bounce)
	assert.True(t, res.Bounce.ShouldRetry)
	assert.Equal(t, 24*time.Hour, res.Bounce.RetryDelay)

	p, err := fx.store.GetProspect(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.ProspectStatusContacted, p.Status)

	c, err := fx.store.GetCampaign(ctx, fx.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, c.ProspectIDs)
}

func TestHandler_LateDeliveredKeepsStatus(t *testing.T) {
	t.Parallel()

	fx := newEventFixture(t)
	ctx := context.Background()

	_, err := fx.handler.HandleEvent(ctx, Event{Type: EventOpen, MessageID: "msg-1"})
	require.NoError(t, err)
	res, err := fx.handler.HandleEvent(ctx, Event{Type: EventDelivered, MessageID: "msg-1"})
	require.NoError(t, err)

	assert.Equal(t, model.EmailStatusOpened, res.Email.Status)
	assert.NotNil(t, res.Email.DeliveredAt)
}

func TestHandler_UnknownMessageID(t *testing.T) {
	t.Parallel()

	fx := newEventFixture(t)

	_, err := fx.handler.HandleEvent(context.Background(), Event{Type: EventOpen, MessageID: "missing"})
	assert.Error(t, err)
}

func TestHandler_UnknownEventType(t *testing.T) {
	t.Parallel()

	fx := newEventFixture(t)

	_, err := fx.handler.HandleEvent(context.Background(), Event{Type: "forwarded", MessageID: "msg-1"})
	assert.Error(t, err)
}
