package store

import (
	"context"

	"github.com/sells-group/outreach-engine/internal/model"
)

// ProspectFilter specifies criteria for listing prospects.
type ProspectFilter struct {
	JobID    string               `json:"job_id,omitempty"`
	Status   model.ProspectStatus `json:"status,omitempty"`
	MinScore float64              `json:"min_score,omitempty"`
	Limit    int                  `json:"limit,omitempty"`
	Offset   int                  `json:"offset,omitempty"`
}

// Store defines the persistence interface for the outreach engine.
// Nested structures (contacts, settings, stats) round-trip as JSON blobs.
type Store interface {
	// Discovery jobs
	CreateJob(ctx context.Context, req model.JobRequest) (*model.DiscoveryJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus, errMsg string) error
	UpdateJobCounters(ctx context.Context, jobID string, counters model.JobCounters) error
	GetJob(ctx context.Context, jobID string) (*model.DiscoveryJob, error)

	// Prospects
	SaveProspects(ctx context.Context, prospects []model.Prospect) error
	UpdateProspect(ctx context.Context, p *model.Prospect) error
	UpdateProspectStatus(ctx context.Context, prospectID string, status model.ProspectStatus) error
	GetProspect(ctx context.Context, prospectID string) (*model.Prospect, error)
	ListProspects(ctx context.Context, filter ProspectFilter) ([]model.Prospect, error)

	// Campaigns
	CreateCampaign(ctx context.Context, c *model.Campaign) error
	UpdateCampaign(ctx context.Context, c *model.Campaign) error
	GetCampaign(ctx context.Context, campaignID string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, clientID string) ([]model.Campaign, error)

	// Sent emails
	CreateSentEmail(ctx context.Context, e *model.SentEmail) error
	UpdateSentEmail(ctx context.Context, e *model.SentEmail) error
	GetSentEmailByMessageID(ctx context.Context, messageID string) (*model.SentEmail, error)
	ListSentEmails(ctx context.Context, campaignID string) ([]model.SentEmail, error)
	ListSentEmailsForProspect(ctx context.Context, campaignID, prospectID string) ([]model.SentEmail, error)
	SentProspectIDs(ctx context.Context, campaignID string) (map[string]struct{}, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
