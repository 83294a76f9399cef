package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/icp"
	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/places"
	"github.com/sells-group/outreach-engine/internal/store"
	"github.com/sells-group/outreach-engine/pkg/google"
)

// Phase names reported in progress events.
const (
	PhaseSearch   = "search"
	PhaseEnrich   = "enrich"
	PhaseContacts = "contacts"
	PhaseValidate = "validate"
	PhasePersist  = "persist"
)

type placeSearcher interface {
	Search(ctx context.Context, locations, industries []string, limit int) ([]google.Place, error)
}

type enricher interface {
	EnrichAll(ctx context.Context, prospects []model.Prospect, onBatch func(done int)) []model.Prospect
}

type contactStage interface {
	DiscoverAll(ctx context.Context, prospects []model.Prospect, onBatch func(done int)) []model.Prospect
}

// ProgressFunc receives pipeline progress events. Delivery is best-effort;
// a slow or panicking callback never affects the job.
type ProgressFunc func(model.ProgressEvent)

// Coordinator runs discovery jobs phase by phase: search, enrich,
// contact discovery, validation, persist. Phases are strictly sequential;
// parallelism lives inside the enrichment and contact stages.
type Coordinator struct {
	store      store.Store
	searcher   placeSearcher
	enricher   enricher
	contacts   contactStage
	onProgress ProgressFunc
}

// New creates a pipeline coordinator.
func New(s store.Store, searcher placeSearcher, e enricher, c contactStage, onProgress ProgressFunc) *Coordinator {
	return &Coordinator{
		store:      s,
		searcher:   searcher,
		enricher:   e,
		contacts:   c,
		onProgress: onProgress,
	}
}

// Result is the outcome of one discovery job.
type Result struct {
	Job       *model.DiscoveryJob `json:"job"`
	Prospects []model.Prospect    `json:"prospects"`
}

// Run executes a discovery job to completion. A zero-result search
// completes the job with an empty prospect set. A fatal phase error marks
// the job failed; prospects persisted before the failure are kept.
func (c *Coordinator) Run(ctx context.Context, req model.JobRequest, profile model.ICP, threshold float64) (*Result, error) {
	job, err := c.store.CreateJob(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create job")
	}
	if err := c.store.UpdateJobStatus(ctx, job.ID, model.JobStatusRunning, ""); err != nil {
		return nil, eris.Wrap(err, "pipeline: start job")
	}
	job.Status = model.JobStatusRunning
	zap.L().Info("discovery job started",
		zap.String("job_id", job.ID),
		zap.String("client_id", req.ClientID),
		zap.Strings("locations", req.Locations),
		zap.Strings("industries", req.Industries))

	prospects, err := c.searchPhase(ctx, job, req)
	if err != nil {
		return c.fail(ctx, job, PhaseSearch, nil, err)
	}
	if len(prospects) == 0 {
		return c.complete(ctx, job, nil, "no businesses found")
	}

	prospects = c.enrichPhase(ctx, job, prospects)
	if err := c.persist(ctx, job, prospects); err != nil {
		return c.fail(ctx, job, PhaseEnrich, prospects, err)
	}

	prospects = c.contactsPhase(ctx, job, prospects)
	if err := c.persist(ctx, job, prospects); err != nil {
		return c.fail(ctx, job, PhaseContacts, prospects, err)
	}

	prospects = c.validatePhase(job, prospects, profile, threshold)

	c.emit(job, PhasePersist, model.PhaseStarted, "")
	if err := c.persist(ctx, job, prospects); err != nil {
		return c.fail(ctx, job, PhasePersist, prospects, err)
	}
	c.emit(job, PhasePersist, model.PhaseCompleted, "")

	return c.complete(ctx, job, prospects, fmt.Sprintf("%d prospects discovered", len(prospects)))
}

// searchPhase runs directory search and normalization as one reported
// phase. Returning an empty slice is not an error.
func (c *Coordinator) searchPhase(ctx context.Context, job *model.DiscoveryJob, req model.JobRequest) ([]model.Prospect, error) {
	c.emit(job, PhaseSearch, model.PhaseStarted, "")

	raw, err := c.searcher.Search(ctx, req.Locations, req.Industries, req.Limit)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: search places")
	}

	fallbackIndustry := ""
	if len(req.Industries) == 1 {
		fallbackIndustry = req.Industries[0]
	}
	prospects := places.Normalize(raw, job.ID, fallbackIndustry)

	job.Counters.PlacesFound = len(prospects)
	c.updateCounters(ctx, job)
	c.emit(job, PhaseSearch, model.PhaseCompleted, fmt.Sprintf("%d unique businesses", len(prospects)))
	return prospects, nil
}

func (c *Coordinator) enrichPhase(ctx context.Context, job *model.DiscoveryJob, prospects []model.Prospect) []model.Prospect {
	c.emit(job, PhaseEnrich, model.PhaseStarted, "")

	out := c.enricher.EnrichAll(ctx, prospects, func(done int) {
		c.emit(job, PhaseEnrich, model.PhaseInProgress, fmt.Sprintf("%d/%d enriched", done, len(prospects)))
	})

	enriched := 0
	for _, p := range out {
		if p.Enrichment != model.EnrichmentFailed {
			enriched++
		}
	}
	job.Counters.Enriched = enriched
	c.updateCounters(ctx, job)
	c.emit(job, PhaseEnrich, model.PhaseCompleted, fmt.Sprintf("%d enriched", enriched))
	return out
}

func (c *Coordinator) contactsPhase(ctx context.Context, job *model.DiscoveryJob, prospects []model.Prospect) []model.Prospect {
	c.emit(job, PhaseContacts, model.PhaseStarted, "")

	out := c.contacts.DiscoverAll(ctx, prospects, func(done int) {
		c.emit(job, PhaseContacts, model.PhaseInProgress, fmt.Sprintf("%d/%d processed", done, len(prospects)))
	})

	found := 0
	for _, p := range out {
		found += len(p.Contacts)
	}
	job.Counters.ContactsFound = found
	c.updateCounters(ctx, job)
	c.emit(job, PhaseContacts, model.PhaseCompleted, fmt.Sprintf("%d contacts found", found))
	return out
}

// validatePhase scores every prospect against the target profile.
// Prospects below the bar are kept but marked rejected.
func (c *Coordinator) validatePhase(job *model.DiscoveryJob, prospects []model.Prospect, profile model.ICP, threshold float64) []model.Prospect {
	c.emit(job, PhaseValidate, model.PhaseStarted, "")

	scorer := icp.NewScorer(profile, threshold)
	valid := 0
	for i := range prospects {
		res := scorer.Score(prospects[i])
		prospects[i].ICPMatchScore = res.Score
		prospects[i].ValidationIssues = res.Issues
		if res.Valid {
			valid++
		} else {
			prospects[i].Status = model.ProspectStatusRejected
		}
	}

	c.emit(job, PhaseValidate, model.PhaseCompleted, fmt.Sprintf("%d of %d prospects match the profile", valid, len(prospects)))
	return prospects
}

func (c *Coordinator) persist(ctx context.Context, job *model.DiscoveryJob, prospects []model.Prospect) error {
	if len(prospects) == 0 {
		return nil
	}
	if err := c.store.SaveProspects(ctx, prospects); err != nil {
		return eris.Wrap(err, "pipeline: save prospects")
	}
	return nil
}

func (c *Coordinator) complete(ctx context.Context, job *model.DiscoveryJob, prospects []model.Prospect, msg string) (*Result, error) {
	if err := c.store.UpdateJobStatus(ctx, job.ID, model.JobStatusCompleted, ""); err != nil {
		return nil, eris.Wrap(err, "pipeline: complete job")
	}
	job.Status = model.JobStatusCompleted
	zap.L().Info("discovery job completed",
		zap.String("job_id", job.ID),
		zap.Int("prospects", len(prospects)),
		zap.String("message", msg))
	return &Result{Job: job, Prospects: prospects}, nil
}

// fail marks the job failed. Prospects produced before the failure were
// already persisted and stay valid, so they are returned alongside the
// error.
func (c *Coordinator) fail(ctx context.Context, job *model.DiscoveryJob, phase string, prospects []model.Prospect, cause error) (*Result, error) {
	c.emit(job, phase, model.PhaseFailed, cause.Error())
	if err := c.store.UpdateJobStatus(ctx, job.ID, model.JobStatusFailed, cause.Error()); err != nil {
		zap.L().Error("mark job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	job.Status = model.JobStatusFailed
	job.Error = cause.Error()
	return &Result{Job: job, Prospects: prospects}, cause
}

func (c *Coordinator) updateCounters(ctx context.Context, job *model.DiscoveryJob) {
	if err := c.store.UpdateJobCounters(ctx, job.ID, job.Counters); err != nil {
		zap.L().Warn("update job counters", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// emit delivers a progress event without ever blocking the phase.
func (c *Coordinator) emit(job *model.DiscoveryJob, phase string, status model.PhaseStatus, msg string) {
	if c.onProgress == nil {
		return
	}
	ev := model.ProgressEvent{
		JobID:    job.ID,
		Phase:    phase,
		Status:   status,
		Message:  msg,
		Counters: job.Counters,
		At:       time.Now().UTC(),
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				zap.L().Warn("progress callback panicked", zap.Any("panic", r))
			}
		}()
		c.onProgress(ev)
	}()
}
