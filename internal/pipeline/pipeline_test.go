package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
	"github.com/sells-group/outreach-engine/pkg/google"
)

type stubSearcher struct {
	places []google.Place
	err    error
	calls  int
}

func (s *stubSearcher) Search(_ context.Context, _, _ []string, _ int) ([]google.Place, error) {
	s.calls++
	return s.places, s.err
}

type stubEnricher struct {
	calls int
}

func (s *stubEnricher) EnrichAll(_ context.Context, prospects []model.Prospect, onBatch func(int)) []model.Prospect {
	s.calls++
	out := make([]model.Prospect, len(prospects))
	copy(out, prospects)
	for i := range out {
		out[i].ResearchSummary = "a summary"
		out[i].Enrichment = model.EnrichmentSuccess
		out[i].Status = model.ProspectStatusResearched
	}
	if onBatch != nil {
		onBatch(len(out))
	}
	return out
}

type stubStage struct {
	contact model.Contact
}

func (s *stubStage) DiscoverAll(_ context.Context, prospects []model.Prospect, onBatch func(int)) []model.Prospect {
	out := make([]model.Prospect, len(prospects))
	copy(out, prospects)
	for i := range out {
		if out[i].Domain != "" {
			out[i].Contacts = []model.Contact{s.contact}
		}
	}
	if onBatch != nil {
		onBatch(len(out))
	}
	return out
}

// eventSink collects fire-and-forget progress events.
type eventSink struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (s *eventSink) record(ev model.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) count(phase string, status model.PhaseStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Phase == phase && ev.Status == status {
			n++
		}
	}
	return n
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testPlaces() []google.Place {
	return []google.Place{
		{
			ID:               "place-1",
			DisplayName:      google.DisplayName{Text: "Acme Roofing"},
			FormattedAddress: "100 Main St, Austin, TX 78701, USA",
			WebsiteURI:       "https://acme.com",
			BusinessStatus:   "OPERATIONAL",
		},
		{
			ID:               "place-2",
			DisplayName:      google.DisplayName{Text: "Budget Roofs"},
			FormattedAddress: "200 Oak Ave, Dallas, TX 75201, USA",
			BusinessStatus:   "OPERATIONAL",
		},
	}
}

func testProfile() model.ICP {
	return model.ICP{
		Industries: model.IndustryTargeting{
			PrimaryIndustries: []model.Industry{{Name: "Roofing"}},
		},
		DecisionMakers: model.DecisionMakerTargeting{
			PrimaryTitles: []string{"Owner"},
		},
	}
}

func TestCoordinator_FullRun(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	sink := &eventSink{}
	searcher := &stubSearcher{places: testPlaces()}
	enr := &stubEnricher{}
	stage := &stubStage{contact: model.Contact{
		Name: "Jane Smith", Title: "Owner", Email: "jane@acme.com", IsPrimary: true, IsDecisionMaker: true,
	}}
	coord := New(st, searcher, enr, stage, sink.record)

	req := model.JobRequest{
		ClientID:   "client-1",
		Locations:  []string{"Austin, TX"},
		Industries: []string{"Roofing"},
		Limit:      10,
	}
	res, err := coord.Run(context.Background(), req, testProfile(), 0.5)
	require.NoError(t, err)
	require.Len(t, res.Prospects, 2)
	assert.Equal(t, model.JobStatusCompleted, res.Job.Status)
	assert.Equal(t, 2, res.Job.Counters.PlacesFound)
	assert.Equal(t, 2, res.Job.Counters.Enriched)
	assert.Equal(t, 1, res.Job.Counters.ContactsFound)

	job, err := st.GetJob(context.Background(), res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.Counters.PlacesFound)

	saved, err := st.ListProspects(context.Background(), store.ProspectFilter{JobID: res.Job.ID})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	var withDomain, withoutDomain *model.Prospect
	for i := range saved {
		if saved[i].Domain == "acme.com" {
			withDomain = &saved[i]
		} else {
			withoutDomain = &saved[i]
		}
	}
	require.NotNil(t, withDomain)
	require.NotNil(t, withoutDomain)
	assert.Equal(t, 1.0, withDomain.ICPMatchScore)
	assert.NotEqual(t, model.ProspectStatusRejected, withDomain.Status)
	assert.Equal(t, model.ProspectStatusRejected, withoutDomain.Status, "no contacts and no domain fails validation")

	require.Eventually(t, func() bool {
		return sink.count(PhaseSearch, model.PhaseCompleted) == 1 &&
			sink.count(PhaseEnrich, model.PhaseCompleted) == 1 &&
			sink.count(PhaseContacts, model.PhaseCompleted) == 1 &&
			sink.count(PhaseValidate, model.PhaseCompleted) == 1 &&
			sink.count(PhasePersist, model.PhaseCompleted) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCoordinator_ZeroResultsShortCircuits(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	searcher := &stubSearcher{}
	enr := &stubEnricher{}
	coord := New(st, searcher, enr, &stubStage{}, nil)

	res, err := coord.Run(context.Background(), model.JobRequest{ClientID: "c"}, testProfile(), 0.5)
	require.NoError(t, err)
	assert.Empty(t, res.Prospects)
	assert.Equal(t, model.JobStatusCompleted, res.Job.Status)
	assert.Equal(t, 0, enr.calls, "later phases never run")
}

func TestCoordinator_SearchFailureFailsJob(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	searcher := &stubSearcher{err: errors.New("quota exhausted")}
	coord := New(st, searcher, &stubEnricher{}, &stubStage{}, nil)

	res, err := coord.Run(context.Background(), model.JobRequest{ClientID: "c"}, testProfile(), 0.5)
	require.Error(t, err)
	assert.Equal(t, model.JobStatusFailed, res.Job.Status)

	job, err := st.GetJob(context.Background(), res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "quota exhausted")
}

// failingStore makes SaveProspects fail from the nth call on.
type failingStore struct {
	store.Store
	calls     int
	failAfter int
}

func (f *failingStore) SaveProspects(ctx context.Context, prospects []model.Prospect) error {
	f.calls++
	if f.calls > f.failAfter {
		return errors.New("disk full")
	}
	return f.Store.SaveProspects(ctx, prospects)
}

func TestCoordinator_PartialResultsSurviveFailure(t *testing.T) {
	t.Parallel()

	st := &failingStore{Store: newTestStore(t), failAfter: 1}
	searcher := &stubSearcher{places: testPlaces()}
	coord := New(st, searcher, &stubEnricher{}, &stubStage{}, nil)

	res, err := coord.Run(context.Background(), model.JobRequest{ClientID: "c"}, testProfile(), 0.5)
	require.Error(t, err)
	assert.Equal(t, model.JobStatusFailed, res.Job.Status)

	saved, err := st.Store.ListProspects(context.Background(), store.ProspectFilter{JobID: res.Job.ID})
	require.NoError(t, err)
	assert.Len(t, saved, 2, "prospects persisted before the failure are kept")
}

func TestCoordinator_PanickingProgressCallback(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	searcher := &stubSearcher{places: testPlaces()}
	coord := New(st, searcher, &stubEnricher{}, &stubStage{}, func(model.ProgressEvent) {
		panic("subscriber bug")
	})

	res, err := coord.Run(context.Background(), model.JobRequest{ClientID: "c"}, testProfile(), 0.5)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, res.Job.Status)
}
