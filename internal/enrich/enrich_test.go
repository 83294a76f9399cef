package enrich

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/pkg/firecrawl"
	"github.com/sells-group/outreach-engine/pkg/perplexity"
)

type stubScraper struct {
	mu       sync.Mutex
	inflight int32
	peak     int32
	markdown string
	err      error
}

func (s *stubScraper) Scrape(_ context.Context, req firecrawl.ScrapeRequest) (*firecrawl.ScrapeResponse, error) {
	cur := atomic.AddInt32(&s.inflight, 1)
	defer atomic.AddInt32(&s.inflight, -1)
	s.mu.Lock()
	if cur > s.peak {
		s.peak = cur
	}
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return &firecrawl.ScrapeResponse{
		Success: true,
		Data:    firecrawl.PageData{URL: req.URL, Markdown: s.markdown},
	}, nil
}

func (s *stubScraper) Map(_ context.Context, _ firecrawl.MapRequest) (*firecrawl.MapResponse, error) {
	return &firecrawl.MapResponse{Success: true}, nil
}

type stubResearcher struct {
	summary string
	err     error
}

func (s *stubResearcher) ChatCompletion(_ context.Context, _ perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{
			{Message: perplexity.Message{Role: "assistant", Content: s.summary}},
		},
	}, nil
}

func prospects(n int) []model.Prospect {
	out := make([]model.Prospect, n)
	for i := range out {
		out[i] = model.Prospect{
			ID:          string(rune('a' + i)),
			CompanyName: "Co",
			Website:     "https://example.com",
			Domain:      "example.com",
		}
	}
	return out
}

func TestEnrichOneBothSourcesSucceed(t *testing.T) {
	t.Parallel()

	e := NewEnricher(
		&stubScraper{markdown: "## About us"},
		&stubResearcher{summary: "A roofing company."},
		Options{},
	)

	out := e.EnrichAll(context.Background(), prospects(1), nil)
	require.Len(t, out, 1)
	assert.Equal(t, model.EnrichmentSuccess, out[0].Enrichment)
	assert.Equal(t, "## About us", out[0].WebsiteContent)
	assert.Equal(t, "A roofing company.", out[0].ResearchSummary)
	assert.Equal(t, model.ProspectStatusResearched, out[0].Status)
}

func TestEnrichOnePartialWhenOneSourceFails(t *testing.T) {
	t.Parallel()

	e := NewEnricher(
		&stubScraper{err: errors.New("blocked")},
		&stubResearcher{summary: "A roofing company."},
		Options{},
	)

	out := e.EnrichAll(context.Background(), prospects(1), nil)
	assert.Equal(t, model.EnrichmentPartial, out[0].Enrichment)
	assert.Empty(t, out[0].WebsiteContent)
	assert.NotEmpty(t, out[0].ResearchSummary)
}

func TestEnrichOneFailedWhenNoSourceAvailable(t *testing.T) {
	t.Parallel()

	e := NewEnricher(nil, nil, Options{})

	out := e.EnrichAll(context.Background(), prospects(1), nil)
	assert.Equal(t, model.EnrichmentFailed, out[0].Enrichment)
	assert.Empty(t, out[0].Status)
}

func TestEnrichAllFailureDoesNotBlockBatch(t *testing.T) {
	t.Parallel()

	e := NewEnricher(
		&stubScraper{err: errors.New("boom")},
		&stubResearcher{summary: "ok"},
		Options{BatchSize: 3},
	)

	out := e.EnrichAll(context.Background(), prospects(6), nil)
	require.Len(t, out, 6)
	for _, p := range out {
		assert.Equal(t, model.EnrichmentPartial, p.Enrichment)
	}
}

func TestEnrichAllBoundsConcurrency(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{markdown: "x"}
	e := NewEnricher(scraper, &stubResearcher{summary: "x"}, Options{
		BatchSize:   10,
		Concurrency: 2,
	})

	e.EnrichAll(context.Background(), prospects(10), nil)
	assert.LessOrEqual(t, scraper.peak, int32(2))
}

func TestEnrichAllReportsBatchProgress(t *testing.T) {
	t.Parallel()

	e := NewEnricher(&stubScraper{markdown: "x"}, &stubResearcher{summary: "x"}, Options{
		BatchSize: 2,
	})

	var reported []int
	e.EnrichAll(context.Background(), prospects(5), func(done int) {
		reported = append(reported, done)
	})
	assert.Equal(t, []int{2, 4, 5}, reported)
}
