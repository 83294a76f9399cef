package contacts

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-engine/internal/resilience"
	"github.com/sells-group/outreach-engine/pkg/anthropic"
	"github.com/sells-group/outreach-engine/pkg/firecrawl"
)

type pageScraper struct {
	pages map[string]string
	errs  map[string]error
}

func (s *pageScraper) Scrape(_ context.Context, req firecrawl.ScrapeRequest) (*firecrawl.ScrapeResponse, error) {
	if err, ok := s.errs[req.URL]; ok {
		return nil, err
	}
	return &firecrawl.ScrapeResponse{
		Success: true,
		Data:    firecrawl.PageData{URL: req.URL, Markdown: s.pages[req.URL]},
	}, nil
}

func (s *pageScraper) Map(_ context.Context, _ firecrawl.MapRequest) (*firecrawl.MapResponse, error) {
	return &firecrawl.MapResponse{Success: true}, nil
}

// flakyAI fails with a transient error until failures is exhausted.
type flakyAI struct {
	failures int32
	reply    string
}

func (f *flakyAI) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return nil, resilience.NewTransientError(errors.New("connection reset by peer"), 0)
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.reply}},
	}, nil
}

func fastExtractor(scraper firecrawl.Client, ai anthropic.Client) *Extractor {
	e := NewExtractor(scraper, ai, "m", 3)
	e.retry.InitialBackoff = 1
	return e
}

func TestExtractFromPagesParsesContacts(t *testing.T) {
	t.Parallel()

	scraper := &pageScraper{pages: map[string]string{
		"https://acme.com/team": "Jane Smith, CEO. Bob Jones, CFO.",
	}}
	ai := &stubAI{replies: []string{
		`[{"name":"Jane Smith","title":"CEO","email":"jane@acme.com"},{"name":"Bob Jones","title":"CFO"}]`,
	}}
	e := fastExtractor(scraper, ai)

	got := e.ExtractFromPages(context.Background(), "Acme", []string{"https://acme.com/team"})
	require.Len(t, got, 2)
	assert.Equal(t, "Jane Smith", got[0].Name)
	assert.Equal(t, "jane@acme.com", got[0].Email)
}

func TestExtractFromPagesSkipsFailedPages(t *testing.T) {
	t.Parallel()

	scraper := &pageScraper{
		pages: map[string]string{"https://acme.com/team": "Jane Smith, CEO."},
		errs:  map[string]error{"https://acme.com/about": errors.New("404")},
	}
	ai := &stubAI{replies: []string{`[{"name":"Jane Smith","title":"CEO"}]`}}
	e := fastExtractor(scraper, ai)

	got := e.ExtractFromPages(context.Background(), "Acme",
		[]string{"https://acme.com/about", "https://acme.com/team"})
	require.Len(t, got, 1)
	assert.Equal(t, "Jane Smith", got[0].Name)
}

func TestExtractRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	scraper := &pageScraper{pages: map[string]string{
		"https://acme.com/team": "people",
	}}
	ai := &flakyAI{failures: 2, reply: `[{"name":"Jane Smith"}]`}
	e := fastExtractor(scraper, ai)

	got := e.ExtractFromPages(context.Background(), "Acme", []string{"https://acme.com/team"})
	require.Len(t, got, 1)
}

func TestExtractGivesUpAfterRetriesExhausted(t *testing.T) {
	t.Parallel()

	scraper := &pageScraper{pages: map[string]string{
		"https://acme.com/team": "people",
	}}
	ai := &flakyAI{failures: 10, reply: `[]`}
	e := fastExtractor(scraper, ai)

	got := e.ExtractFromPages(context.Background(), "Acme", []string{"https://acme.com/team"})
	assert.Empty(t, got)
}

func TestExtractDropsNamelessEntries(t *testing.T) {
	t.Parallel()

	scraper := &pageScraper{pages: map[string]string{
		"https://acme.com/team": "people",
	}}
	ai := &stubAI{replies: []string{`[{"name":"","title":"CEO"},{"name":"Jane"}]`}}
	e := fastExtractor(scraper, ai)

	got := e.ExtractFromPages(context.Background(), "Acme", []string{"https://acme.com/team"})
	require.Len(t, got, 1)
	assert.Equal(t, "Jane", got[0].Name)
}

func TestExtractAccumulatesTokenUsage(t *testing.T) {
	t.Parallel()

	scraper := &pageScraper{pages: map[string]string{
		"https://acme.com/team":  "people",
		"https://acme.com/about": "people",
	}}
	ai := &stubAI{replies: []string{`[]`}}
	e := fastExtractor(scraper, ai)

	e.ExtractFromPages(context.Background(), "Acme",
		[]string{"https://acme.com/team", "https://acme.com/about"})

	usage := e.Usage()
	assert.Equal(t, int64(200), usage.InputTokens)
	assert.Equal(t, int64(40), usage.OutputTokens)
}

func TestExtractFromSummary(t *testing.T) {
	t.Parallel()

	ai := &stubAI{replies: []string{`[{"name":"Jane Smith","title":"Founder"}]`}}
	e := fastExtractor(&pageScraper{}, ai)

	got := e.ExtractFromSummary(context.Background(), "Acme", "Founded by Jane Smith.")
	require.Len(t, got, 1)
	assert.Equal(t, "Founder", got[0].Title)

	assert.Nil(t, e.ExtractFromSummary(context.Background(), "Acme", ""))
}
