package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/resilience"
	"github.com/sells-group/outreach-engine/pkg/firecrawl"
	"github.com/sells-group/outreach-engine/pkg/perplexity"
)

// Options tunes batching and outbound call limits for the enrichment stage.
type Options struct {
	BatchSize       int
	Concurrency     int
	FetchTimeout    time.Duration
	ResearchTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 5
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 3
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 30 * time.Second
	}
	if o.ResearchTimeout <= 0 {
		o.ResearchTimeout = 60 * time.Second
	}
	return o
}

// Enricher fills in website content and company research for prospects.
// Either client may be nil when its credential is not configured; that
// source is then skipped rather than failing the stage.
type Enricher struct {
	scraper    firecrawl.Client
	researcher perplexity.Client
	opts       Options
	retry      resilience.RetryConfig
}

// NewEnricher creates an Enricher. Nil clients disable their source.
func NewEnricher(scraper firecrawl.Client, researcher perplexity.Client, opts Options) *Enricher {
	return &Enricher{
		scraper:    scraper,
		researcher: researcher,
		opts:       opts.withDefaults(),
		retry:      resilience.DefaultRetryConfig(),
	}
}

// EnrichAll processes prospects in fixed-size batches with a bounded
// number of in-flight prospects per batch. Failures are per prospect;
// unenriched prospects pass through unchanged. onBatch, if set, is
// called after each batch with the running completed count.
func (e *Enricher) EnrichAll(ctx context.Context, prospects []model.Prospect, onBatch func(done int)) []model.Prospect {
	out := make([]model.Prospect, len(prospects))
	copy(out, prospects)

	sem := semaphore.NewWeighted(int64(e.opts.Concurrency))

	for start := 0; start < len(out); start += e.opts.BatchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + e.opts.BatchSize
		if end > len(out) {
			end = len(out)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer sem.Release(1)
				out[i] = e.enrichOne(ctx, out[i])
			}(i)
		}
		wg.Wait()

		if onBatch != nil {
			onBatch(end)
		}
	}

	return out
}

// enrichOne runs the two research sources concurrently and merges their
// results into the prospect.
func (e *Enricher) enrichOne(ctx context.Context, p model.Prospect) model.Prospect {
	var (
		wg       sync.WaitGroup
		content  string
		summary  string
		fetchErr error
		resErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		content, fetchErr = e.fetchContent(ctx, p)
	}()
	go func() {
		defer wg.Done()
		summary, resErr = e.researchCompany(ctx, p)
	}()
	wg.Wait()

	if content != "" {
		p.WebsiteContent = content
	}
	if summary != "" {
		p.ResearchSummary = summary
	}

	fetchOK := fetchErr == nil && content != ""
	resOK := resErr == nil && summary != ""
	switch {
	case fetchOK && resOK:
		p.Enrichment = model.EnrichmentSuccess
	case fetchOK || resOK:
		p.Enrichment = model.EnrichmentPartial
	default:
		p.Enrichment = model.EnrichmentFailed
	}
	if p.Enrichment != model.EnrichmentFailed {
		p.Status = model.ProspectStatusResearched
	}
	p.UpdatedAt = time.Now().UTC()

	if fetchErr != nil {
		zap.L().Debug("enrich: content fetch failed",
			zap.String("company", p.CompanyName), zap.Error(fetchErr))
	}
	if resErr != nil {
		zap.L().Debug("enrich: company research failed",
			zap.String("company", p.CompanyName), zap.Error(resErr))
	}

	return p
}

func (e *Enricher) fetchContent(ctx context.Context, p model.Prospect) (string, error) {
	if e.scraper == nil || p.Website == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
	defer cancel()

	cfg := e.retry
	cfg.OnRetry = resilience.RetryLogger("firecrawl", "scrape")

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*firecrawl.ScrapeResponse, error) {
		return e.scraper.Scrape(ctx, firecrawl.ScrapeRequest{
			URL:             p.Website,
			Formats:         []string{"markdown"},
			OnlyMainContent: true,
		})
	})
	if err != nil {
		return "", err
	}
	return resp.Data.Markdown, nil
}

func (e *Enricher) researchCompany(ctx context.Context, p model.Prospect) (string, error) {
	if e.researcher == nil {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.ResearchTimeout)
	defer cancel()

	prompt := researchPrompt(p)
	cfg := e.retry
	cfg.OnRetry = resilience.RetryLogger("perplexity", "research")

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		return e.researcher.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
			Messages: []perplexity.Message{
				{Role: "user", Content: prompt},
			},
		})
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func researchPrompt(p model.Prospect) string {
	loc := p.Location.City
	if p.Location.State != "" {
		loc = fmt.Sprintf("%s, %s", loc, p.Location.State)
	}
	return fmt.Sprintf(
		"Summarize the company %q (%s, located in %s): what they do, approximate size, "+
			"key services, leadership team, and any recent news. Be factual and concise.",
		p.CompanyName, p.Domain, loc,
	)
}
