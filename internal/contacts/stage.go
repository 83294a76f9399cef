package contacts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/pkg/anthropic"
	"github.com/sells-group/outreach-engine/pkg/firecrawl"
)

// supplementThreshold triggers extraction from the research summary when
// the pages produced fewer contacts than this.
const supplementThreshold = 3

// Options tunes the contact-discovery stage.
type Options struct {
	MaxPages       int
	MaxSiteURLs    int
	ExtractRetries int
	BatchSize      int
	Concurrency    int
}

func (o Options) withDefaults() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = 8
	}
	if o.MaxSiteURLs <= 0 {
		o.MaxSiteURLs = 100
	}
	if o.ExtractRetries <= 0 {
		o.ExtractRetries = 3
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 5
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 3
	}
	return o
}

// Stage runs the full contact-discovery flow per prospect: page
// discovery, page selection, extraction, validation, scoring.
type Stage struct {
	discoverer *Discoverer
	selector   *Selector
	extractor  *Extractor
	validator  *Validator
	opts       Options
}

// NewStage wires the stage from its capability clients. Nil clients
// disable the tiers and passes that need them.
func NewStage(scraper firecrawl.Client, ai anthropic.Client, aiModel string, opts Options) *Stage {
	opts = opts.withDefaults()
	return &Stage{
		discoverer: NewDiscoverer(NewSitemapFetcher(), scraper, opts.MaxSiteURLs),
		selector:   NewSelector(ai, aiModel, opts.MaxPages),
		extractor:  NewExtractor(scraper, ai, aiModel, opts.ExtractRetries),
		validator:  NewValidator(ai, aiModel),
		opts:       opts,
	}
}

// DiscoverAll processes prospects in fixed-size batches with a bounded
// number in flight, mirroring the enrichment stage. Prospects without a
// domain pass through unchanged. onBatch, if set, receives the running
// completed count.
func (s *Stage) DiscoverAll(ctx context.Context, prospects []model.Prospect, onBatch func(done int)) []model.Prospect {
	out := make([]model.Prospect, len(prospects))
	copy(out, prospects)

	sem := semaphore.NewWeighted(int64(s.opts.Concurrency))

	for start := 0; start < len(out); start += s.opts.BatchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + s.opts.BatchSize
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
				out[i] = s.discoverOne(ctx, out[i])
			}(i)
		}
		wg.Wait()

		if onBatch != nil {
			onBatch(end)
		}
	}

	usage := s.extractor.Usage()
	zap.L().Info("contact discovery finished",
		zap.Int("prospects", len(out)),
		zap.Int64("input_tokens", usage.InputTokens),
		zap.Int64("output_tokens", usage.OutputTokens))
	return out
}

func (s *Stage) discoverOne(ctx context.Context, p model.Prospect) model.Prospect {
	if p.Domain == "" {
		return p
	}

	urls := s.discoverer.DiscoverPages(ctx, p.Domain)
	sel := s.selector.Select(ctx, urls)
	if sel.Degraded {
		zap.L().Debug("contacts: heuristic page selection used",
			zap.String("domain", p.Domain))
	}

	found := s.extractor.ExtractFromPages(ctx, p.CompanyName, sel.Pages)
	if len(found) < supplementThreshold && p.ResearchSummary != "" {
		found = append(found, s.extractor.ExtractFromSummary(ctx, p.CompanyName, p.ResearchSummary)...)
	}

	validated := s.validator.Validate(ctx, p.CompanyName, found)
	p.Contacts = ScoreAndRank(validated, p.Domain)
	p.UpdatedAt = time.Now().UTC()

	zap.L().Debug("contacts: prospect processed",
		zap.String("company", p.CompanyName),
		zap.Int("pages", len(sel.Pages)),
		zap.Int("contacts", len(p.Contacts)),
	)
	return p
}
