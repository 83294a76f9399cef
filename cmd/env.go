package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/campaign"
	"github.com/sells-group/outreach-engine/internal/contacts"
	"github.com/sells-group/outreach-engine/internal/enrich"
	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/pipeline"
	"github.com/sells-group/outreach-engine/internal/places"
	"github.com/sells-group/outreach-engine/internal/store"
	"github.com/sells-group/outreach-engine/internal/tracking"
	"github.com/sells-group/outreach-engine/pkg/anthropic"
	"github.com/sells-group/outreach-engine/pkg/firecrawl"
	"github.com/sells-group/outreach-engine/pkg/google"
	"github.com/sells-group/outreach-engine/pkg/perplexity"
	"github.com/sells-group/outreach-engine/pkg/ses"
)

// env wires the configured store and providers into the engine's
// components. Providers with missing credentials are left nil; the
// pipeline degrades instead of aborting.
type env struct {
	Store       store.Store
	Coordinator *pipeline.Coordinator
	Sender      *campaign.Sender
	Tracker     *tracking.Handler
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	var scraper firecrawl.Client
	if cfg.Firecrawl.Key != "" {
		scraper = firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
	} else {
		zap.L().Warn("firecrawl key missing, page fetch disabled")
	}
	var researcher perplexity.Client
	if cfg.Perplexity.Key != "" {
		researcher = perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model))
	} else {
		zap.L().Warn("perplexity key missing, company research disabled")
	}
	var ai anthropic.Client
	if cfg.Anthropic.Key != "" {
		ai = anthropic.NewClient(cfg.Anthropic.Key)
	} else {
		zap.L().Warn("anthropic key missing, extraction runs heuristics only")
	}

	searcher := places.NewSearcher(google.NewClient(cfg.Places.Key, google.WithBaseURL(cfg.Places.BaseURL)))
	enricher := enrich.NewEnricher(scraper, researcher, enrich.Options{
		BatchSize:       cfg.Discovery.EnrichBatchSize,
		Concurrency:     cfg.Discovery.EnrichConcurrency,
		FetchTimeout:    time.Duration(cfg.Discovery.FetchTimeoutSecs) * time.Second,
		ResearchTimeout: time.Duration(cfg.Discovery.ResearchTimeoutSecs) * time.Second,
	})
	stage := contacts.NewStage(scraper, ai, cfg.Anthropic.Model, contacts.Options{
		MaxPages:       cfg.Contacts.MaxPages,
		MaxSiteURLs:    cfg.Contacts.MaxSiteURLs,
		ExtractRetries: cfg.Contacts.ExtractRetries,
		BatchSize:      cfg.Discovery.EnrichBatchSize,
		Concurrency:    cfg.Discovery.EnrichConcurrency,
	})

	coordinator := pipeline.New(st, searcher, enricher, stage, logProgress)

	transport, err := ses.NewClient(ctx, ses.Config{
		Region:    cfg.SES.Region,
		AccessKey: cfg.SES.AccessKey,
		SecretKey: cfg.SES.SecretKey,
	})
	if err != nil {
		return nil, err
	}
	registry := campaign.NewRegistry(campaign.LimiterConfig{
		HourlyLimit:   cfg.Campaign.HourlyLimit,
		DailyLimit:    cfg.Campaign.DailyLimit,
		MinDelay:      time.Duration(cfg.Campaign.MinDelaySecs) * time.Second,
		WarmupEnabled: cfg.Campaign.WarmupEnabled,
	})

	return &env{
		Store:       st,
		Coordinator: coordinator,
		Sender:      campaign.NewSender(st, transport, registry),
		Tracker:     tracking.NewHandler(st),
	}, nil
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func logProgress(ev model.ProgressEvent) {
	zap.L().Info("pipeline progress",
		zap.String("job_id", ev.JobID),
		zap.String("phase", ev.Phase),
		zap.String("status", string(ev.Status)),
		zap.String("message", ev.Message),
		zap.Int("places_found", ev.Counters.PlacesFound),
		zap.Int("enriched", ev.Counters.Enriched),
		zap.Int("contacts_found", ev.Counters.ContactsFound))
}
