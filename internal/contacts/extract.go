package contacts

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/resilience"
	"github.com/sells-group/outreach-engine/pkg/anthropic"
	"github.com/sells-group/outreach-engine/pkg/firecrawl"
)

// maxPageContentChars bounds how much page text is sent per extraction
// call.
const maxPageContentChars = 12000

// extractedContact is the JSON shape the extraction prompt asks for.
type extractedContact struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	LinkedInURL string `json:"linkedin_url"`
}

// Extractor pulls structured contacts out of web pages with an AI
// extraction call per page.
type Extractor struct {
	scraper firecrawl.Client
	ai      anthropic.Client
	model   string
	retry   resilience.RetryConfig

	mu    sync.Mutex
	usage anthropic.TokenUsage
}

// NewExtractor creates an Extractor. retries is the attempt count per
// page extraction.
func NewExtractor(scraper firecrawl.Client, ai anthropic.Client, aiModel string, retries int) *Extractor {
	if retries <= 0 {
		retries = 3
	}
	return &Extractor{
		scraper: scraper,
		ai:      ai,
		model:   aiModel,
		retry: resilience.RetryConfig{
			MaxAttempts:    retries,
			InitialBackoff: time.Second,
			Multiplier:     2.0,
		},
	}
}

// ExtractFromPages fetches each page and extracts contacts from it. A
// page whose fetch or extraction ultimately fails is skipped rather than
// failing the stage.
func (e *Extractor) ExtractFromPages(ctx context.Context, company string, pageURLs []string) []model.Contact {
	var out []model.Contact
	for _, pageURL := range pageURLs {
		if ctx.Err() != nil {
			break
		}

		content, err := e.fetchPage(ctx, pageURL)
		if err != nil || content == "" {
			zap.L().Debug("contacts: page fetch skipped",
				zap.String("url", pageURL), zap.Error(err))
			continue
		}

		found, err := e.extractFromText(ctx, company, content)
		if err != nil {
			zap.L().Debug("contacts: page extraction skipped",
				zap.String("url", pageURL), zap.Error(err))
			continue
		}
		out = append(out, found...)
	}
	return out
}

// ExtractFromSummary runs extraction against a third-party research
// summary, used as a supplemental source when pages yielded few contacts.
func (e *Extractor) ExtractFromSummary(ctx context.Context, company, summary string) []model.Contact {
	if summary == "" {
		return nil
	}
	found, err := e.extractFromText(ctx, company, summary)
	if err != nil {
		zap.L().Debug("contacts: summary extraction skipped", zap.Error(err))
		return nil
	}
	return found
}

func (e *Extractor) fetchPage(ctx context.Context, pageURL string) (string, error) {
	if e.scraper == nil {
		return "", nil
	}
	resp, err := e.scraper.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:             pageURL,
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
	})
	if err != nil {
		return "", err
	}
	return resp.Data.Markdown, nil
}

// Usage reports the token consumption accumulated across every
// extraction call made so far.
func (e *Extractor) Usage() anthropic.TokenUsage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.usage
}

func (e *Extractor) extractFromText(ctx context.Context, company, text string) ([]model.Contact, error) {
	if e.ai == nil {
		return nil, nil
	}
	if len(text) > maxPageContentChars {
		text = text[:maxPageContentChars]
	}

	prompt := fmt.Sprintf(
		"Extract every person named in the following content from %s. Reply with a "+
			"JSON array of objects with keys name, title, email, phone, linkedin_url "+
			"(empty string when unknown) and nothing else. Reply [] if no people are "+
			"named.\n\n%s",
		company, text,
	)

	cfg := e.retry
	cfg.OnRetry = resilience.RetryLogger("anthropic", "extract_contacts")

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return e.ai.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     e.model,
			MaxTokens: 2048,
			Messages: []anthropic.Message{
				{Role: "user", Content: prompt},
			},
		})
	})
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.usage.Add(resp.Usage)
	e.mu.Unlock()

	var raw []extractedContact
	if err := json.Unmarshal([]byte(extractJSONArray(resp.Text())), &raw); err != nil {
		return nil, fmt.Errorf("contacts: unparseable extraction output: %w", err)
	}

	out := make([]model.Contact, 0, len(raw))
	for _, r := range raw {
		if r.Name == "" {
			continue
		}
		out = append(out, model.Contact{
			Name:        r.Name,
			Title:       r.Title,
			Email:       r.Email,
			Phone:       r.Phone,
			LinkedInURL: r.LinkedInURL,
		})
	}
	return out, nil
}
