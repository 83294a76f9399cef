package contacts

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/pkg/anthropic"
)

// pathRule weights a path keyword or pattern when ranking candidate
// pages. Kept as a data table so every rule can be unit tested.
type pathRule struct {
	pattern *regexp.Regexp
	weight  int
}

var pathRules = []pathRule{
	{regexp.MustCompile(`(?i)/(team|our-team|meet-the-team)`), 40},
	{regexp.MustCompile(`(?i)/(about|about-us|company|who-we-are)`), 35},
	{regexp.MustCompile(`(?i)/(contact|contact-us)`), 35},
	{regexp.MustCompile(`(?i)/(leadership|management|people|staff|founders)`), 30},
	{regexp.MustCompile(`(?i)/(blog|news|press|articles?)`), -30},
	{regexp.MustCompile(`/20\d{2}/`), -25},
	{regexp.MustCompile(`(?i)/(privacy|terms|legal|cookie)`), -40},
	{regexp.MustCompile(`(?i)/(product|shop|store|cart|pricing)`), -15},
	{regexp.MustCompile(`(?i)/(category|tag|author)/`), -30},
}

// heuristicScore returns the summed weight of every rule matching the URL.
func heuristicScore(rawURL string) int {
	score := 0
	for _, r := range pathRules {
		if r.pattern.MatchString(rawURL) {
			score += r.weight
		}
	}
	return score
}

// Selection is the outcome of picking candidate pages, recording whether
// the deterministic fallback produced it instead of the AI ranking.
type Selection struct {
	Pages    []string
	Degraded bool
}

// Selector picks up to maxPages contact-rich pages from a discovered URL
// set, preferring an AI ranking and falling back to heuristic scoring.
type Selector struct {
	ai       anthropic.Client
	model    string
	maxPages int
}

// NewSelector creates a Selector. A nil AI client always uses the
// heuristic path.
func NewSelector(ai anthropic.Client, model string, maxPages int) *Selector {
	if maxPages <= 0 {
		maxPages = 8
	}
	return &Selector{ai: ai, model: model, maxPages: maxPages}
}

// Select returns up to maxPages URLs likely to list people. Small URL
// sets are taken as-is.
func (s *Selector) Select(ctx context.Context, urls []string) Selection {
	if len(urls) <= s.maxPages {
		return Selection{Pages: urls}
	}

	if s.ai != nil {
		if pages, err := s.selectWithAI(ctx, urls); err == nil {
			return Selection{Pages: pages}
		} else {
			zap.L().Debug("contacts: AI page selection failed, using heuristic",
				zap.Error(err))
		}
	}

	return Selection{Pages: s.selectHeuristic(urls), Degraded: true}
}

func (s *Selector) selectWithAI(ctx context.Context, urls []string) ([]string, error) {
	prompt := fmt.Sprintf(
		"From the URL list below, pick at most %d pages most likely to name "+
			"the company's people: team, about, contact, and leadership style pages "+
			"are good; blog posts, news, dated archives, legal, and product pages "+
			"are bad. Reply with a JSON array of the chosen URLs and nothing else.\n\n%s",
		s.maxPages, strings.Join(urls, "\n"),
	)

	resp, err := s.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: 1024,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, err
	}

	var picked []string
	if err := json.Unmarshal([]byte(extractJSONArray(resp.Text())), &picked); err != nil {
		return nil, err
	}

	// Only accept URLs that were actually in the candidate set.
	known := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		known[u] = struct{}{}
	}
	out := make([]string, 0, s.maxPages)
	for _, u := range picked {
		if _, ok := known[u]; ok {
			out = append(out, u)
		}
		if len(out) == s.maxPages {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("contacts: AI selection returned no usable URLs")
	}
	return out, nil
}

func (s *Selector) selectHeuristic(urls []string) []string {
	type scored struct {
		url   string
		score int
	}
	ranked := make([]scored, len(urls))
	for i, u := range urls {
		ranked[i] = scored{url: u, score: heuristicScore(u)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]string, 0, s.maxPages)
	for _, r := range ranked {
		if len(out) == s.maxPages {
			break
		}
		out = append(out, r.url)
	}
	return out
}

// extractJSONArray pulls the first top-level JSON array out of a model
// reply that may wrap it in prose or code fences.
func extractJSONArray(text string) string {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
