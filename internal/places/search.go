package places

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/pkg/google"
)

// maxPerQuery caps how many results a single directory query may return.
const maxPerQuery = 20

// queryVariants returns the phrasings tried for one (location, industry)
// pair. Directories are sensitive to wording, so the next variant is only
// tried when the previous one returned nothing.
func queryVariants(location, industry string) []string {
	return []string{
		fmt.Sprintf("%s in %s", industry, location),
		fmt.Sprintf("%s companies in %s", industry, location),
		fmt.Sprintf("%s businesses near %s", industry, location),
	}
}

// Searcher runs directory searches across (location, industry) pairs and
// normalizes the hits into deduplicated prospects.
type Searcher struct {
	client google.Client
}

// NewSearcher creates a Searcher on the given directory client.
func NewSearcher(client google.Client) *Searcher {
	return &Searcher{client: client}
}

// Search queries every (location, industry) pair until limit raw results
// have been collected across all pairs. Individual query failures are
// logged and skipped; an empty result set is a valid outcome.
func (s *Searcher) Search(ctx context.Context, locations, industries []string, limit int) ([]google.Place, error) {
	if limit <= 0 {
		limit = 50
	}

	var raw []google.Place
	for _, loc := range locations {
		for _, ind := range industries {
			if len(raw) >= limit {
				return raw[:limit], nil
			}
			if err := ctx.Err(); err != nil {
				return raw, err
			}

			hits := s.searchPair(ctx, loc, ind)
			raw = append(raw, hits...)
		}
	}

	if len(raw) > limit {
		raw = raw[:limit]
	}
	return raw, nil
}

// searchPair tries each query variant in order, stopping at the first one
// that returns results.
func (s *Searcher) searchPair(ctx context.Context, location, industry string) []google.Place {
	log := zap.L().With(zap.String("location", location), zap.String("industry", industry))

	for _, q := range queryVariants(location, industry) {
		resp, err := s.client.TextSearch(ctx, q, maxPerQuery)
		if err != nil {
			log.Warn("places: search failed", zap.String("query", q), zap.Error(err))
			continue
		}
		if len(resp.Places) > 0 {
			log.Debug("places: variant matched",
				zap.String("query", q),
				zap.Int("results", len(resp.Places)),
			)
			return resp.Places
		}
	}

	log.Info("places: no results for pair")
	return nil
}
