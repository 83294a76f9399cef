package contacts

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// sitemapPaths is the ordered list of locations tried at the domain root.
var sitemapPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/wp-sitemap.xml",
	"/sitemap/sitemap.xml",
}

const (
	maxSitemapDepth    = 2
	maxChildSitemaps   = 5
	maxSitemapBodySize = 5 << 20
)

// childSitemapRank orders child sitemaps so page-like sitemaps are fetched
// before blog and taxonomy ones. Lower ranks first.
func childSitemapRank(loc string) int {
	lower := strings.ToLower(loc)
	switch {
	case strings.Contains(lower, "page"):
		return 0
	case strings.Contains(lower, "post") || strings.Contains(lower, "blog"):
		return 2
	case strings.Contains(lower, "category") || strings.Contains(lower, "tag") ||
		strings.Contains(lower, "taxonomy") || strings.Contains(lower, "author"):
		return 3
	default:
		return 1
	}
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapLoc `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// SitemapFetcher collects page URLs from a site's sitemap files. Sitemap
// indexes are resolved as a depth-bounded worklist with a visited set so
// cyclic or oversized indexes cannot fan out unbounded.
type SitemapFetcher struct {
	http *http.Client
}

// NewSitemapFetcher creates a fetcher with a bounded request timeout.
func NewSitemapFetcher() *SitemapFetcher {
	return &SitemapFetcher{
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

type sitemapWork struct {
	url   string
	depth int
}

// Collect tries the known sitemap paths for domain and returns up to
// maxURLs same-domain page URLs. An empty slice means no sitemap was
// usable; the caller falls through to the next discovery tier.
func (f *SitemapFetcher) Collect(ctx context.Context, domain string, maxURLs int) []string {
	if maxURLs <= 0 {
		maxURLs = 100
	}

	for _, path := range sitemapPaths {
		root := "https://" + domain + path
		urls := f.collectFrom(ctx, root, domain, maxURLs)
		if len(urls) > 0 {
			zap.L().Debug("contacts: sitemap tier matched",
				zap.String("domain", domain),
				zap.String("sitemap", root),
				zap.Int("urls", len(urls)),
			)
			return urls
		}
	}
	return nil
}

func (f *SitemapFetcher) collectFrom(ctx context.Context, root, domain string, maxURLs int) []string {
	visited := map[string]struct{}{}
	worklist := []sitemapWork{{url: root, depth: 0}}
	var pages []string

	for len(worklist) > 0 && len(pages) < maxURLs {
		item := worklist[0]
		worklist = worklist[1:]

		if _, seen := visited[item.url]; seen {
			continue
		}
		visited[item.url] = struct{}{}

		body, err := f.fetch(ctx, item.url)
		if err != nil {
			zap.L().Debug("contacts: sitemap fetch failed",
				zap.String("url", item.url), zap.Error(err))
			continue
		}

		if children, ok := parseSitemapIndex(body); ok {
			if item.depth >= maxSitemapDepth {
				continue
			}
			sort.SliceStable(children, func(i, j int) bool {
				return childSitemapRank(children[i]) < childSitemapRank(children[j])
			})
			if len(children) > maxChildSitemaps {
				children = children[:maxChildSitemaps]
			}
			for _, child := range children {
				worklist = append(worklist, sitemapWork{url: child, depth: item.depth + 1})
			}
			continue
		}

		for _, u := range parseURLSet(body) {
			if len(pages) >= maxURLs {
				break
			}
			if !sameDomain(u, domain) || strings.HasSuffix(strings.ToLower(u), ".xml") {
				continue
			}
			pages = append(pages, u)
		}
	}

	return pages
}

func (f *SitemapFetcher) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "contacts: create sitemap request")
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "contacts: fetch sitemap")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("contacts: sitemap status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBodySize))
	if err != nil {
		return nil, eris.Wrap(err, "contacts: read sitemap")
	}
	return body, nil
}

func parseSitemapIndex(body []byte) ([]string, bool) {
	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err != nil || len(idx.Sitemaps) == 0 {
		return nil, false
	}
	out := make([]string, 0, len(idx.Sitemaps))
	for _, s := range idx.Sitemaps {
		if loc := strings.TrimSpace(s.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out, len(out) > 0
}

func parseURLSet(body []byte) []string {
	var set sitemapURLSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil
	}
	out := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}

func sameDomain(rawURL, domain string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	return host == strings.ToLower(domain)
}
