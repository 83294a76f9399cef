package contacts

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/pkg/firecrawl"
)

// fallbackPaths are tried, with the homepage, when neither sitemap nor
// the site-map capability yields anything.
var fallbackPaths = []string{"/about", "/team", "/contact", "/about-us", "/our-team"}

// sitemapSource is the first discovery tier.
type sitemapSource interface {
	Collect(ctx context.Context, domain string, maxURLs int) []string
}

// Discoverer finds candidate page URLs for a domain across three tiers,
// first success wins: the site's own sitemaps, the external site-mapping
// capability, then a fixed set of common paths.
type Discoverer struct {
	sitemaps sitemapSource
	mapper   firecrawl.Client
	maxURLs  int
}

// NewDiscoverer creates a Discoverer. A nil mapper disables the second
// tier.
func NewDiscoverer(sitemaps sitemapSource, mapper firecrawl.Client, maxURLs int) *Discoverer {
	if maxURLs <= 0 {
		maxURLs = 100
	}
	return &Discoverer{sitemaps: sitemaps, mapper: mapper, maxURLs: maxURLs}
}

// DiscoverPages returns candidate URLs for the domain. Never empty: the
// fixed fallback paths apply when both earlier tiers come up short.
func (d *Discoverer) DiscoverPages(ctx context.Context, domain string) []string {
	if urls := d.sitemaps.Collect(ctx, domain, d.maxURLs); len(urls) > 0 {
		return urls
	}

	if d.mapper != nil {
		resp, err := d.mapper.Map(ctx, firecrawl.MapRequest{
			URL:   "https://" + domain,
			Limit: d.maxURLs,
		})
		if err != nil {
			zap.L().Debug("contacts: site-map capability failed",
				zap.String("domain", domain), zap.Error(err))
		} else if len(resp.Links) > 0 {
			links := resp.Links
			if len(links) > d.maxURLs {
				links = links[:d.maxURLs]
			}
			zap.L().Debug("contacts: site-map tier matched",
				zap.String("domain", domain), zap.Int("urls", len(links)))
			return links
		}
	}

	urls := make([]string, 0, len(fallbackPaths)+1)
	urls = append(urls, "https://"+domain)
	for _, p := range fallbackPaths {
		urls = append(urls, "https://"+domain+p)
	}
	zap.L().Debug("contacts: using fallback paths", zap.String("domain", domain))
	return urls
}
