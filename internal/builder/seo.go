package builder

import (
	"fmt"
	"strings"
	"time"
)

// siteDomain returns the public host of a site: the profile website when
// set, otherwise the slug under the base domain.
func siteDomain(website, slug, baseDomain string) string {
	if host := hostOf(website); host != "" {
		return host
	}
	return slug + "." + strings.TrimPrefix(baseDomain, ".")
}

func hostOf(website string) string {
	w := strings.TrimSpace(website)
	w = strings.TrimPrefix(w, "https://")
	w = strings.TrimPrefix(w, "http://")
	if i := strings.IndexAny(w, "/?#"); i >= 0 {
		w = w[:i]
	}
	return strings.ToLower(w)
}

// renderSitemap produces a single-URL sitemap for domain.
func renderSitemap(domain string, modified time.Time) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url>
    <loc>https://%s/</loc>
    <lastmod>%s</lastmod>
    <changefreq>monthly</changefreq>
    <priority>1.0</priority>
  </url>
</urlset>
`, domain, modified.UTC().Format("2006-01-02")))
}

// renderRobots allows all crawlers and points them at the sitemap.
func renderRobots(business, domain string) []byte {
	return []byte(fmt.Sprintf(`# %s
User-agent: *
Allow: /

Sitemap: https://%s/sitemap.xml
`, business, domain))
}
