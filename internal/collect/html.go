package collect

import (
	"context"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shivortex/lead-scraper/internal/model"
)

// Downloader fetches the body at a URL.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Default CSS selectors for directory result pages. Seeds override any of
// them through params of the same name.
var defaultSelectors = map[string]string{
	"item":     ".listing",
	"name":     ".name",
	"category": ".category",
	"address":  ".address",
	"city":     ".city",
	"phone":    ".phone",
	"email":    ".email",
	"website":  ".website",
	"next":     "a[rel=next]",
	"lat_attr": "data-lat",
	"lon_attr": "data-lon",
}

// HTMLCollector scrapes business listings from directory search-result pages.
type HTMLCollector struct {
	fetch Downloader
}

// NewHTMLCollector creates an HTML collector that fetches pages through d.
func NewHTMLCollector(d Downloader) *HTMLCollector {
	return &HTMLCollector{fetch: d}
}

// Name implements Collector.
func (c *HTMLCollector) Name() string { return "html" }

// Collect implements Collector. Seed params: the selectors in
// defaultSelectors plus max_pages (default 1).
func (c *HTMLCollector) Collect(_ context.Context, seed Seed) (*Stream, error) {
	start, err := url.Parse(seed.URL)
	if err != nil || (start.Scheme != "http" && start.Scheme != "https") || start.Host == "" {
		return nil, Unavailable(c.Name(), seed, eris.Errorf("html: seed url %q is not an http(s) url", seed.URL))
	}
	maxPages, err := strconv.Atoi(seed.Param("max_pages", "1"))
	if err != nil || maxPages < 1 {
		return nil, Unavailable(c.Name(), seed, eris.Errorf("html: invalid max_pages %q", seed.Params["max_pages"]))
	}

	sel := make(map[string]string, len(defaultSelectors))
	for k, v := range defaultSelectors {
		sel[k] = seed.Param(k, v)
	}

	return NewStream(c.Name(), seed, func(ctx context.Context, yield func(model.RawListing) bool, skip func()) error {
		log := zap.L().With(zap.String("component", "collect.html"), zap.String("seed", seed.String()))
		page := start
		for n := 1; n <= maxPages && page != nil; n++ {
			doc, err := c.load(ctx, page.String())
			if err != nil {
				return err
			}

			items := doc.Find(sel["item"])
			if n == 1 && items.Length() == 0 && !emptyResults(doc) {
				return eris.Errorf("html: no elements match item selector %q", sel["item"])
			}
			log.Debug("html: page parsed", zap.Int("page", n), zap.Int("items", items.Length()))

			stop := false
			items.EachWithBreak(func(_ int, item *goquery.Selection) bool {
				l, ok := parseItem(item, sel, page, seed)
				if !ok {
					skip()
					return true
				}
				if !yield(l) {
					stop = true
					return false
				}
				return true
			})
			if stop {
				return nil
			}

			page = nextPage(doc, sel["next"], page)
		}
		return nil
	}), nil
}

func (c *HTMLCollector) load(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := c.fetch.Download(ctx, pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "html: fetch %s", pageURL)
	}
	defer body.Close() //nolint:errcheck

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, eris.Wrapf(err, "html: parse %s", pageURL)
	}
	return doc, nil
}

// emptyResults reports whether the page explicitly says there are no
// results, which is not a layout change.
func emptyResults(doc *goquery.Document) bool {
	return doc.Find(".no-results, [data-empty-results]").Length() > 0
}

// parseItem extracts one listing. An item without any text is malformed.
func parseItem(item *goquery.Selection, sel map[string]string, page *url.URL, seed Seed) (model.RawListing, bool) {
	if strings.TrimSpace(item.Text()) == "" {
		return model.RawListing{}, false
	}

	l := model.RawListing{
		Name:      text(item.Find(sel["name"]).First().Text()),
		Category:  text(item.Find(sel["category"]).First().Text()),
		Address:   text(item.Find(sel["address"]).First().Text()),
		City:      text(item.Find(sel["city"]).First().Text()),
		Phone:     linkOrText(item.Find(sel["phone"]).First(), "tel:"),
		Email:     linkOrText(item.Find(sel["email"]).First(), "mailto:"),
		SourceURL: model.Str(page.String()),
	}
	if l.Category == nil {
		l.Category = text(seed.Category)
	}
	if l.City == nil {
		l.City = text(seed.City)
	}

	if w := item.Find(sel["website"]).First(); w.Length() > 0 {
		if href, ok := w.Attr("href"); ok {
			l.Website = resolve(page, href)
		} else {
			l.Website = text(w.Text())
		}
	}

	if lat, ok := item.Attr(sel["lat_attr"]); ok {
		l.Latitude = parseFloat(lat)
	}
	if lon, ok := item.Attr(sel["lon_attr"]); ok {
		l.Longitude = parseFloat(lon)
	}

	if link, ok := item.Find(sel["name"]).First().Find("a[href]").Attr("href"); ok {
		if u := resolve(page, link); u != nil {
			l.SourceURL = u
		}
	}
	return l, true
}

// linkOrText prefers a scheme-prefixed href (tel:, mailto:) over the text.
func linkOrText(s *goquery.Selection, scheme string) *string {
	if s.Length() == 0 {
		return nil
	}
	if href, ok := s.Attr("href"); ok && strings.HasPrefix(strings.ToLower(href), scheme) {
		v, _ := url.PathUnescape(href[len(scheme):])
		if i := strings.IndexByte(v, '?'); i >= 0 {
			v = v[:i]
		}
		return text(v)
	}
	return text(s.Text())
}

func nextPage(doc *goquery.Document, selector string, page *url.URL) *url.URL {
	href, ok := doc.Find(selector).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil
	}
	next := page.ResolveReference(ref)
	if next.String() == page.String() {
		return nil
	}
	return next
}

func resolve(base *url.URL, href string) *string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil || href == "" {
		return nil
	}
	return model.Str(base.ResolveReference(ref).String())
}

func parseFloat(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
