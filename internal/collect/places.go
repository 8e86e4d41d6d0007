package collect

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shivortex/lead-scraper/internal/model"
	"github.com/shivortex/lead-scraper/pkg/google"
)

const placesPageSize = 20

// PlacesCollector discovers listings through Google Places Text Search.
type PlacesCollector struct {
	client   google.Client
	maxPages int
}

// NewPlacesCollector creates a Places collector that follows at most
// maxPages result pages per seed.
func NewPlacesCollector(client google.Client, maxPages int) *PlacesCollector {
	if maxPages <= 0 {
		maxPages = 3
	}
	return &PlacesCollector{client: client, maxPages: maxPages}
}

// Name implements Collector.
func (c *PlacesCollector) Name() string { return "places" }

// Collect implements Collector. The text query is seed.Query, or
// "<category> in <city>" when no query is given. Params: included_type,
// language, region, max_pages.
func (c *PlacesCollector) Collect(_ context.Context, seed Seed) (*Stream, error) {
	query := placesQuery(seed)
	if query == "" {
		return nil, Unavailable(c.Name(), seed, eris.New("places: seed needs a query or a category"))
	}
	maxPages := c.maxPages
	if v := seed.Param("max_pages", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, Unavailable(c.Name(), seed, eris.Errorf("places: invalid max_pages %q", v))
		}
		maxPages = n
	}

	return NewStream(c.Name(), seed, func(ctx context.Context, yield func(model.RawListing) bool, skip func()) error {
		req := google.TextSearchRequest{
			TextQuery:    query,
			PageSize:     placesPageSize,
			IncludedType: seed.Param("included_type", ""),
			LanguageCode: seed.Param("language", ""),
			RegionCode:   seed.Param("region", ""),
		}
		for page := 1; page <= maxPages; page++ {
			resp, err := c.client.SearchText(ctx, req)
			if err != nil {
				var apiErr *google.APIError
				if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
					return eris.Wrap(err, "places: authentication required")
				}
				return eris.Wrapf(err, "places: search page %d", page)
			}
			zap.L().Debug("places: page fetched",
				zap.String("query", query), zap.Int("page", page), zap.Int("places", len(resp.Places)))

			for _, p := range resp.Places {
				l, ok := placeListing(p, seed)
				if !ok {
					skip()
					continue
				}
				if !yield(l) {
					return nil
				}
			}

			if resp.NextPageToken == "" {
				return nil
			}
			req.PageToken = resp.NextPageToken
		}
		return nil
	}), nil
}

func placesQuery(seed Seed) string {
	if q := strings.TrimSpace(seed.Query); q != "" {
		return q
	}
	cat := strings.TrimSpace(seed.Category)
	if cat == "" {
		return ""
	}
	if city := strings.TrimSpace(seed.City); city != "" {
		return cat + " in " + city
	}
	return cat
}

// placeListing maps a place to a listing. Places without an id or a maps
// link have no stable source and are malformed.
func placeListing(p google.Place, seed Seed) (model.RawListing, bool) {
	source := p.GoogleMapsURI
	if source == "" && p.ID != "" {
		source = "https://www.google.com/maps/place/?q=place_id:" + p.ID
	}
	if source == "" {
		return model.RawListing{}, false
	}

	l := model.RawListing{
		Name:      text(p.DisplayName.Text),
		Category:  text(p.Category()),
		Address:   text(p.FormattedAddress),
		City:      text(p.City()),
		Website:   text(p.WebsiteURI),
		Phone:     text(p.Phone()),
		SourceURL: model.Str(source),
	}
	if l.Category == nil {
		l.Category = text(seed.Category)
	}
	if l.City == nil {
		l.City = text(seed.City)
	}
	if p.Location != nil {
		l.Latitude = model.Float(p.Location.Latitude)
		l.Longitude = model.Float(p.Location.Longitude)
	}
	return l, true
}
