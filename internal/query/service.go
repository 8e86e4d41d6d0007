// Package query is the read side of the record store: input parsing,
// pagination defaults, error translation and an optional cache.
package query

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/shivortex/lead-scraper/internal/model"
	"github.com/shivortex/lead-scraper/internal/store"
)

// Pagination defaults applied when a request omits them.
const (
	DefaultPage     = 1
	DefaultPageSize = 50
)

// Reader is the part of the record store the service reads through.
type Reader interface {
	Query(ctx context.Context, filters map[string]string, page, pageSize int) ([]model.Lead, int, error)
	Get(ctx context.Context, id int64) (*model.Lead, error)
	Ping(ctx context.Context) error
}

// Cache stores query results. Get reports whether key was present.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

// Page is one page of a lead listing.
type Page struct {
	Items      []model.Lead `json:"items"`
	TotalCount int          `json:"total_count"`
}

// Service answers lead queries.
type Service struct {
	store Reader
	cache Cache
	log   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables read-through caching of lists and single leads.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// NewService creates a query service over r.
func NewService(r Reader, opts ...Option) *Service {
	s := &Service{
		store: r,
		log:   zap.L().With(zap.String("component", "query")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ListLeads returns one page of leads. page and page_size default to 1 and
// 50; every other parameter is a filter. A repeated filter uses its first
// value.
func (s *Service) ListLeads(ctx context.Context, params url.Values) (*Page, error) {
	filters := make(map[string]string, len(params))
	for k, vs := range params {
		if k == "page" || k == "page_size" || len(vs) == 0 {
			continue
		}
		filters[k] = vs[0]
	}

	page, pageSize, perr := parsePaging(params)
	if perr != nil {
		// Unknown filters are reported alongside malformed paging.
		if bad := store.CheckFilters(filters); len(bad) > 0 {
			perr.Kind = KindInvalidFilter
			perr.Fields = append(bad, perr.Fields...)
		}
		return nil, perr
	}

	key := listKey(filters, page, pageSize)
	var cached Page
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	leads, total, err := s.store.Query(ctx, filters, page, pageSize)
	if err != nil {
		return nil, translate(err)
	}
	if leads == nil {
		leads = []model.Lead{}
	}

	out := &Page{Items: leads, TotalCount: total}
	s.cacheSet(ctx, key, out)
	return out, nil
}

// GetLead returns a single lead.
func (s *Service) GetLead(ctx context.Context, id int64) (*model.Lead, error) {
	key := "lead:" + strconv.FormatInt(id, 10)
	var cached model.Lead
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	lead, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	s.cacheSet(ctx, key, lead)
	return lead, nil
}

// HealthCheck reports whether the store is reachable. It never uses the
// cache.
func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return &Error{Kind: KindUnavailable, Err: err}
	}
	return nil
}

func parsePaging(params url.Values) (page, pageSize int, err *Error) {
	var bad []model.FieldError
	parse := func(name string, def int) int {
		raw := strings.TrimSpace(params.Get(name))
		if raw == "" {
			return def
		}
		n, convErr := strconv.Atoi(raw)
		if convErr != nil {
			bad = append(bad, model.FieldError{Field: name, Message: "must be an integer"})
			return 0
		}
		return n
	}

	page = parse("page", DefaultPage)
	pageSize = parse("page_size", DefaultPageSize)
	if len(bad) > 0 {
		return 0, 0, &Error{Kind: KindInvalidPagination, Fields: bad}
	}
	return page, pageSize, nil
}

// listKey is canonical: filter order and case do not matter.
func listKey(filters map[string]string, page, pageSize int) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	v := url.Values{}
	for _, k := range keys {
		v.Set(k, model.Fold(filters[k]))
	}
	v.Set("page", strconv.Itoa(page))
	v.Set("page_size", strconv.Itoa(pageSize))
	return "leads:" + v.Encode()
}

func (s *Service) cacheGet(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.log.Warn("query: cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.log.Warn("query: cache write failed", zap.String("key", key), zap.Error(err))
	}
}
