package store

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shivortex/lead-scraper/internal/model"
	"github.com/shivortex/lead-scraper/internal/scorer"
)

// MaxPageSize bounds a single Query page.
const MaxPageSize = 500

// matchKind selects how a filter value is compared.
type matchKind int

const (
	matchExact matchKind = iota
	matchSubstring
	matchAtLeast
)

// filterFields is the allow-list of filterable fields and the folded column
// each one compares against.
var filterFields = map[string]struct {
	column string
	match  matchKind
}{
	"category":    {column: "category_fold", match: matchExact},
	"city":        {column: "city_fold", match: matchExact},
	"min_quality": {column: qualityExpr(scorer.DefaultWeights()), match: matchAtLeast},
	"name":        {column: "name_fold", match: matchSubstring},
}

// qualityPresence is the SQL condition under which each scored component
// counts, mirroring scorer.Score.
var qualityPresence = map[string]string{
	scorer.Email:       "COALESCE(TRIM(email), '') <> ''",
	scorer.Phone:       "COALESCE(TRIM(phone), '') <> ''",
	scorer.Website:     "COALESCE(TRIM(website), '') <> ''",
	scorer.Address:     "COALESCE(TRIM(address), '') <> ''",
	scorer.Coordinates: "latitude IS NOT NULL AND longitude IS NOT NULL",
}

// qualityExpr renders the 0-100 quality score of a row as SQL.
func qualityExpr(w scorer.Weights) string {
	terms := make([]string, 0, len(scorer.Components))
	for _, c := range scorer.Components {
		terms = append(terms, fmt.Sprintf("CASE WHEN %s THEN %s ELSE 0 END",
			qualityPresence[c], strconv.FormatFloat(w.Of(c), 'f', -1, 64)))
	}
	return fmt.Sprintf("((%s) * 100.0 / %s)", strings.Join(terms, " + "), strconv.FormatFloat(w.Sum(), 'f', -1, 64))
}

// FilterFields returns the recognized filter keys in sorted order.
func FilterFields() []string {
	keys := make([]string, 0, len(filterFields))
	for k := range filterFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Criteria is a validated filter set plus a page window.
type Criteria struct {
	preds  []predicate
	Limit  int
	Offset int
}

type predicate struct {
	column string
	match  matchKind
	value  string
	min    float64
}

// NewCriteria validates filters against the allow-list and the page window.
// Empty filter values are ignored. Filter and page problems are reported
// together; the error kind is ErrInvalidFilter when any filter is bad.
func NewCriteria(filters map[string]string, page, pageSize int) (*Criteria, error) {
	preds, bad := checkFilters(filters)

	var pageErr *InputError
	if err := CheckPage(page, pageSize); err != nil {
		pageErr = err.(*InputError)
	}
	switch {
	case len(bad) > 0 && pageErr != nil:
		return nil, &InputError{Kind: ErrInvalidFilter, Fields: append(bad, pageErr.Fields...)}
	case len(bad) > 0:
		return nil, &InputError{Kind: ErrInvalidFilter, Fields: bad}
	case pageErr != nil:
		return nil, pageErr
	}

	return &Criteria{
		preds:  preds,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}, nil
}

// CheckFilters reports every filter key outside the allow-list.
func CheckFilters(filters map[string]string) []model.FieldError {
	_, bad := checkFilters(filters)
	return bad
}

func checkFilters(filters map[string]string) ([]predicate, []model.FieldError) {
	var bad []model.FieldError
	var preds []predicate

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		f, ok := filterFields[k]
		if !ok {
			bad = append(bad, model.FieldError{
				Field:   k,
				Message: fmt.Sprintf("unknown filter (allowed: %s)", strings.Join(FilterFields(), ", ")),
			})
			continue
		}
		if f.match == matchAtLeast {
			raw := strings.TrimSpace(filters[k])
			if raw == "" {
				continue
			}
			floor, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(floor) || floor < 0 || floor > 100 {
				bad = append(bad, model.FieldError{Field: k, Message: "must be a number between 0 and 100"})
				continue
			}
			preds = append(preds, predicate{column: f.column, match: f.match, min: floor})
			continue
		}
		v := model.Fold(filters[k])
		if v == "" {
			continue
		}
		preds = append(preds, predicate{column: f.column, match: f.match, value: v})
	}
	return preds, bad
}

// CheckPage validates a 1-indexed page number and page size.
func CheckPage(page, pageSize int) error {
	var bad []model.FieldError
	if page < 1 {
		bad = append(bad, model.FieldError{Field: "page", Message: "must be a positive integer"})
	}
	if pageSize < 1 {
		bad = append(bad, model.FieldError{Field: "page_size", Message: "must be a positive integer"})
	} else if pageSize > MaxPageSize {
		bad = append(bad, model.FieldError{Field: "page_size", Message: "must be at most " + strconv.Itoa(MaxPageSize)})
	}
	if len(bad) > 0 {
		return &InputError{Kind: ErrInvalidPagination, Fields: bad}
	}
	return nil
}

// Where renders the WHERE clause (including the keyword, or "" when there
// are no predicates) and its arguments. placeholder maps a 1-based argument
// position to the backend's bind syntax.
func (c *Criteria) Where(placeholder func(n int) string) (string, []any) {
	if len(c.preds) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(c.preds))
	args := make([]any, 0, len(c.preds))
	for i, p := range c.preds {
		ph := placeholder(i + 1)
		switch p.match {
		case matchAtLeast:
			clauses = append(clauses, p.column+" >= "+ph)
			args = append(args, p.min)
		case matchSubstring:
			clauses = append(clauses, p.column+` LIKE `+ph+` ESCAPE '\'`)
			args = append(args, "%"+escapeLike(p.value)+"%")
		default:
			clauses = append(clauses, p.column+" = "+ph)
			args = append(args, p.value)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }
