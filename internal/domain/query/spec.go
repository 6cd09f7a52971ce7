// Package query holds the list query specification shared by repositories
// that support search, filtering, sorting and pagination.
package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	DefaultSort  = "-createdAt"
)

// Op is a comparison operator for a filter predicate.
type Op string

const (
	OpEq  Op = "eq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

// Filter is a single predicate on a named field.
type Filter struct {
	Field string
	Op    Op
	Value string
}

// SortKey orders results by Field.
type SortKey struct {
	Field string
	Desc  bool
}

// Spec describes a list request. Repositories decide which fields are
// searchable, filterable and sortable; unknown fields are ignored.
type Spec struct {
	SearchTerm string
	Filters    []Filter
	Sort       []SortKey
	Page       int
	Limit      int
}

// reserved keys are never treated as filters.
var reserved = map[string]struct{}{
	"searchTerm": {},
	"sort":       {},
	"limit":      {},
	"page":       {},
	"fields":     {},
}

// Parse builds a Spec from URL query values. Range filters use the
// field[gte]=v form.
func Parse(v url.Values) Spec {
	s := Spec{
		SearchTerm: strings.TrimSpace(v.Get("searchTerm")),
		Page:       positiveOr(v.Get("page"), DefaultPage),
		Limit:      positiveOr(v.Get("limit"), DefaultLimit),
		Sort:       parseSort(v.Get("sort")),
	}
	if s.Limit > MaxLimit {
		s.Limit = MaxLimit
	}

	for key, values := range v {
		if _, ok := reserved[key]; ok || len(values) == 0 {
			continue
		}
		field, op := splitFilterKey(key)
		if field == "" {
			continue
		}
		s.Filters = append(s.Filters, Filter{Field: field, Op: op, Value: values[0]})
	}
	return s
}

// Offset returns the number of rows to skip.
func (s Spec) Offset() int {
	return (s.Page - 1) * s.Limit
}

// Normalize fills zero values with defaults.
func (s Spec) Normalize() Spec {
	if s.Page < 1 {
		s.Page = DefaultPage
	}
	if s.Limit < 1 {
		s.Limit = DefaultLimit
	}
	if s.Limit > MaxLimit {
		s.Limit = MaxLimit
	}
	if len(s.Sort) == 0 {
		s.Sort = parseSort(DefaultSort)
	}
	return s
}

func parseSort(raw string) []SortKey {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultSort
	}
	var keys []SortKey
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k := SortKey{Field: part}
		if strings.HasPrefix(part, "-") {
			k = SortKey{Field: part[1:], Desc: true}
		}
		keys = append(keys, k)
	}
	return keys
}

// splitFilterKey turns "finalAmount[gte]" into ("finalAmount", OpGte).
func splitFilterKey(key string) (string, Op) {
	open := strings.IndexByte(key, '[')
	if open < 0 || !strings.HasSuffix(key, "]") {
		return key, OpEq
	}
	field, op := key[:open], Op(key[open+1:len(key)-1])
	switch op {
	case OpGt, OpGte, OpLt, OpLte, OpEq:
		return field, op
	default:
		return "", ""
	}
}

func positiveOr(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// Page is the pagination metadata returned alongside list results.
type Page struct {
	Page      int
	Limit     int
	Total     int
	TotalPage int
	NextPage  *int
	PrevPage  *int
}

// NewPage computes pagination metadata for total matching rows.
func NewPage(s Spec, total int) Page {
	p := Page{
		Page:      s.Page,
		Limit:     s.Limit,
		Total:     total,
		TotalPage: int(math.Ceil(float64(total) / float64(s.Limit))),
	}
	if p.Page < p.TotalPage {
		next := p.Page + 1
		p.NextPage = &next
	}
	if p.Page > 1 {
		prev := p.Page - 1
		p.PrevPage = &prev
	}
	return p
}
