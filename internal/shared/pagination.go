package shared

import (
	"math"
	"net/http"
	"strconv"
)

const (
	// DefaultPage is the first page served when none is requested.
	DefaultPage = 1
	// DefaultLimit bounds list sizes when none is requested.
	DefaultLimit = 20
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultLimit
	}
	if page <= 0 {
		page = DefaultPage
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// ListFilters represents standard list filters shared by record endpoints.
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string

	IsActive *bool

	// Entity specific filters
	Cohort   string
	Status   string
	MentorID *int64
}

// FiltersFromQuery parses the standard list parameters from the request
// query string. Entity specific filters stay with the handlers.
func FiltersFromQuery(r *http.Request) ListFilters {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filters := ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  q.Get("search"),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
	}
	if raw := q.Get("active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filters.IsActive = &active
		}
	}
	filters.Normalize()
	return filters
}

// Normalize clamps page and limit to sane values.
func (f *ListFilters) Normalize() {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = DefaultLimit
	}
}

// Offset returns the SQL offset for the current page.
func (f ListFilters) Offset() int {
	return (f.Page - 1) * f.Limit
}
