package models

import (
	"net/url"
	"strconv"
)

const (
	DefaultPageSize  = 10
	DefaultSortBy    = "dateApplied"
	DefaultDirection = DirectionDesc
)

type Direction string

const (
	DirectionAsc  Direction = "asc"
	DirectionDesc Direction = "desc"
)

// ViewQuery is everything that decides which page of which filtered record set
// is on screen. Keyword and Status are optional; the zero value means unset.
type ViewQuery struct {
	Page      int
	PageSize  int
	SortBy    string
	Direction Direction
	Keyword   string
	Status    Status
}

func DefaultViewQuery() ViewQuery {
	return ViewQuery{
		Page:      0,
		PageSize:  DefaultPageSize,
		SortBy:    DefaultSortBy,
		Direction: DefaultDirection,
	}
}

// WithKeyword changes the search keyword. The page always goes back to 0: a
// page index from the previous filter means nothing under the new one.
func (q ViewQuery) WithKeyword(keyword string) ViewQuery {
	q.Keyword = keyword
	q.Page = 0
	return q
}

// WithStatus changes the status filter and resets the page to 0.
func (q ViewQuery) WithStatus(status Status) ViewQuery {
	q.Status = status
	q.Page = 0
	return q
}

func (q ViewQuery) WithPage(page int) ViewQuery {
	q.Page = page
	return q
}

// Params renders the query string of GET /applications. Keyword and status are
// left out entirely when unset.
func (q ViewQuery) Params() url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("size", strconv.Itoa(q.PageSize))
	params.Set("sortBy", q.SortBy)
	params.Set("direction", string(q.Direction))
	if q.Keyword != "" {
		params.Set("keyword", q.Keyword)
	}
	if q.Status != "" {
		params.Set("status", string(q.Status))
	}
	return params
}
