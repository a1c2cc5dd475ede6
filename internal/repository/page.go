package repository

import (
	"github.com/bassista/go_backoffice/internal/paginate"
)

// Links are the navigation urls of a paginated response.
type Links struct {
	First *string `json:"first"`
	Last  *string `json:"last"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
}

type MetaLink struct {
	URL    *string `json:"url"`
	Label  *string `json:"label"`
	Active *bool   `json:"active"`
}

// Meta is the paging block of a list response.
type Meta struct {
	CurrentPage int        `json:"current_page" validate:"gte=0"`
	From        *int       `json:"from"`
	LastPage    int        `json:"last_page" validate:"gte=0"`
	Links       []MetaLink `json:"links"`
	Path        string     `json:"path"`
	PerPage     int        `json:"per_page" validate:"gte=0"`
	To          *int       `json:"to"`
	Total       int        `json:"total" validate:"gte=0"`
}

// Page is the envelope of every list endpoint: {data, links, meta}.
type Page[E paginate.Entity] struct {
	Data  []E    `json:"data" validate:"required,dive"`
	Links *Links `json:"links"`
	Meta  *Meta  `json:"meta"`
}

// HasMore reports whether a following page exists. The meta block decides
// when present; otherwise a full page is taken to mean there may be more.
func (p Page[E]) HasMore(pageSize int) bool {
	if p.Meta != nil && p.Meta.LastPage > 0 {
		return p.Meta.CurrentPage < p.Meta.LastPage
	}
	return pageSize > 0 && len(p.Data) >= pageSize
}

// Result converts the page for the accumulator.
func (p Page[E]) Result(pageSize int) paginate.PageResult[E] {
	return paginate.PageResult[E]{Items: p.Data, HasMore: p.HasMore(pageSize)}
}

// Total returns the backend's total count, or the page length when meta is missing.
func (p Page[E]) Total() int {
	if p.Meta != nil {
		return p.Meta.Total
	}
	return len(p.Data)
}
