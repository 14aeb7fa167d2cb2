package engine

import (
	"errors"
)

// DefaultPageSize is used when a view does not ask for a page size.
const DefaultPageSize = 10

var ErrInvalidPageSize = errors.New("page size must be positive")

// Pagination is the page state exposed to the presentation layer.
type Pagination struct {
	PageNo   int `json:"pageNo"`   // 1-based
	PageSize int `json:"pageSize"` // > 0
	Total    int `json:"total"`    // ceil(filteredCount / pageSize)
}

// Paginator owns the pagination state of one view.
type Paginator struct {
	state Pagination
	count int // filtered count seen by the last Recompute
}

// NewPaginator creates a paginator on page 1. A non-positive pageSize falls
// back to DefaultPageSize.
func NewPaginator(pageSize int) *Paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Paginator{state: Pagination{PageNo: 1, PageSize: pageSize}}
}

// State returns the current pagination.
func (p *Paginator) State() Pagination {
	return p.state
}

// TotalPages returns ceil(count/pageSize), 0 for an empty result.
func TotalPages(count, pageSize int) int {
	if count <= 0 || pageSize <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}

// Recompute refreshes the total for filteredCount. When the count or the
// page size differ from the previous call the current page resets to 1.
func (p *Paginator) Recompute(filteredCount, pageSize int) Pagination {
	if pageSize <= 0 {
		pageSize = p.state.PageSize
	}
	if filteredCount != p.count || pageSize != p.state.PageSize {
		p.state.PageNo = 1
	}
	p.count = filteredCount
	p.state.PageSize = pageSize
	p.state.Total = TotalPages(filteredCount, pageSize)
	return p.state
}

// Reset moves back to the first page.
func (p *Paginator) Reset() {
	p.state.PageNo = 1
}

// SetPageSize changes the page size and recomputes against the last count.
func (p *Paginator) SetPageSize(pageSize int) (Pagination, error) {
	if pageSize <= 0 {
		return p.state, ErrInvalidPageSize
	}
	return p.Recompute(p.count, pageSize), nil
}

// GoToPage moves to the requested page without touching the total.
// Requests are clamped into [1, max(total, 1)].
func (p *Paginator) GoToPage(requested int) int {
	last := p.state.Total
	if last < 1 {
		last = 1
	}
	switch {
	case requested < 1:
		requested = 1
	case requested > last:
		requested = last
	}
	p.state.PageNo = requested
	return requested
}

// WindowFor returns the [start, end) index range of pageNo.
func WindowFor(pageNo, pageSize int) (start, end int) {
	if pageNo < 1 {
		pageNo = 1
	}
	start = (pageNo - 1) * pageSize
	return start, start + pageSize
}

// Window slices items to [start, end), clipped to the collection. Slicing
// past the end yields a short or empty result, never a panic.
func Window[T any](items []T, start, end int) []T {
	if start < 0 {
		start = 0
	}
	if end > len(items) {
		end = len(items)
	}
	if start >= end {
		return []T{}
	}
	return items[start:end]
}
