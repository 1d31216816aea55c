package pagination

import (
	"net/url"
	"strconv"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds page-based pagination parameters for backend list endpoints.
// Pages are 1-based, matching the backend's contract.
type Params struct {
	Page  int
	Limit int
}

// Normalized returns a copy with the page floored at 1 and the limit clamped
// to [1, MaxLimit], defaulting to DefaultLimit when unset.
func (p Params) Normalized() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Apply sets the page and limit query parameters on q.
func (p Params) Apply(q url.Values) {
	n := p.Normalized()
	q.Set("page", strconv.Itoa(n.Page))
	q.Set("limit", strconv.Itoa(n.Limit))
}

// Page describes one page of a paginated backend response.
type PageInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// HasNext reports whether another page follows this one.
func (pi PageInfo) HasNext() bool {
	return pi.Page < pi.TotalPages
}

// HasPrevious reports whether a page precedes this one.
func (pi PageInfo) HasPrevious() bool {
	return pi.Page > 1
}

// NextPage returns the number of the page after the current one.
func (p Params) NextPage() Params {
	n := p.Normalized()
	n.Page++
	return n
}

// PreviousPage returns the page before the current one, floored at 1.
func (p Params) PreviousPage() Params {
	n := p.Normalized()
	if n.Page > 1 {
		n.Page--
	}
	return n
}
