package models

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// NewPagination derives TotalPages as ceil(total/limit).
func NewPagination(total, page, limit int) Pagination {
	p := Pagination{Total: total, Page: page, Limit: limit}
	if limit > 0 && total > 0 {
		p.TotalPages = (total + limit - 1) / limit
	}
	return p
}

// Contains reports whether page is a navigable page of the result set.
func (p Pagination) Contains(page int) bool {
	return page >= 1 && page <= p.TotalPages
}

// Settled reports whether the current page lies inside the result set.
// An empty result set is always settled.
func (p Pagination) Settled() bool {
	return p.TotalPages == 0 || p.Contains(p.Page)
}
