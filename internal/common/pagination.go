package common

import "net/http"

// Pagination holds paging metadata for list responses.
type Pagination struct {
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	TotalItems int `json:"total_items"`
}

// ParsePagination extracts limit and offset query parameters, falling back to
// defaultLimit and bounding the limit to maxLimit when it is positive.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	q := r.URL.Query()
	limit = AtoiDefault(q.Get("limit"), defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	offset = AtoiDefault(q.Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}
	return
}
