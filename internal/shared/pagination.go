package shared

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Pagination describes one page of a listing. Page numbers are 1-based.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination normalises a requested page selection against the total row
// count. Out-of-range sizes are clamped rather than rejected so handlers can
// pass query parameters through unchecked.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page <= 0 {
		page = 1
	}
	return Pagination{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: (total + perPage - 1) / perPage,
	}
}

// Window returns the limit/offset pair the page selection maps to.
func (p Pagination) Window() (limit, offset int) {
	return p.PerPage, (p.Page - 1) * p.PerPage
}
