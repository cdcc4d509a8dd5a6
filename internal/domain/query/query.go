package query

// Pagination carries offset pagination parsed from the request.
type Pagination struct {
	Limit  *int
	Offset *int
	Order  string
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// NewPagination builds offset pagination from a 1-based page and page size.
func NewPagination(page, limit int) *Pagination {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit
	return &Pagination{Limit: &limit, Offset: &offset, Order: "desc"}
}

// LimitOr returns the limit or the fallback when unset.
func (p *Pagination) LimitOr(fallback int) int {
	if p == nil || p.Limit == nil {
		return fallback
	}
	return *p.Limit
}

// OffsetOr returns the offset or the fallback when unset.
func (p *Pagination) OffsetOr(fallback int) int {
	if p == nil || p.Offset == nil {
		return fallback
	}
	return *p.Offset
}

// Page returns the 1-based page number implied by offset and limit.
func (p *Pagination) Page() int {
	limit := p.LimitOr(DefaultLimit)
	if limit <= 0 {
		return 1
	}
	return p.OffsetOr(0)/limit + 1
}
