package pagination

const (
	// DefaultPage is used when the caller omits page or sends a value below 1.
	DefaultPage = 1
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 20
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
	// MaxPage bounds the page so the offset cannot overflow.
	MaxPage = 1_000_000
)

// Params holds page/limit pagination inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// Page is echoed back to clients alongside list results.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Count int `json:"count"`
}

// NormalizeLimit enforces the default and maximum limits. Oversized limits are clamped
// rather than rejected.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// NormalizePage maps missing or non-positive pages to the first page and clamps
// pages past MaxPage.
func NormalizePage(page int) int {
	if page < 1 {
		return DefaultPage
	}
	if page > MaxPage {
		return MaxPage
	}
	return page
}

// Normalize returns a copy with page and limit clamped into range.
func (p Params) Normalize() Params {
	return Params{Page: NormalizePage(p.Page), Limit: NormalizeLimit(p.Limit)}
}

// Offset returns (page-1)*limit for the normalized params.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Result builds the response page descriptor for a result set of the given size.
func (p Params) Result(count int) Page {
	n := p.Normalize()
	return Page{Page: n.Page, Limit: n.Limit, Count: count}
}
