package errs

import "sort"

// MaxReportedErrors bounds the error list returned by batch operations.
const MaxReportedErrors = 25

// ItemError is one recorded per-item failure in a batch result.
type ItemError struct {
	Title   string `json:"title"`
	Reason  string `json:"reason"`
	Details string `json:"details,omitempty"`

	rank  int
	order int
}

// Report collects per-item errors and keeps the total count even after the
// visible list is truncated.
type Report struct {
	items []ItemError
	total int
}

// Add records err against the item title.
func (r *Report) Add(title string, err error) {
	if err == nil {
		return
	}
	r.items = append(r.items, ItemError{
		Title:   title,
		Reason:  Reason(err),
		Details: err.Error(),
		rank:    Rank(err),
		order:   r.total,
	})
	r.total++
}

// Total is the number of errors recorded, including truncated ones.
func (r *Report) Total() int { return r.total }

// Items returns at most MaxReportedErrors errors, most informative first,
// preserving arrival order within the same rank.
func (r *Report) Items() []ItemError {
	out := make([]ItemError, len(r.items))
	copy(out, r.items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].rank != out[j].rank {
			return out[i].rank < out[j].rank
		}
		return out[i].order < out[j].order
	})
	if len(out) > MaxReportedErrors {
		out = out[:MaxReportedErrors]
	}
	return out
}
