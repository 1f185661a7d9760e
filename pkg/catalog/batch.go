package catalog

import (
	"context"
	"strconv"

	"github.com/sw33tLie/lifescore/pkg/errs"
)

const defaultBatchLimit = 100

// BatchOptions selects the releases a batch run walks.
type BatchOptions struct {
	Searcher Searcher
	// Cursor is the opaque value returned by a previous run; empty starts
	// from the beginning.
	Cursor   string
	Platform string
	Limit    int
}

// BatchItem pairs a release with its match outcome.
type BatchItem struct {
	ReleaseID int64       `json:"release_id"`
	Title     string      `json:"title"`
	Result    MatchResult `json:"result"`
}

// BatchResult summarizes one MapBatch run.
type BatchResult struct {
	Processed     int              `json:"processed"`
	Mapped        int              `json:"mapped"`
	AlreadyMapped int              `json:"already_mapped"`
	Unmatched     int              `json:"unmatched"`
	Items         []BatchItem      `json:"items"`
	Errors        []errs.ItemError `json:"errors"`
	ErrorCount    int              `json:"error_count"`
	Cursor        string           `json:"cursor"`
}

// MapBatch maps releases to the searcher's titles one at a time, in id
// order, starting after opts.Cursor. Per-release failures are recorded and
// the run continues; authentication failures and cancellation stop it, and
// the partial result still carries a cursor for resuming.
//
// Candidate lists are fetched once per system for the duration of the run.
// Failed fetches are not remembered.
func (m *Matcher) MapBatch(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	after, err := decodeCursor(opts.Cursor)
	if err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultBatchLimit
	}

	releases, err := m.Store.ListReleasesAfter(ctx, after, opts.Platform, limit)
	if err != nil {
		return nil, errs.Wrap(errs.ErrPersistence, "list releases", "", err)
	}

	s := &cachingSearcher{Searcher: opts.Searcher, lists: make(map[string][]Candidate)}
	result := &BatchResult{Items: []BatchItem{}, Cursor: opts.Cursor}
	var report errs.Report
	defer func() {
		result.Errors = report.Items()
		result.ErrorCount = report.Total()
	}()

	for _, r := range releases {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res, err := m.MapRelease(ctx, r, s)
		result.Cursor = encodeCursor(r.ID)
		result.Processed++
		if err != nil {
			if errs.IsFatal(err) {
				return result, err
			}
			m.log().Warnf("Mapping %q failed: %v", r.Title, err)
			report.Add(r.Title, err)
			continue
		}
		switch {
		case res.Existing:
			result.AlreadyMapped++
		case res.Mapped:
			result.Mapped++
		default:
			result.Unmatched++
		}
		result.Items = append(result.Items, BatchItem{ReleaseID: r.ID, Title: r.Title, Result: res})
	}
	return result, nil
}

type cachingSearcher struct {
	Searcher
	lists map[string][]Candidate
}

func (c *cachingSearcher) SearchSystem(ctx context.Context, system string) ([]Candidate, error) {
	if list, ok := c.lists[system]; ok {
		return list, nil
	}
	list, err := c.Searcher.SearchSystem(ctx, system)
	if err != nil {
		return nil, err
	}
	c.lists[system] = list
	return list, nil
}

func encodeCursor(id int64) string {
	return strconv.FormatInt(id, 36)
}

func decodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(cursor, 36, 64)
	if err != nil {
		return 0, errs.Wrap(errs.ErrDataIntegrity, "decode cursor", cursor, err)
	}
	return id, nil
}
