package providers

import (
	"context"
	"strconv"

	"github.com/sw33tLie/lifescore/pkg/catalog"
	"github.com/sw33tLie/lifescore/pkg/detailcache"
	"github.com/sw33tLie/lifescore/pkg/errs"
)

// MappingLister lists the provider mappings of a release.
type MappingLister interface {
	ListMappings(ctx context.Context, releaseID int64) ([]catalog.Mapping, error)
}

// DetailFetcher adapts providers to detailcache.Fetcher: it follows the
// release's mappings to the first provider the user has linked.
type DetailFetcher struct {
	Mappings   MappingLister
	Providers  map[string]Provider
	Authorizer Authorizer
	// Preference orders sources when a release is mapped on several.
	// Sources not listed come after, in mapping order.
	Preference []string
}

func (f *DetailFetcher) FetchDetails(ctx context.Context, userID string, releaseID int64) ([]detailcache.RawItem, error) {
	mappings, err := f.Mappings.ListMappings(ctx, releaseID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrPersistence, "list mappings", strconv.FormatInt(releaseID, 10), err)
	}
	if len(mappings) == 0 {
		return nil, errs.Wrap(errs.ErrNoSearchResults, "details", "release "+strconv.FormatInt(releaseID, 10)+" has no provider mapping", nil)
	}

	var lastErr error
	for _, m := range f.order(mappings) {
		p, ok := f.Providers[m.Source]
		if !ok {
			continue
		}
		auth, err := f.Authorizer.Authorize(ctx, userID, m.Source)
		if err != nil {
			lastErr = err
			continue
		}
		return p.FetchDetails(ctx, auth, m.NativeID)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errs.Wrap(errs.ErrUnsupportedPlatform, "details", "no configured provider for release "+strconv.FormatInt(releaseID, 10), nil)
}

func (f *DetailFetcher) order(mappings []catalog.Mapping) []catalog.Mapping {
	out := make([]catalog.Mapping, 0, len(mappings))
	used := make([]bool, len(mappings))
	for _, src := range f.Preference {
		for i, m := range mappings {
			if !used[i] && m.Source == src {
				out = append(out, m)
				used[i] = true
			}
		}
	}
	for i, m := range mappings {
		if !used[i] {
			out = append(out, m)
		}
	}
	return out
}
