// Package providers defines the read-only view the sync, matcher and detail
// cache have of an external game platform, and the pieces shared by the
// implementations under this directory.
package providers

import (
	"context"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/sw33tLie/lifescore/pkg/catalog"
	"github.com/sw33tLie/lifescore/pkg/detailcache"
	"github.com/sw33tLie/lifescore/pkg/errs"
	"github.com/sw33tLie/lifescore/pkg/reconcile"
	"github.com/sw33tLie/lifescore/pkg/whttp"
)

// Authorization is what one provider call needs to act for a user.
type Authorization struct {
	AccountID string
	Token     string
}

// Authorizer yields a usable authorization for (user, provider). How the
// credential is obtained or refreshed is not its caller's concern.
type Authorizer interface {
	Authorize(ctx context.Context, userID, source string) (Authorization, error)
}

// Provider is one external platform.
type Provider interface {
	Name() string
	// ListOwned returns every title the account owns or has played.
	ListOwned(ctx context.Context, auth Authorization) ([]reconcile.Signal, error)
	// FetchDetails returns achievement or trophy definitions with the
	// account's earn state for one native title.
	FetchDetails(ctx context.Context, auth Authorization, nativeID string) ([]detailcache.RawItem, error)
	// SystemFor maps a catalog platform id to the provider's system id.
	SystemFor(platform string) (string, bool)
	// SearchSystem lists the titles the provider knows for a system.
	SearchSystem(ctx context.Context, system string) ([]catalog.Candidate, error)
}

// CheckResponse classifies an HTTP response and returns its body when it is
// a usable JSON document.
func CheckResponse(res *whttp.WHTTPRes, source, op string) (string, error) {
	switch {
	case res.StatusCode == 401 || res.StatusCode == 403:
		return "", errs.Wrap(errs.ErrNotAuthenticated, source, op, nil)
	case res.StatusCode == 429:
		return "", errs.Wrap(errs.ErrUpstreamUnavailable, source, op+": rate limited", nil)
	case res.StatusCode >= 300:
		return "", errs.Wrap(errs.ErrUpstreamUnavailable, source, op+": HTTP "+strconv.Itoa(res.StatusCode), nil)
	}
	body := strings.TrimSpace(res.BodyString)
	if body == "" || !gjson.Valid(body) {
		return "", errs.Wrap(errs.ErrMalformedPayload, source, op, nil)
	}
	return body, nil
}

// Send performs a request and wraps transport failures.
func Send(ctx context.Context, req *whttp.WHTTPReq, client *retryablehttp.Client, source, op string) (string, error) {
	res, err := whttp.SendHTTPRequest(ctx, req, client)
	if err != nil {
		return "", errs.Wrap(errs.ErrUpstreamUnavailable, source, op, err)
	}
	return CheckResponse(res, source, op)
}
