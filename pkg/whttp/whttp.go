package whttp

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
)

const UserAgent = "lifescore/1.0 (+https://github.com/sw33tLie/lifescore)"

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Query   url.Values
	Headers []WHTTPHeader
}

type WHTTPRes struct {
	StatusCode     int
	ResponseLength int
	BodyString     string
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	// RetryMax is zero by default: provider failures surface immediately.
	RetryMax int
	Timeout  time.Duration
	Proxy    string
}

// NewClient builds a retryable client that hands non-2xx responses back to
// the caller instead of turning them into errors.
func NewClient(opts ClientOptions) (*retryablehttp.Client, error) {
	client := retryablehttp.NewClient()
	client.Logger = log.New(io.Discard, "", 0)
	client.RetryMax = opts.RetryMax
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Timeout > 0 {
		client.HTTPClient.Timeout = opts.Timeout
	} else {
		client.HTTPClient.Timeout = 30 * time.Second
	}
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %v", err)
		}
		client.HTTPClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	return client, nil
}

var defaultClient, _ = NewClient(ClientOptions{})

func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (*WHTTPRes, error) {
	if client == nil {
		client = defaultClient
	}
	method := wReq.Method
	if method == "" {
		method = http.MethodGet
	}

	target := wReq.URL
	if len(wReq.Query) > 0 {
		target += "?" + wReq.Query.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en")
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes := &WHTTPRes{
		StatusCode: resp.StatusCode,
		BodyString: string(bodyBytes),
	}
	wRes.ResponseLength = utf8.RuneCountInString(wRes.BodyString)
	return wRes, nil
}
