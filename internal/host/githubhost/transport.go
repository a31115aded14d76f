package githubhost

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// newRetryingHTTPClient returns an *http.Client whose transport retries
// GitHub server-class failures (5xx) with exponential backoff: a 1s start,
// factor-2 scale, up to 5 attempts (spec.md §4.4's GitHub-specific retry
// contract). Client/auth errors (4xx) are never retried.
func newRetryingHTTPClient(base http.RoundTripper) *http.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient.Transport = base
	client.RetryWaitMin = time.Second
	client.RetryWaitMax = 16 * time.Second
	client.RetryMax = 4 // retries after the first attempt: 5 attempts in all
	client.Logger = nil
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err != nil {
			return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		}
		if resp == nil {
			return true, nil
		}
		return resp.StatusCode >= 500, nil
	}
	return client.StandardClient()
}
