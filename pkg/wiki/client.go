// Package wiki is a fail-soft client for the Wikipedia action API, the REST API and the
// Wikimedia pageview metrics. Exported methods never return errors: failures are logged with a
// tag naming the operation and converted to an empty result of the method's type.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"

	"github.com/umputun/wikidaily/pkg/cache"
)

// default endpoints of English Wikipedia
const (
	DefaultAPIURL     = "https://en.wikipedia.org/w/api.php"
	DefaultRESTURL    = "https://en.wikipedia.org/api/rest_v1"
	DefaultMetricsURL = "https://wikimedia.org/api/rest_v1/metrics"
	DefaultProject    = "en.wikipedia"
	DefaultUserAgent  = "wikidaily/1.0 (https://github.com/umputun/wikidaily)"
)

// ErrorLoadingContent is returned by ArticleContent when the article can't be fetched
const ErrorLoadingContent = "Error loading article content."

// FeaturedTitlesKey is the cache key of the featured articles list
const FeaturedTitlesKey = "whatInTheWiki_featuredArticleTitles_v1"

// Params configure Client. Zero values fall back to English Wikipedia defaults.
type Params struct {
	APIURL            string        // MediaWiki action API endpoint
	RESTURL           string        // REST API base, without trailing slash
	MetricsURL        string        // Wikimedia metrics API base
	FeaturedFeedURL   string        // featured article Atom feed, derived from APIURL if empty
	Project           string        // project name for pageview metrics, e.g. en.wikipedia
	UserAgent         string        // Wikimedia policy asks for a descriptive user agent
	Timeout           time.Duration // per-request timeout
	Limiter           *rate.Limiter // request pacing, unlimited if nil
	Cache             cache.Store   // featured titles and article HTML cache, in-memory if nil
	FeaturedTitlesTTL time.Duration // lifetime of the cached featured list, 7 days by default
	ArticleTTL        time.Duration // lifetime of cached article HTML, not cached if zero
}

// Client talks to Wikipedia
type Client struct {
	Params
	httpClient *http.Client
	strict     *bluemonday.Policy
	factHTML   *bluemonday.Policy
}

// New makes a client with defaults applied to empty params
func New(p Params) *Client {
	if p.APIURL == "" {
		p.APIURL = DefaultAPIURL
	}
	if p.RESTURL == "" {
		p.RESTURL = DefaultRESTURL
	}
	if p.MetricsURL == "" {
		p.MetricsURL = DefaultMetricsURL
	}
	if p.FeaturedFeedURL == "" {
		p.FeaturedFeedURL = p.APIURL + "?action=featuredfeed&feed=featured&feedformat=atom"
	}
	if p.Project == "" {
		p.Project = DefaultProject
	}
	if p.UserAgent == "" {
		p.UserAgent = DefaultUserAgent
	}
	if p.Timeout == 0 {
		p.Timeout = 30 * time.Second
	}
	if p.Limiter == nil {
		p.Limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if p.Cache == nil {
		p.Cache = cache.NewMemory()
	}
	if p.FeaturedTitlesTTL == 0 {
		p.FeaturedTitlesTTL = 7 * 24 * time.Hour
	}

	factHTML := bluemonday.NewPolicy()
	factHTML.AllowElements("b", "i", "em", "strong")
	factHTML.AllowAttrs("href", "title").OnElements("a")
	factHTML.AllowRelativeURLs(true)
	factHTML.AllowURLSchemes("http", "https")

	return &Client{
		Params: p,
		httpClient: &http.Client{
			Timeout: p.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		strict:   bluemonday.StrictPolicy(),
		factHTML: factHTML,
	}
}

// fetch issues a GET and returns the body of a 2xx response
func (c *Client) fetch(ctx context.Context, u, accept string) (io.ReadCloser, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, u)
	}
	return resp.Body, nil
}

// getJSON fetches u and decodes the JSON body into v
func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	body, err := c.fetch(ctx, u, "application/json")
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}

// apiError is the error envelope of the action API, returned with status 200
type apiError struct {
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// query calls the action API with JSON format version 2 and decodes the response into v
func (c *Client) query(ctx context.Context, params url.Values, v any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("origin", "*")

	var raw json.RawMessage
	if err := c.getJSON(ctx, c.APIURL+"?"+params.Encode(), &raw); err != nil {
		return err
	}

	var apiErr apiError
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != nil {
		return fmt.Errorf("api error %s: %s", apiErr.Error.Code, apiErr.Error.Info)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s response: %w", params.Get("action"), err)
	}
	return nil
}

// restURL joins the REST base with path segments, escaping each of them
func (c *Client) restURL(base string, segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.Join(escaped, "/")
}

// stripTags turns an HTML fragment into plain text
func (c *Client) stripTags(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(c.strict.Sanitize(s))), " ")
}

// titleParam converts a display title to the underscore form used in REST paths
func titleParam(title string) string {
	return strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
}

func logFail(tag string, err error) {
	lgr.Printf("[WARN] %s: %v", tag, err)
}

// ArticleBaseURL returns the /wiki/ article path of the site serving the action API at apiURL
func ArticleBaseURL(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return "https://en.wikipedia.org/wiki/"
	}
	return u.Scheme + "://" + u.Host + "/wiki/"
}
