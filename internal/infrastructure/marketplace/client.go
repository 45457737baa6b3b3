package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/ports"
	"github.com/kirillkom/flipscout/internal/infrastructure/resilience"
)

const (
	defaultLimit      = 50
	maxImageBytes     = 10 << 20
	defaultTimeout    = 30 * time.Second
	defaultRatePerSec = 5
)

type Options struct {
	BaseURL           string
	Token             string
	RequestsPerSecond float64
	Timeout           time.Duration
	UserAgent         string
}

// Client talks to the marketplace sold-listings API. All requests share one
// limiter so a burst of scans cannot exceed the provider quota.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

var (
	_ ports.SoldListingSource = (*Client)(nil)
	_ ports.ListingFetcher    = (*Client)(nil)
)

func New(opts Options, executor *resilience.Executor) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRatePerSec
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "flipscout/1.0"
	}
	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		userAgent:  opts.UserAgent,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst),
		executor:   executor,
	}
}

type soldItemJSON struct {
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	Condition string  `json:"condition"`
	SoldAt    string  `json:"sold_at"`
	ImageURL  string  `json:"image_url"`
	Shipping  struct {
		Free   bool    `json:"free"`
		Amount float64 `json:"amount"`
	} `json:"shipping"`
}

func (c *Client) SearchSold(ctx context.Context, query ports.SoldQuery) ([]domain.SoldComp, error) {
	keywords := strings.TrimSpace(query.Keywords)
	if keywords == "" {
		return nil, fmt.Errorf("%w: sold search needs keywords", domain.ErrInvalidInput)
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	params := url.Values{}
	params.Set("q", keywords)
	params.Set("limit", strconv.Itoa(limit))
	if query.Category != "" {
		params.Set("category", string(query.Category))
	}

	var resp struct {
		Items []soldItemJSON `json:"items"`
	}
	endpoint := c.baseURL + "/v1/sold?" + params.Encode()
	if err := c.getJSON(ctx, "marketplace.search_sold", endpoint, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.SoldComp, 0, len(resp.Items))
	for _, item := range resp.Items {
		comp := domain.SoldComp{
			Price:     item.Price,
			Condition: item.Condition,
			Title:     item.Title,
			ImageURL:  item.ImageURL,
			Shipping:  domain.Shipping{Free: item.Shipping.Free, Amount: item.Shipping.Amount},
		}
		// Unparseable dates are left zero; aggregation treats them as undated.
		if soldAt, err := time.Parse(time.RFC3339, item.SoldAt); err == nil {
			comp.SoldAt = soldAt
		}
		out = append(out, comp)
	}
	return out, nil
}

func (c *Client) FetchListing(ctx context.Context, rawURL string) (domain.Listing, error) {
	if err := validateURL(rawURL); err != nil {
		return domain.Listing{}, err
	}

	var listing domain.Listing
	endpoint := c.baseURL + "/v1/listings/resolve?" + url.Values{"url": {rawURL}}.Encode()
	if err := c.getJSON(ctx, "marketplace.fetch_listing", endpoint, &listing); err != nil {
		return domain.Listing{}, err
	}
	if listing.URL == "" {
		listing.URL = rawURL
	}
	if strings.TrimSpace(listing.Title) == "" {
		return domain.Listing{}, fmt.Errorf("%w: listing %s has no title", domain.ErrLookupFailed, rawURL)
	}
	return listing, nil
}

func (c *Client) FetchImage(ctx context.Context, rawURL string) ([]byte, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	body, err := resilience.Call(ctx, c.executor, "marketplace.fetch_image", resilience.ClassifyHTTP, func(callCtx context.Context) ([]byte, error) {
		resp, err := c.do(callCtx, "fetch_image", rawURL)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
		if err != nil {
			return nil, eris.Wrap(err, "marketplace: read image")
		}
		if len(data) > maxImageBytes {
			return nil, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidInput, maxImageBytes)
		}
		return data, nil
	})
	if err != nil {
		return nil, resilience.WrapTemporary("marketplace fetch image", err, resilience.ClassifyHTTP)
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, operation, endpoint string, out any) error {
	err := c.execute(ctx, operation, func(callCtx context.Context) error {
		resp, err := c.do(callCtx, operation, endpoint)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return eris.Wrapf(err, "marketplace: decode %s response", operation)
		}
		return nil
	})
	if err != nil {
		return resilience.WrapTemporary(operation, err, resilience.ClassifyHTTP)
	}
	return nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, fn, resilience.ClassifyHTTP)
}

// do waits on the limiter and returns a response with a 2xx status.
// Callers close the body.
func (c *Client) do(ctx context.Context, operation, endpoint string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "marketplace: rate limiter")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "marketplace: create %s request", operation)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketplace %s request: %w", operation, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, resilience.StatusError("marketplace", operation, resp)
	}
	return resp, nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: invalid listing url %q", domain.ErrInvalidInput, rawURL)
	}
	return nil
}
