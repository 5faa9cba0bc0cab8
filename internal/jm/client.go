// Package jm is a pure-Go client for the JM comic API: metadata
// queries, site search, cover fetching and the image download + PDF
// pipeline. Requests carry the app token headers and responses are
// AES-encrypted; see crypto.go.
package jm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrNotFound marks a missing album or chapter, as opposed to a
// transient upstream failure.
var ErrNotFound = errors.New("jm: album not found")

type Options struct {
	CacheDir string
	Proxy    string // "system", "none", or a proxy URL
	Threads  int    // image download workers per chapter
	Username string
	Password string
	Debug    bool
	Logger   *log.Logger
}

type Client struct {
	opts Options
	log  *log.Logger

	httpClient *http.Client

	limiter *rate.Limiter
	covers  *semaphore.Weighted
	cache   *ristretto.Cache[string, *PhotoDetail]

	domains *domainSet
}

func NewClient(opts Options) (*Client, error) {
	if opts.Threads <= 0 {
		opts.Threads = 10
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	transport, err := newTransport(opts.Proxy)
	if err != nil {
		return nil, err
	}
	jar, _ := cookiejar.New(nil)
	cache, err := ristretto.NewCache(&ristretto.Config[string, *PhotoDetail]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create metadata cache: %w", err)
	}
	return &Client{
		opts: opts,
		log:  opts.Logger,
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Jar:       jar,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Every(300*time.Millisecond), 5),
		covers:  semaphore.NewWeighted(10),
		cache:   cache,
		domains: newDomainSet(),
	}, nil
}

type apiError struct {
	Code int64
	Msg  string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("jm api error: code=%d msg=%s", e.Code, e.Msg)
}

// reqAPI performs one decrypted API call, rotating over the known API
// domains. The whole rotation is retried once more on failure,
// mirroring the upstream client's retry_times=1.
func (c *Client) reqAPI(ctx context.Context, path string, query map[string]string) (map[string]any, error) {
	c.domains.ensure(ctx, c.httpClient)

	var result map[string]any
	op := func() error {
		m, err := c.reqAPIOnce(ctx, path, query)
		if err != nil {
			var apiErr *apiError
			if errors.As(err, &apiErr) {
				// The source reports missing content as an API-level
				// error; retrying cannot help.
				return backoff.Permanent(err)
			}
			return err
		}
		result = m
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) reqAPIOnce(ctx context.Context, path string, query map[string]string) (map[string]any, error) {
	var lastErr error
	for _, domain := range c.domains.api() {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		ts := strconv.FormatInt(time.Now().Unix(), 10)

		u, err := url.Parse("https://" + domain + path)
		if err != nil {
			lastErr = err
			continue
		}
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			lastErr = err
			continue
		}
		setAPIHeaders(req, ts)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("jm api %s: status=%d", path, resp.StatusCode)
			continue
		}
		if c.opts.Debug {
			c.log.Debug("jm api response", "url", u.String(), "bytes", len(raw))
		}

		model, err := decodeAPIResponse(raw, ts)
		if err != nil {
			var apiErr *apiError
			if errors.As(err, &apiErr) {
				return nil, err
			}
			lastErr = err
			continue
		}
		return model, nil
	}
	if lastErr == nil {
		lastErr = errors.New("jm api: all domains failed")
	}
	return nil, lastErr
}

// GetPhotoDetail fetches album metadata, serving repeated lookups from
// the in-process cache.
func (c *Client) GetPhotoDetail(ctx context.Context, id string) (*PhotoDetail, error) {
	id = NormalizeID(id)
	if id == "" {
		return nil, ErrNotFound
	}
	if detail, ok := c.cache.Get(id); ok {
		return detail, nil
	}
	data, err := c.reqAPI(ctx, "/album", map[string]string{"id": id})
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: jm%s", ErrNotFound, id)
		}
		return nil, err
	}
	detail := parsePhotoDetail(data)
	if detail.ID == "" {
		return nil, fmt.Errorf("%w: jm%s", ErrNotFound, id)
	}
	c.cache.SetWithTTL(detail.ID, detail, 1, 10*time.Minute)
	return detail, nil
}

// SearchSite runs a page-1 site search. A numeric query that the source
// resolves directly comes back as a single-result page.
func (c *Client) SearchSite(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("jm: empty search query")
	}
	data, err := c.reqAPI(ctx, "/search", map[string]string{
		"main_tag":     "0",
		"search_query": query,
		"page":         "1",
		"o":            "mr",
		"t":            "a",
	})
	if err != nil {
		return nil, err
	}
	return parseSearchPage(data), nil
}

// Login authenticates with the configured credentials so that
// restricted albums resolve. The client stays usable anonymously when
// this fails.
func (c *Client) Login(ctx context.Context) error {
	if c.opts.Username == "" {
		return errors.New("jm: no credentials configured")
	}
	c.domains.ensure(ctx, c.httpClient)

	form := url.Values{}
	form.Set("username", c.opts.Username)
	form.Set("password", c.opts.Password)

	var lastErr error
	for _, domain := range c.domains.api() {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			"https://"+domain+"/login", strings.NewReader(form.Encode()))
		if err != nil {
			lastErr = err
			continue
		}
		setAPIHeaders(req, ts)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("jm login: status=%d", resp.StatusCode)
			continue
		}
		if _, err := decodeAPIResponse(raw, ts); err != nil {
			lastErr = err
			continue
		}
		c.log.Info("JM登录成功", "username", c.opts.Username)
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("jm login: all domains failed")
	}
	return lastErr
}
