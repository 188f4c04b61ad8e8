// Package batch runs many fetches for one caller: a bounded concurrent fan-out and a
// sequential offset pager.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/baxromumarov/tabscrape/internal/httpx"
	"github.com/baxromumarov/tabscrape/internal/urlutil"
)

const (
	DefaultConcurrency = 4
	DefaultLimit       = 1000
)

// Request is one URL plus query parameters.
type Request struct {
	URL   string
	Query map[string]string
}

// Options bound a batch. Limiters are created per call and per host, so two batches never
// share rate state.
type Options struct {
	Concurrency int
	// RatePerSecond caps requests per host; zero disables limiting.
	RatePerSecond float64
	Burst         int
	Logger        *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

type hostLimiters struct {
	mu       sync.Mutex
	every    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func (h *hostLimiters) wait(ctx context.Context, rawURL string) error {
	if h == nil {
		return nil
	}
	host, err := urlutil.Host(rawURL)
	if err != nil {
		host = rawURL
	}
	h.mu.Lock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.every, h.burst)
		h.limiters[host] = l
	}
	h.mu.Unlock()
	return l.Wait(ctx)
}

// FetchAll fetches every request and returns results in request order. The first failure
// cancels the remaining fetches and is returned alone.
func FetchAll(ctx context.Context, f httpx.Fetcher, reqs []Request, opts Options) ([]*httpx.Result, error) {
	opts = opts.withDefaults()
	results := make([]*httpx.Result, len(reqs))
	if len(reqs) == 0 {
		return results, nil
	}

	var limiters *hostLimiters
	if opts.RatePerSecond > 0 {
		limiters = &hostLimiters{
			every:    rate.Limit(opts.RatePerSecond),
			burst:    opts.Burst,
			limiters: map[string]*rate.Limiter{},
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	start := time.Now()
	for i, req := range reqs {
		g.Go(func() error {
			if err := limiters.wait(ctx, req.URL); err != nil {
				return err
			}
			res, err := f.Fetch(ctx, req.URL, req.Query)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		opts.Logger.Warn("batch fetch failed", "requests", len(reqs), "error", err)
		return nil, err
	}
	opts.Logger.Debug("batch fetch done", "requests", len(reqs), "took", time.Since(start))
	return results, nil
}

// PageOptions configure offset paging. Parameter names default to the Socrata
// convention.
type PageOptions struct {
	Limit       int
	MaxPages    int
	LimitParam  string
	OffsetParam string
}

func (o PageOptions) withDefaults() PageOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.LimitParam == "" {
		o.LimitParam = "$limit"
	}
	if o.OffsetParam == "" {
		o.OffsetParam = "$offset"
	}
	return o
}

// PageFunc consumes one page and reports how many rows it held.
type PageFunc func(page int, res *httpx.Result) (int, error)

// Pages fetches rawURL page by page until a page holds fewer than Limit rows or
// MaxPages (when positive) pages have been read. It returns the number of pages read.
func Pages(ctx context.Context, f httpx.Fetcher, rawURL string, query map[string]string, opts PageOptions, fn PageFunc) (int, error) {
	opts = opts.withDefaults()
	for page := 0; ; page++ {
		if opts.MaxPages > 0 && page >= opts.MaxPages {
			return page, nil
		}
		if err := ctx.Err(); err != nil {
			return page, err
		}

		q := make(map[string]string, len(query)+2)
		for k, v := range query {
			q[k] = v
		}
		q[opts.LimitParam] = strconv.Itoa(opts.Limit)
		q[opts.OffsetParam] = strconv.Itoa(page * opts.Limit)

		res, err := f.Fetch(ctx, rawURL, q)
		if err != nil {
			return page, fmt.Errorf("page %d: %w", page, err)
		}
		n, err := fn(page, res)
		if err != nil {
			return page + 1, fmt.Errorf("page %d: %w", page, err)
		}
		if n < opts.Limit {
			return page + 1, nil
		}
	}
}
