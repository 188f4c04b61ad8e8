package httpx

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

var errNoResponse = errors.New("no response received")

// RestyFetcher is a plain API client for JSON and CSV endpoints.
type RestyFetcher struct {
	opts   Options
	client *resty.Client
}

func NewRestyFetcher(opts Options) *RestyFetcher {
	opts = opts.WithDefaults()
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetRetryCount(0)
	return &RestyFetcher{opts: opts, client: client}
}

func (f *RestyFetcher) Fetch(ctx context.Context, rawURL string, query map[string]string) (*Result, error) {
	target, err := BuildURL(rawURL, query)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	if f.opts.RespectRobots {
		if err := checkRobots(ctx, f.get, target, f.opts.UserAgent); err != nil {
			return nil, err
		}
	}

	res, err := f.get(ctx, target)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(target, res.StatusCode); err != nil {
		return nil, err
	}
	return res, nil
}

func (f *RestyFetcher) get(ctx context.Context, target string) (*Result, error) {
	resp, err := f.client.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, &NetworkError{URL: target, Err: err}
	}
	if resp == nil || resp.RawResponse == nil {
		return nil, &NetworkError{URL: target, Err: errNoResponse}
	}
	body := resp.Body()
	if len(body) > f.opts.MaxBodyBytes {
		return nil, &NetworkError{
			URL:    target,
			Status: resp.StatusCode(),
			Err:    fmt.Errorf("body exceeds %d bytes", f.opts.MaxBodyBytes),
		}
	}
	return &Result{
		URL:         resp.RawResponse.Request.URL.String(),
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        body,
	}, nil
}
