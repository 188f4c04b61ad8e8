package httpx

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gocolly/colly/v2"
)

// CollyFetcher fetches pages with a fresh Colly collector per call, so no cookies,
// visited-URL sets or robots data carry over between calls.
type CollyFetcher struct {
	opts Options
}

func NewCollyFetcher(opts Options) *CollyFetcher {
	return &CollyFetcher{opts: opts.WithDefaults()}
}

func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string, query map[string]string) (*Result, error) {
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

// get performs the request without judging the status code.
func (f *CollyFetcher) get(ctx context.Context, target string) (*Result, error) {
	c := f.newCollector(ctx)

	var (
		res    *Result
		reqErr error
		status int
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		if len(r.Body) > f.opts.MaxBodyBytes {
			reqErr = fmt.Errorf("body exceeds %d bytes", f.opts.MaxBodyBytes)
			return
		}
		res = &Result{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: decodedContentType(r.Headers.Get("Content-Type")),
			Body:        append([]byte(nil), r.Body...),
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		reqErr = err
	})

	if err := c.Request(http.MethodGet, target, nil, nil, nil); err != nil {
		return nil, &NetworkError{URL: target, Err: err}
	}
	if reqErr != nil {
		return nil, &NetworkError{URL: target, Status: status, Err: reqErr}
	}
	if res == nil {
		return nil, &NetworkError{URL: target, Err: errNoResponse}
	}
	return res, nil
}

func (f *CollyFetcher) newCollector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(f.opts.UserAgent),
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)
	// robots.txt is evaluated by checkRobots when enabled.
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	c.DetectCharset = false
	// One byte over the cap lets OnResponse tell an oversized body from one that fits;
	// colly itself truncates silently.
	c.MaxBodySize = f.opts.MaxBodyBytes + 1
	c.SetRequestTimeout(f.opts.Timeout)
	return c
}

// decodedContentType rewrites the charset of a body colly has already transcoded.
// Colly converts every declared non-UTF-8 charset (media types aside) to UTF-8 before
// OnResponse runs, so the header charset no longer describes the bytes.
func decodedContentType(contentType string) string {
	lower := strings.ToLower(contentType)
	if !strings.Contains(lower, "charset") || strings.Contains(lower, "utf-8") || strings.Contains(lower, "utf8") {
		return contentType
	}
	for _, media := range []string{"image/", "video/", "audio/", "font/"} {
		if strings.Contains(lower, media) {
			return contentType
		}
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(mediaType) + "; charset=utf-8"
}
