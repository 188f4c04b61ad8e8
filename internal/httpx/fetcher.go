package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultUserAgent    = "tabscrape/1.0"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 10 * 1024 * 1024
)

// Result is a completed GET response. It is not modified after Fetch returns.
type Result struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher issues a single GET per call. Implementations never retry.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, query map[string]string) (*Result, error)
}

// Options configures both fetcher backends.
type Options struct {
	UserAgent     string
	Timeout       time.Duration
	MaxBodyBytes  int
	RespectRobots bool
}

// WithDefaults returns a copy with zero-value fields filled in.
func (o Options) WithDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return o
}

// ErrRobotsDisallowed is wrapped by NetworkError when robots.txt refuses the path.
var ErrRobotsDisallowed = errors.New("blocked by robots.txt")

// NetworkError reports a failed fetch: transport failure, timeout, robots refusal, or a
// non-2xx status. Status is 0 when no response was received.
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s (status %d): %v", e.URL, e.Status, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the fetch failed because a deadline passed.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(e.Err, &te) && te.Timeout()
}

func checkStatus(target string, status int) error {
	if status >= 200 && status <= 299 {
		return nil
	}
	return &NetworkError{URL: target, Status: status, Err: errors.New(strings.ToLower(http.StatusText(status)))}
}

// BuildURL applies query on top of rawURL's existing query string. A missing scheme
// defaults to https.
func BuildURL(rawURL string, query map[string]string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", errors.New("empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + rawURL)
		if err != nil {
			return "", err
		}
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

const (
	BackendColly = "colly"
	BackendResty = "resty"
)

// New returns the fetcher for backend; an empty backend selects Colly.
func New(backend string, opts Options) (Fetcher, error) {
	switch strings.ToLower(backend) {
	case "", BackendColly:
		return NewCollyFetcher(opts), nil
	case BackendResty:
		return NewRestyFetcher(opts), nil
	default:
		return nil, fmt.Errorf("unknown fetch backend %q", backend)
	}
}
