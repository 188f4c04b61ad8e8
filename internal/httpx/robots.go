package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/temoto/robotstxt"
)

type getFunc func(ctx context.Context, target string) (*Result, error)

// checkRobots fetches robots.txt for target's host and refuses disallowed paths.
// Nothing is cached: every call re-reads robots.txt. Unreachable robots.txt fails open.
func checkRobots(ctx context.Context, get getFunc, target, userAgent string) error {
	u, err := url.Parse(target)
	if err != nil {
		return &NetworkError{URL: target, Err: err}
	}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)

	res, err := get(ctx, robotsURL)
	if err != nil {
		var ne *NetworkError
		if errors.As(err, &ne) && (errors.Is(ne.Err, context.Canceled) || ne.Timeout()) {
			return err
		}
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(res.StatusCode, res.Body)
	if err != nil {
		return nil
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	if !data.TestAgent(path, userAgent) {
		return &NetworkError{URL: target, Err: ErrRobotsDisallowed}
	}
	return nil
}
