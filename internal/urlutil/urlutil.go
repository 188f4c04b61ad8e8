package urlutil

import (
	"errors"
	"net/url"
	"strings"
)

// Host returns the lowercased host of raw without a leading "www.", so that
// example.com and WWW.Example.com share rate limits. A missing scheme means https.
func Host(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		if u, err = url.Parse("https://" + raw); err != nil {
			return "", err
		}
	}
	if u.Host == "" {
		return "", errors.New("url has no host")
	}
	return normalizeHost(u.Host), nil
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	return host
}
