package observability

import (
	"context"
	"errors"
	"net/http"

	"github.com/baxromumarov/tabscrape/internal/document"
	"github.com/baxromumarov/tabscrape/internal/extract"
	"github.com/baxromumarov/tabscrape/internal/httpx"
	"github.com/baxromumarov/tabscrape/internal/table"
)

const (
	ErrorNetwork        = "network"
	ErrorTimeout        = "timeout"
	ErrorRateLimit      = "rate_limit"
	ErrorRobots         = "robots"
	ErrorMalformedInput = "malformed_input"
	ErrorPathNotFound   = "path_not_found"
	ErrorSelectorMatch  = "selector_match"
	ErrorColumnLength   = "column_length_mismatch"
	ErrorCanceled       = "canceled"
	ErrorUnknown        = "unknown"
)

// ClassifyError maps an error from any stage to an error kind label.
func ClassifyError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	if errors.Is(err, httpx.ErrRobotsDisallowed) {
		return ErrorRobots
	}
	var ne *httpx.NetworkError
	if errors.As(err, &ne) {
		switch {
		case ne.Status == http.StatusTooManyRequests:
			return ErrorRateLimit
		case ne.Timeout():
			return ErrorTimeout
		default:
			return ErrorNetwork
		}
	}

	var (
		mi *document.MalformedInputError
		pn *extract.PathNotFoundError
		sm *extract.SelectorMatchError
	)
	switch {
	case errors.As(err, &mi):
		return ErrorMalformedInput
	case errors.As(err, &pn):
		return ErrorPathNotFound
	case errors.As(err, &sm):
		return ErrorSelectorMatch
	case errors.Is(err, table.ErrColumnLengthMismatch):
		return ErrorColumnLength
	case errors.Is(err, context.Canceled):
		return ErrorCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTimeout
	}
	return ErrorUnknown
}
