package extract

import (
	"fmt"

	"github.com/baxromumarov/tabscrape/internal/selector"
)

// SelectorMatchError reports a selector that matched nothing where a match was required,
// or that cannot apply to the document it was given.
type SelectorMatchError struct {
	Selector string
	Reason   string
}

func (e *SelectorMatchError) Error() string {
	return fmt.Sprintf("selector %s: %s", e.Selector, e.Reason)
}

// PathNotFoundError reports where a JSON path walk stopped. Segment is the index into
// Path of the step that failed.
type PathNotFoundError struct {
	Path    selector.Path
	Segment int
	Reason  string
}

func (e *PathNotFoundError) Error() string {
	at := selector.Path{}
	if e.Segment < len(e.Path) {
		at = e.Path[:e.Segment+1]
	}
	return fmt.Sprintf("json path %s: %s at %s", e.Path, e.Reason, at)
}
