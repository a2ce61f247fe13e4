package scraper

import "fmt"

// ParseError means expected markup was not on the page.
type ParseError struct {
	URL   string
	Field string
	Msg   string
}

func (e *ParseError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("parse %s of %s: %s", e.Field, e.URL, e.Msg)
	}
	return fmt.Sprintf("parse %s: %s", e.Field, e.Msg)
}
