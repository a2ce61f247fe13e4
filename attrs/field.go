package attrs

import "fmt"

// Status is the outcome of extracting one field.
type Status int

const (
	// Parsed means Value holds the extracted value.
	Parsed Status = iota
	// Skipped means the field is not on the page. Not an error.
	Skipped
	// Fatal means the field is on the page but its text does not parse.
	Fatal
)

func (s Status) String() string {
	switch s {
	case Parsed:
		return "parsed"
	case Skipped:
		return "skipped"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type Field[T any] struct {
	Status Status
	Value  T
	Reason string
}

func parsed[T any](v T) Field[T] {
	return Field[T]{Status: Parsed, Value: v}
}

func skipped[T any](reason string) Field[T] {
	return Field[T]{Status: Skipped, Reason: reason}
}

func fatal[T any](format string, args ...any) Field[T] {
	return Field[T]{Status: Fatal, Reason: fmt.Sprintf(format, args...)}
}

// Get returns the value and whether the field parsed.
func (f Field[T]) Get() (T, bool) {
	return f.Value, f.Status == Parsed
}

// ParseError is a field that was present but unreadable. It aborts the
// feature table build.
type ParseError struct {
	ListingID string
	Field     string
	Text      string
	Reason    string
}

func (e *ParseError) Error() string {
	if e.ListingID == "" {
		return fmt.Sprintf("parse %s from %q: %s", e.Field, e.Text, e.Reason)
	}
	return fmt.Sprintf("listing %s: parse %s from %q: %s", e.ListingID, e.Field, e.Text, e.Reason)
}
