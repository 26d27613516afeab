package exchange

import "fmt"

// ProtocolError reports a message that is valid JSON but arrives out of
// sequence, e.g. channel data before the snapshot. Terminal for the stream.
type ProtocolError struct {
	Venue    ExchangeID
	Expected string
	Got      string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: protocol violation: expected %q, got %q", e.Venue, e.Expected, e.Got)
}

// DecodeError reports a payload that failed schema validation. Path is the
// offending field, Excerpt the start of the raw payload, Type the name of
// the shape that was expected. Terminal for the stream.
type DecodeError struct {
	Type    string
	Path    string
	Excerpt string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("couldn't decode a %s: %v (at %s) in %q", e.Type, e.Err, e.Path, e.Excerpt)
}

func (e *DecodeError) Unwrap() error { return e.Err }
