package github

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when decoding a Result that has no body.
var ErrEmptyResponse = errors.New("empty API response")

// Result is the outcome of a GET. A transport or HTTP failure produces an
// empty Result; Err keeps the cause for logging.
type Result struct {
	Body []byte
	Err  error
}

// Empty reports whether the call produced no body.
func (r Result) Empty() bool {
	return len(r.Body) == 0
}

// Decode unmarshals the body into v. Decoding an empty Result fails with
// ErrEmptyResponse wrapping the transport error, if any.
func (r Result) Decode(v any) error {
	if r.Empty() {
		if r.Err != nil {
			return fmt.Errorf("%w: %w", ErrEmptyResponse, r.Err)
		}
		return ErrEmptyResponse
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding API response: %w", err)
	}
	return nil
}
