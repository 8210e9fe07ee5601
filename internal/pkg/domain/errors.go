package domain

import "fmt"

// NetworkError signals that a request to an upstream service could
// not be completed.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %s", e.URL, e.Err.Error())
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ParseError signals that an upstream service responded with a body
// that could not be decoded.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to decode response from %s: %s", e.URL, e.Err.Error())
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
