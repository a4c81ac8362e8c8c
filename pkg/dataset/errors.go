package dataset

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFetchFailed       = errors.New("dataset fetch failed")
	ErrMalformed         = errors.New("malformed dataset content")
)

// LoadError is returned by Store.Load. The previous snapshot stays active.
type LoadError struct {
	Source Source
	Op     string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
