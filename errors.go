package tsgate

import "errors"

var (
	// ErrNotFound returned by Store implementations when a key or hash
	// field does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStoreRequired returned when constructing a Node without a Store.
	ErrStoreRequired = errors.New("coordination store required")
)
