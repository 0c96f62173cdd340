package attribute

import "errors"

var (
	// ErrNotFound is returned when setting an attribute that does not exist.
	ErrNotFound = errors.New("attribute: not found")

	// ErrInvalidName is returned for an empty attribute name.
	ErrInvalidName = errors.New("attribute: name is required")
)
