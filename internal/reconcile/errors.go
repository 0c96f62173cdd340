package reconcile

import "errors"

// ErrDecode marks a data point whose value does not fit its descriptor.
var ErrDecode = errors.New("reconcile: decode error")
