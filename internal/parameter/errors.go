package parameter

import "errors"

// ErrUnknownFamily is returned for an unrecognised device family.
var ErrUnknownFamily = errors.New("parameter: unknown device family")
