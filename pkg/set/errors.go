package set

import "errors"

// ErrEmpty is returned by Take/Pop when the set has no elements.
var ErrEmpty = errors.New("cannot take from an empty set")
