package domain

import "errors"

// ErrDataUnavailable indicates the backing catalog or manifold data is missing
// or corrupt. Callers must be able to tell this apart from a legitimate
// zero-song result.
var ErrDataUnavailable = errors.New("tapestry data unavailable")

// ErrNotFound indicates a requested entry does not exist in the store.
var ErrNotFound = errors.New("not found")
