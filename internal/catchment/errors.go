package catchment

import "errors"

// Sentinel errors for the resolver taxonomy. Callers match with errors.Is;
// the HTTP layer maps them to 400/404/503.
var (
	// ErrInvalidQuery covers malformed or out-of-range input: bad radius,
	// missing coordinates, missing catchment kind. Caller-fixable.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNotFound means a referenced record (school, address point) does not
	// exist. An empty result set is not ErrNotFound.
	ErrNotFound = errors.New("record not found")

	// ErrStorageUnavailable means the store or its spatial index could not be
	// reached. Transient; propagated rather than degraded to a full scan.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
