package sentinel

import "errors"

// Sentinel errors for storage facts. Session stores return these (optionally
// wrapped) and the session service translates them into domain errors:
//   - ErrNotFound: no session with that ID, or it expired
//   - ErrConflict: the session changed underneath an optimistic update
//   - ErrUnavailable: the backing store could not be reached
//
// Validation failures are not errors at this layer; see pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
