package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches and index adapters return
// these (optionally wrapped) so the claim services can branch on them with errors.Is.
//
// These describe the state of a resource, not validation failures:
// - ErrNotFound: record does not exist in the store or index
// - ErrConflict: a compare-and-set write lost against a concurrent writer
// - ErrInvalidState: record is in the wrong claim state for the requested operation
// - ErrUnavailable: backing service temporarily unavailable (timeouts included)
// - ErrMisconfigured: a deployment setting the service cannot run without is missing
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidState  = errors.New("invalid state")
	ErrUnavailable   = errors.New("unavailable")
	ErrMisconfigured = errors.New("misconfigured")
)
