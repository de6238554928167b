package serialize

import "errors"

// --------------------------------------------------------------------------
// Error Taxonomy
// --------------------------------------------------------------------------

var (
	// ErrAllocationFailed - a shared buffer required by a conversion could
	// not be allocated. Fatal to that one serialization: the instance
	// terminates with this error and the message is dropped for the
	// affected consumers, the process keeps running.
	ErrAllocationFailed = errors.New("shared buffer allocation failed")

	// ErrNotReady - ReadAt was called with a cursor beyond the produced
	// chunk range while generation is still in flight. Callers must wait
	// for a progress notification after RequestContent returns false.
	ErrNotReady = errors.New("content not yet produced")

	// ErrHandleMismatch - the document's attached blob elements do not line
	// up with the shared-buffer handles supplied for the message.
	ErrHandleMismatch = errors.New("attached blob count does not match handle count")
)

// Size mismatches (declared size != decoded size) and missing size
// declarations are warnings, not errors: generation proceeds with the
// declared size and logs the discrepancy.
