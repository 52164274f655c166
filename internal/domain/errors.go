package domain

import "errors"

// ErrNotFound is returned when the requested run or archived itinerary does
// not exist.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. no files uploaded, unknown booking kind).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrRejected is returned when the upload admission policy denies a batch.
// The wrapped message carries the policy's reasons.
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrRejected = errors.New("upload rejected")

// ErrObserverAttached is returned when a second observer tries to subscribe
// to a run that already has one. Progress streams are single-consumer.
// Handlers should map this to HTTP 409 Conflict.
var ErrObserverAttached = errors.New("observer already attached")

// ErrArchiveDisabled is returned by the itinerary archive when no database
// is configured. Handlers should map this to HTTP 503.
var ErrArchiveDisabled = errors.New("archive disabled")

// ErrRunFailed is reported by a progress subscription when the run it was
// observing ended in failure. The wrapped message is the run's error.
var ErrRunFailed = errors.New("run failed")
