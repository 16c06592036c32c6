// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios: a lookup
// that matched no row versus a token that no longer matches the stored
// state versus a genuine infrastructure failure.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row, e.g. an
// unsubscribe request for an email that is not a confirmed subscriber.
// Handlers translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrInvalidToken is returned when a conditional token update affects
// zero rows: the token was wrong, already consumed, or the subscriber is
// not in the status the transition requires. Handlers translate this
// into an HTTP 400 response or an error redirect.
var ErrInvalidToken = errors.New("invalid token")
