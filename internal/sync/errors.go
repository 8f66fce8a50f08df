package sync

import (
	"errors"
	"fmt"

	"github.com/nhle/erp-sync/internal/docstore"
)

// ErrorKind classifies a listener failure.
type ErrorKind int

const (
	// Transient failures (network loss, timeouts, backend hiccups) are
	// retried after the registry's retry interval.
	Transient ErrorKind = iota

	// PermissionDenied failures are not retried until the subscription is
	// torn down and opened again, typically after the identity changes.
	PermissionDenied
)

func (k ErrorKind) String() string {
	switch k {
	case PermissionDenied:
		return "permission denied"
	default:
		return "transient"
	}
}

// SyncError is delivered on a subscription stream when its listener fails.
type SyncError struct {
	Kind       ErrorKind
	Collection string
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s (%s): %v", e.Collection, e.Kind, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// newSyncError classifies err from the listener on collection.
func newSyncError(collection string, err error) *SyncError {
	kind := Transient
	if docstore.IsPermissionDenied(err) {
		kind = PermissionDenied
	}
	return &SyncError{Kind: kind, Collection: collection, Err: err}
}

// IsPermissionDenied reports whether err is a SyncError of kind
// PermissionDenied.
func IsPermissionDenied(err error) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Kind == PermissionDenied
}
