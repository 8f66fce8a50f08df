package docstore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrPermissionDenied is returned when security rules reject a listener
	// or write. Retrying does not help until the identity changes.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnavailable is returned for network failures and timeouts.
	ErrUnavailable = errors.New("document store unavailable")
)

// IsPermissionDenied reports whether err means the caller is not allowed
// to read or write, either as ErrPermissionDenied in the chain or as a gRPC
// PermissionDenied/Unauthenticated status from the backend.
func IsPermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermissionDenied) {
		return true
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.PermissionDenied, codes.Unauthenticated:
			return true
		}
	}
	return false
}

// IsCanceled reports whether err only reflects the listener's own context
// ending.
func IsCanceled(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	if st, ok := status.FromError(err); ok {
		return st.Code() == codes.Canceled
	}
	return false
}

// Classify wraps err so that errors.Is reports either ErrPermissionDenied or
// ErrUnavailable. Everything that is not a permission failure counts as
// unavailable.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrUnavailable):
		return err
	case IsPermissionDenied(err):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
