package hub

import "errors"

// Sentinel errors for the hub core. RPC-scoped errors are reported to the
// calling connection only; they never tear down the session and never affect
// other connections.
var (
	// ErrUnauthenticated indicates the connection has no resolved user identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates the caller is authenticated but not authorized
	// for the target chat or message.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates an unknown chat or message id.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateConnection indicates a registration with a connection id
	// that is already present. This is a registry invariant violation and is
	// treated as a bug signal: logged and rejected, never silently replaced.
	ErrDuplicateConnection = errors.New("duplicate connection")

	// ErrUpstream wraps failures from external collaborators. The connection
	// and in-memory state stay consistent when it is returned.
	ErrUpstream = errors.New("upstream failure")
)

// errorCode maps a hub error to the wire-level error code sent back to the
// calling connection.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateConnection):
		return "duplicate_connection"
	case errors.Is(err, ErrUpstream):
		return "upstream_failure"
	default:
		return "internal_error"
	}
}
