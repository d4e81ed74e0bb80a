// db/errors.go
package db

import "errors"

// Typed transition errors. Handlers match with errors.Is and map to HTTP
// codes; repo methods wrap them with fmt.Errorf("...: %w", Err...) context.
var (
	// ErrNotFound: unknown request/asset/user id or gate pass code.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState: transition attempted from a status that does not
	// permit it. The entity is left untouched.
	ErrInvalidState = errors.New("invalid state for transition")

	// ErrNotOwner: caller is not the requester of the request.
	ErrNotOwner = errors.New("not the request owner")

	// ErrNotAuthorized: caller's role does not permit the operation.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrAssetUnavailable: asset is not AVAILABLE or is already attached
	// to another open request (double-booking attempt).
	ErrAssetUnavailable = errors.New("asset unavailable")

	// ErrNotApproved: gate action on a request that is not exit-eligible.
	ErrNotApproved = errors.New("request not approved for exit")

	// ErrAlreadyVerified: second gate verification of the same request.
	// Explicit so double-exit attempts are loud, never silently absorbed.
	ErrAlreadyVerified = errors.New("gate pass already verified")

	// ErrValidation: empty purpose/reason/note where one is required.
	ErrValidation = errors.New("validation failed")

	// ErrConsistency: the store references a row that does not exist, or a
	// ledger write touched fewer rows than it must. Surfaced loudly, never
	// patched over at read time.
	ErrConsistency = errors.New("store consistency violation")
)
