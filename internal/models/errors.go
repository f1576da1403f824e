package models

import "errors"

// Guard failures are client errors or genuine denials, never transient
// faults; callers map them to HTTP statuses with errors.Is and must not
// retry. Forbidden messages stay generic so a denial does not confirm
// whether the resource exists or who else holds access.
var (
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("you do not have permission to perform this action")

	ErrAdminExcluded           = errors.New("administrators cannot hold or request document access")
	ErrDuplicateActiveGrant    = errors.New("an active grant already exists for this subject")
	ErrNoActiveGrant           = errors.New("no active grant exists for this subject")
	ErrDuplicatePendingRequest = errors.New("a pending revocation request of this type already exists")
	ErrRequestNotPending       = errors.New("revocation request is no longer pending")
	ErrMissingTargetSubject    = errors.New("this request type requires a target subject")
	ErrManagerAlreadyAssigned  = errors.New("document already has an origin manager")
	ErrInvalidInput            = errors.New("invalid input")

	// ErrInconsistentAuthority is a data-integrity violation: a document with
	// neither an origin manager nor a user context. The creation path makes
	// this unreachable; it is surfaced as an internal failure, not a client
	// error.
	ErrInconsistentAuthority = errors.New("document has no origin authority")
)
