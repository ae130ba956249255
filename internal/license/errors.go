package license

import "errors"

// Base errors for the license core. Callers classify failures with
// errors.Is against these and inspect ForbiddenError/AuthError for the
// specific reason.
var (
	// ErrNotFound indicates a license, application, or token is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates the operation is not valid for the
	// license's current state, e.g. it is not bound to an application.
	ErrInvalidState = errors.New("invalid state")
	// ErrForbidden indicates the license status or binding disallows the action.
	ErrForbidden = errors.New("forbidden")
	// ErrAuthFailure indicates a credential could not be verified.
	ErrAuthFailure = errors.New("authorization failure")
	// ErrLimitExceeded indicates the domain-activation quota is used up.
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrInternal indicates a persistence failure.
	ErrInternal = errors.New("internal error")

	// ErrVersionConflict indicates a conditional license write lost an
	// optimistic-lock race and should be retried with fresh state.
	ErrVersionConflict = errors.New("license version conflict")

	// ErrKeyExhausted indicates no unique license key was found within
	// the allowed number of generation attempts.
	ErrKeyExhausted = errors.New("license key generation attempts exhausted")
)

// ForbiddenReason identifies why an action was forbidden.
type ForbiddenReason string

const (
	// ReasonExpired means the license validity window has passed.
	ReasonExpired ForbiddenReason = "expired"
	// ReasonSuspended means the license is suspended by an operator.
	ReasonSuspended ForbiddenReason = "suspended"
	// ReasonRevoked means the license has been revoked.
	ReasonRevoked ForbiddenReason = "revoked"
	// ReasonDeactivated means the license was deactivated from its site.
	ReasonDeactivated ForbiddenReason = "deactivated"
	// ReasonAppMismatch means the license is bound to a different application.
	ReasonAppMismatch ForbiddenReason = "app_mismatch"
	// ReasonTokenExpired means the download token is past its expiry.
	ReasonTokenExpired ForbiddenReason = "token_expired"
)

// ForbiddenError is a Forbidden failure carrying its specific reason.
type ForbiddenError struct {
	Reason ForbiddenReason
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + string(e.Reason)
}

// Unwrap makes errors.Is(err, ErrForbidden) match.
func (e *ForbiddenError) Unwrap() error {
	return ErrForbidden
}

// AuthCode identifies the exact credential-verification failure.
type AuthCode string

const (
	// CodeSiteTokenMissing means no activation record exists for the host.
	CodeSiteTokenMissing AuthCode = "site_token_missing"
	// CodeAuthHeaderNotFound means no credential was supplied.
	CodeAuthHeaderNotFound AuthCode = "authorization_header_not_found"
	// CodeInvalidTokenFormat means the credential could not be decoded.
	CodeInvalidTokenFormat AuthCode = "invalid_token_format"
	// CodeAuthorizationFailed means the credential hash did not match.
	CodeAuthorizationFailed AuthCode = "authorization_failed"
	// CodeMalformedToken means the download token could not be parsed.
	CodeMalformedToken AuthCode = "malformed_token"
	// CodeInvalidSignature means the download token signature check failed.
	CodeInvalidSignature AuthCode = "invalid_signature"
	// CodeInvalidPayload means the download token payload is unusable.
	CodeInvalidPayload AuthCode = "invalid_payload"
)

// AuthError is an AuthFailure carrying its specific code.
type AuthError struct {
	Code AuthCode
}

func (e *AuthError) Error() string {
	return "authorization failure: " + string(e.Code)
}

// Unwrap makes errors.Is(err, ErrAuthFailure) match.
func (e *AuthError) Unwrap() error {
	return ErrAuthFailure
}
