package session

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidCredentials = "INVALID_CREDENTIALS"
	textCodeAccountDeactivated = "ACCOUNT_DEACTIVATED"
	textCodeAccessRestricted   = "ACCESS_RESTRICTED"
	textCodeConnectivity       = "CONNECTIVITY_FAILURE"
	textCodeServerError        = "SERVER_ERROR"
	textCodeValidation         = "VALIDATION_REJECTED"
	textCodeSuperseded         = "SESSION_SUPERSEDED"
)

// ErrInvalidCredentials is returned when the backend rejects the email or
// password pair.
var ErrInvalidCredentials = goerrors.New("Invalid credentials.", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials)

// ErrAccountDeactivated is returned when login succeeds upstream but the
// account is flagged inactive. No token is stored in this case.
var ErrAccountDeactivated = goerrors.New("Your account has been deactivated. Please contact admin.", goerrors.CategoryAuth).
	WithTextCode(textCodeAccountDeactivated)

// ErrAccessRestricted is returned when the account status is outside the
// allowed set. No token is stored in this case either.
var ErrAccessRestricted = goerrors.New("Your account access is restricted. Please contact admin.", goerrors.CategoryAuth).
	WithTextCode(textCodeAccessRestricted)

// ErrConnectivity is the transport-level failure class: the request itself
// failed rather than returning a status code. Login retries exactly once on
// this class and on nothing else.
var ErrConnectivity = goerrors.New("Cannot reach the server. Please check your connection.", goerrors.CategoryOperation).
	WithTextCode(textCodeConnectivity)

// ErrSessionSuperseded is returned to a login whose response arrived after
// an intervening logout; the result is discarded instead of
// re-authenticating a session the user already left.
var ErrSessionSuperseded = goerrors.New("session superseded by logout", goerrors.CategoryConflict).
	WithTextCode(textCodeSuperseded)

// IsConnectivityError reports whether err is a transport-level failure as
// opposed to an HTTP rejection. Classification is typed, never a message
// substring match.
func IsConnectivityError(err error) bool {
	return hasTextCode(err, textCodeConnectivity)
}

// IsCredentialError reports whether err is a credential rejection.
func IsCredentialError(err error) bool {
	return hasTextCode(err, textCodeInvalidCredentials)
}

// IsAccountStateError reports whether err is a deactivated or restricted
// account rejection.
func IsAccountStateError(err error) bool {
	return hasTextCode(err, textCodeAccountDeactivated) || hasTextCode(err, textCodeAccessRestricted)
}

// IsServerError reports whether err is a 5xx from the backend.
func IsServerError(err error) bool {
	return hasTextCode(err, textCodeServerError)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}

// HTTPStatus extracts the backend status code carried by a gateway error.
func HTTPStatus(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return 0, false
	}
	if rich.Metadata == nil {
		return 0, false
	}
	status, ok := rich.Metadata["status"].(int)
	return status, ok
}

// userMessage picks the text surfaced in State.Err: the backend-provided
// message when we have one, otherwise the given fallback.
func userMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Message != "" {
		return rich.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
