package security

import "errors"

// Sentinel errors for the pipeline's failure taxonomy.
var (
	// ErrAuthenticationFailed marks credentials that were presented and
	// rejected. This is expected under normal client misuse (an expired
	// token, say) and is never logged as an operational error.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrForbidden marks an authenticated principal that lacks the
	// rights for the request.
	ErrForbidden = errors.New("forbidden")

	// ErrDispatchSaturated is returned when the blocking dispatch pool
	// rejects a submission.
	ErrDispatchSaturated = errors.New("blocking dispatch pool saturated")
)

// IsAuthenticationFailure reports whether err stems from rejected
// credentials rather than an operational problem.
func IsAuthenticationFailure(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed)
}

// IsForbidden reports whether err is a forbidden failure.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
