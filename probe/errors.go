package probe

import "errors"

var (
	// ErrTimeout indicates a probe hit its execution timeout.
	ErrTimeout = errors.New("probe: timeout")

	// ErrUnexpectedResponse indicates the target was reachable but the
	// response did not satisfy the configured expectation.
	ErrUnexpectedResponse = errors.New("probe: unexpected response")

	// ErrProbePanic indicates a probe implementation panicked.
	ErrProbePanic = errors.New("probe: panic during execution")
)
