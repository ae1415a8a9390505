package types

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("unavailable")
	ErrUnknownKey   = errors.New("unknown key")
	ErrNotFound     = errors.New("not found")
	ErrGeneral      = errors.New("general error")
	ErrTimeout      = errors.New("timed out")
)

// Result is the coarse outcome reported to RPC callers alongside an error
// reason string.
type Result struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
}

// Succeeded builds a successful result
func Succeeded() Result {
	return Result{Success: true}
}

// Failed builds a failed result carrying the reason of err
func Failed(err error) Result {
	if err == nil {
		return Succeeded()
	}
	return Result{Success: false, ErrorReason: err.Error()}
}
