package types

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a pipeline operation failed. The set is closed:
// call sites switch over it exhaustively instead of inspecting arbitrary
// collaborator errors.
type FailureKind string

const (
	// FailureTransient is likely to succeed if retried unchanged (network
	// timeouts, rate limits, transport-level connection errors).
	FailureTransient FailureKind = "TRANSIENT"
	// FailureFatal cannot succeed without a human or config change
	// (authentication, schema mismatch, malformed configuration). Never retried.
	FailureFatal FailureKind = "FATAL"
	// FailureDataIntegrity means post-load verification found rows written
	// disagreeing with the expected count. The next invocation converges via
	// delete-and-reload.
	FailureDataIntegrity FailureKind = "DATA_INTEGRITY"
	// FailureRecorder means the audit write itself failed. Fatal to the run:
	// an unrecorded outcome would break the history invariant.
	FailureRecorder FailureKind = "RECORDER"
)

// Failure is a classified pipeline error. Attempts carries how many attempts
// were made before the error was propagated, for diagnostics.
type Failure struct {
	Kind     FailureKind
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	if f.Attempts > 1 {
		return fmt.Sprintf("%s after %d attempts: %v", f.Kind, f.Attempts, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Transient wraps err as a retriable failure.
func Transient(err error) error {
	return &Failure{Kind: FailureTransient, Attempts: 1, Err: err}
}

// Fatal wraps err as a non-retriable failure.
func Fatal(err error) error {
	return &Failure{Kind: FailureFatal, Attempts: 1, Err: err}
}

// DataIntegrity reports a verification mismatch.
func DataIntegrity(format string, args ...any) error {
	return &Failure{Kind: FailureDataIntegrity, Attempts: 1, Err: fmt.Errorf(format, args...)}
}

// RecorderFailure wraps an audit-write error.
func RecorderFailure(err error) error {
	return &Failure{Kind: FailureRecorder, Attempts: 1, Err: err}
}

// KindOf returns the FailureKind of err. Unclassified errors default to
// TRANSIENT so that unknown collaborator failures stay within the bounded
// retry path rather than aborting the run outright.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureTransient
}
