package sonify

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the sonification core.
type ErrorKind int

const (
	// KindUnknown is used for errors that don't carry a kind.
	KindUnknown ErrorKind = iota
	// KindInvalidSeries is fewer than 2 samples or non-finite values.
	KindInvalidSeries
	// KindDegenerateRange is a series with max == min.
	KindDegenerateRange
	// KindBackendUnavailable is a local synthesizer that cannot be loaded.
	KindBackendUnavailable
	// KindRemoteBackend is a network failure, timeout or non-success
	// response of the remote synthesizer.
	KindRemoteBackend
	// KindStageFailure is a pipeline stage failed after backend fallback.
	KindStageFailure
	// KindArtifactNotFound is an artifact missing on cleanup.
	KindArtifactNotFound
)

// Sentinel errors, one per kind. Use errors.Is to match them.
var (
	ErrInvalidSeries      = errors.New("invalid series")
	ErrDegenerateRange    = errors.New("degenerate range")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrRemoteBackend      = errors.New("remote backend failed")
	ErrStageFailure       = errors.New("stage failed")
	ErrArtifactNotFound   = errors.New("artifact not found")
)

var kindNames = map[ErrorKind]string{
	KindUnknown:            "unknown",
	KindInvalidSeries:      "invalid_series",
	KindDegenerateRange:    "degenerate_range",
	KindBackendUnavailable: "backend_unavailable",
	KindRemoteBackend:      "remote_backend",
	KindStageFailure:       "stage_failure",
	KindArtifactNotFound:   "artifact_not_found",
}

var kindSentinels = map[ErrorKind]error{
	KindInvalidSeries:      ErrInvalidSeries,
	KindDegenerateRange:    ErrDegenerateRange,
	KindBackendUnavailable: ErrBackendUnavailable,
	KindRemoteBackend:      ErrRemoteBackend,
	KindStageFailure:       ErrStageFailure,
	KindArtifactNotFound:   ErrArtifactNotFound,
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is returned by the sonification core. It keeps the kind of
// failure, the operation which failed and the root cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return e.Kind.String()
}

// Unwrap returns the root cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if target is the sentinel error of this kind.
func (e *Error) Is(target error) bool {
	if s, ok := kindSentinels[e.Kind]; ok {
		return s == target
	}
	return false
}

// Errorf creates a new error of provided kind.
func Errorf(kind ErrorKind, op string, format string, args ...interface{}) error {
	return &Error{
		Kind: kind,
		Op:   op,
		Err:  fmt.Errorf(format, args...),
	}
}

// KindOf returns the kind of the outermost Error in err's chain.
// KindUnknown is returned if there's none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// RootKind returns the kind of the innermost Error in err's chain, which
// is the most specific cause. KindUnknown is returned if there's none.
func RootKind(err error) ErrorKind {
	kind := KindUnknown
	for err != nil {
		if e, ok := err.(*Error); ok {
			kind = e.Kind
		}
		err = errors.Unwrap(err)
	}
	return kind
}
