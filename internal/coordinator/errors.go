package coordinator

import (
	"errors"
	"fmt"
)

// ErrorKind classifies coordinator failures.
type ErrorKind int

const (
	KindCredential ErrorKind = iota + 1
	KindCapabilityInit
	KindPermissionDenied
	KindJoin
	KindThreadResolution
	KindHangUp
	KindSend
	KindNoActiveCall
	KindJoinInProgress
)

func (k ErrorKind) String() string {
	switch k {
	case KindCredential:
		return "credential"
	case KindCapabilityInit:
		return "capability init"
	case KindPermissionDenied:
		return "permission denied"
	case KindJoin:
		return "join"
	case KindThreadResolution:
		return "thread resolution"
	case KindHangUp:
		return "hang up"
	case KindSend:
		return "send"
	case KindNoActiveCall:
		return "no active call"
	case KindJoinInProgress:
		return "join in progress"
	default:
		return "unknown"
	}
}

// Error is a failure reported by the coordinator.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a sentinel of the same kind, so errors.Is(err, ErrJoin) holds
// for every join failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrCredential       = &Error{Kind: KindCredential}
	ErrCapabilityInit   = &Error{Kind: KindCapabilityInit}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrJoin             = &Error{Kind: KindJoin}
	ErrThreadResolution = &Error{Kind: KindThreadResolution}
	ErrHangUp           = &Error{Kind: KindHangUp}
	ErrSend             = &Error{Kind: KindSend}
	ErrNoActiveCall     = &Error{Kind: KindNoActiveCall}
	ErrJoinInProgress   = &Error{Kind: KindJoinInProgress}
)

// KindOf returns the kind of a coordinator error, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

var (
	errNoThreadID   = errors.New("meeting link has no chat thread id")
	errNoChat       = errors.New("chat client unavailable")
	errNoCallAgent  = errors.New("call agent unavailable")
	errNoPermission = errors.New("microphone permission not granted")
	errBusy         = errors.New("a join is pending or a call is active")
	errNoCall       = errors.New("no call to hang up")
)
