package icp

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure
type Kind int

const (
	KindIO Kind = iota + 1
	KindArchiveFormat
	KindPathResolution
	KindToolLaunch
	KindToolFailed
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io error"
	case KindArchiveFormat:
		return "unreadable archive"
	case KindPathResolution:
		return "path resolution error"
	case KindToolLaunch:
		return "external tool could not be launched"
	case KindToolFailed:
		return "external tool reported failure"
	case KindParse:
		return "parse error"
	default:
		return "unknown error"
	}
}

// Sentinel errors for use with errors.Is
var (
	ErrIO             = &Error{Kind: KindIO}
	ErrArchiveFormat  = &Error{Kind: KindArchiveFormat}
	ErrPathResolution = &Error{Kind: KindPathResolution}
	ErrToolLaunch     = &Error{Kind: KindToolLaunch}
	ErrToolFailed     = &Error{Kind: KindToolFailed}
	ErrParse          = &Error{Kind: KindParse}
)

// Error is returned by every pipeline step. Op describes what was being
// attempted ("open archive", "read Info.plist") and Path the file involved.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = "failed to " + e.Op
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Path == "" && t.Err == nil && t.Kind == e.Kind
}

func newError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
