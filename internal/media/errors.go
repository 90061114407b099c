package media

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures so callers can branch on them.
type Kind int

const (
	KindUnknown Kind = iota
	KindIO
	KindNotFound
	KindNotAFile
	KindUnsupportedType
	KindCodec
	KindEncoderNotAvailable
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io_error"
	case KindNotFound:
		return "not_found"
	case KindNotAFile:
		return "not_a_file"
	case KindUnsupportedType:
		return "unsupported_type"
	case KindCodec:
		return "codec_error"
	case KindEncoderNotAvailable:
		return "encoder_not_available"
	default:
		return "unknown"
	}
}

// Sentinels usable with errors.Is; an *Error matches the sentinel of its kind.
var (
	ErrIO                  = &Error{Kind: KindIO}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrNotAFile            = &Error{Kind: KindNotAFile}
	ErrUnsupportedType     = &Error{Kind: KindUnsupportedType}
	ErrCodec               = &Error{Kind: KindCodec}
	ErrEncoderNotAvailable = &Error{Kind: KindEncoderNotAvailable}
)

// Error is a failure of a scan or compression step.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

// NewError returns an *Error of the given kind.
func NewError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
