package model

import "github.com/rotisserie/eris"

// Error taxonomy. Internal errors wrap one of these so the coordinator can map
// a failure to an ErrorKind with eris.Is.
var (
	ErrValidation   = eris.New("validation error")
	ErrStorage      = eris.New("storage fault")
	ErrRemote       = eris.New("remote fault")
	ErrNotFound     = eris.New("not found")
	ErrUnknownField = eris.New("unknown field")
)

// ErrorKind classifies a failed operation for callers.
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindStorage    ErrorKind = "storage"
	ErrorKindRemote     ErrorKind = "remote"
	ErrorKindNotFound   ErrorKind = "not_found"
)

// KindOf maps an error to its ErrorKind. Unclassified errors count as storage
// faults since they originate below the coordinator.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case eris.Is(err, ErrValidation), eris.Is(err, ErrUnknownField):
		return ErrorKindValidation
	case eris.Is(err, ErrNotFound):
		return ErrorKindNotFound
	case eris.Is(err, ErrRemote):
		return ErrorKindRemote
	default:
		return ErrorKindStorage
	}
}
