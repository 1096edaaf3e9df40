// README: Error kinds shared by every module and mapped to HTTP statuses at the edge.
package apperr

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrAuth       = errors.New("authentication failed")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrStore      = errors.New("store error")
)

// Error carries a kind, a message that is safe to show to the actor, and an optional cause.
// The cause is reachable through errors.Is/As but never appears in Error().
type Error struct {
	Kind  error
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.cause}
}

// Cause returns the wrapped backend error, if any, for logging.
func (e *Error) Cause() error {
	return e.cause
}

func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, cause: cause}
}

func Validation(msg string) *Error {
	return New(ErrValidation, msg)
}

func Conflict(msg string) *Error {
	return New(ErrConflict, msg)
}

// Auth hides cause behind a user-safe message.
func Auth(msg string, cause error) *Error {
	return Wrap(ErrAuth, msg, cause)
}

func Store(op string, cause error) *Error {
	return Wrap(ErrStore, op+": "+cause.Error(), cause)
}

// KindOf reports which known kind err belongs to, or nil.
func KindOf(err error) error {
	for _, k := range []error{ErrValidation, ErrConflict, ErrAuth, ErrForbidden, ErrNotFound, ErrStore} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
