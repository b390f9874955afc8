package services

import (
	"errors"
	"fmt"

	"goat-backend/storage"
)

// ErrorKind klassifiziert Fehler der Services für die HTTP-Schicht.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindReference
	KindNotFound
	KindLookupTransport
	KindConflict
	KindForbidden
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindReference:
		return "reference"
	case KindNotFound:
		return "not_found"
	case KindLookupTransport:
		return "lookup_transport"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	}
	return "internal"
}

// Error ist ein klassifizierter Fehler. Message wird unverändert an den
// Client ausgeliefert, Err bleibt intern.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is erlaubt errors.Is(err, &Error{Kind: KindConflict}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// KindOf liefert die Klasse eines Fehlers. Unklassifizierte Fehler sind intern.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage liefert die Meldung, die an den Client gehen darf.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal server error"
}

func validationErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func referenceErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindReference, Message: fmt.Sprintf(format, args...)}
}

func notFoundErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func internalError(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// classify reicht klassifizierte Fehler unverändert durch und übersetzt
// Unique-Verletzungen in Konflikte. Alles andere ist intern.
func classify(msg string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if storage.IsUniqueViolation(err) {
		return &Error{Kind: KindConflict, Message: "Conflicting concurrent write, please retry", Err: err}
	}
	return internalError(msg, err)
}
