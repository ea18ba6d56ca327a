package store

import (
	"errors"
	"fmt"
)

// Kind is the stable, client-visible category of a rejected operation.
type Kind string

const (
	KindInvalidQuantity     Kind = "InvalidQuantity"
	KindInvalidTransition   Kind = "InvalidTransition"
	KindLocationOccupied    Kind = "LocationOccupied"
	KindLocationNotOperable Kind = "LocationNotOperable"
	KindDuplicateInFlight   Kind = "DuplicateInFlight"
	KindKeyReuseConflict    Kind = "KeyReuseConflict"
	KindInFlightRetry       Kind = "InFlightRetry"
	KindNotFound            Kind = "NotFound"
	KindConflict            Kind = "Conflict"
	KindInvalid             Kind = "Invalid"
)

// Error is a business rejection. Anything that is not an *Error is an
// infrastructure failure.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Reason }

// Is matches on Kind so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }

// Reason returns the human-readable reason of a business error, or the
// plain error text otherwise.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return err.Error()
}
