package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and customer-facing messaging.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindPolicy
	KindStore
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPolicy:
		return "policy"
	case KindStore:
		return "store"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error is a classified error. Sentinels are compared by identity; wrapped
// infrastructure errors keep their cause reachable through Unwrap.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = &Error{Kind: KindNotFound, Msg: "not found"}
	// ErrAlreadyExists indicates a unique key is already taken.
	ErrAlreadyExists = &Error{Kind: KindValidation, Msg: "already exists"}

	ErrUnknownProduct       = &Error{Kind: KindValidation, Msg: "unknown product"}
	ErrInvalidCoordinate    = &Error{Kind: KindValidation, Msg: "invalid coordinate"}
	ErrInvalidCommandFormat = &Error{Kind: KindValidation, Msg: "invalid command format"}
	ErrInvalidDiscount      = &Error{Kind: KindValidation, Msg: "discount must be between 0 and 100"}
	ErrInvalidQuantity      = &Error{Kind: KindValidation, Msg: "quantity must be positive"}
	ErrInvalidSignature     = &Error{Kind: KindValidation, Msg: "invalid signature"}
	ErrBranchRequired       = &Error{Kind: KindValidation, Msg: "branch required"}
	ErrLocationRequired     = &Error{Kind: KindValidation, Msg: "location required"}
	ErrIllegalTransition    = &Error{Kind: KindValidation, Msg: "illegal status transition"}

	ErrOrderNotFound        = &Error{Kind: KindNotFound, Msg: "order not found"}
	ErrPendingOrderNotFound = &Error{Kind: KindNotFound, Msg: "pending order not found"}
	ErrBranchNotFound       = &Error{Kind: KindNotFound, Msg: "branch not found"}
	ErrNoBranches           = &Error{Kind: KindNotFound, Msg: "branch directory is empty"}

	ErrEmptyCart   = &Error{Kind: KindPolicy, Msg: "cart is empty"}
	ErrOutOfRadius = &Error{Kind: KindPolicy, Msg: "location outside delivery radius"}
)

// OutOfRadiusError reports the nearest branch and how far away it is.
type OutOfRadiusError struct {
	Branch     string
	DistanceKm float64
	RadiusKm   float64
}

func (e *OutOfRadiusError) Error() string {
	return fmt.Sprintf("nearest branch %s is %.2f km away, delivery radius is %.2f km", e.Branch, e.DistanceKm, e.RadiusKm)
}

func (e *OutOfRadiusError) Is(target error) bool { return target == ErrOutOfRadius }

// IllegalTransitionError names the rejected status change.
type IllegalTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("order cannot move from %s to %s", e.From, e.To)
}

func (e *IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// StoreErr wraps a key-value store failure.
func StoreErr(op string, err error) error {
	return &Error{Kind: KindStore, Msg: op, Err: err}
}

// UpstreamErr wraps a chat platform or payment gateway failure.
func UpstreamErr(op string, err error) error {
	return &Error{Kind: KindUpstream, Msg: op, Err: err}
}

// KindOf returns the classification of the first classified error in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	switch {
	case errors.Is(err, ErrOutOfRadius):
		return KindPolicy
	case errors.Is(err, ErrIllegalTransition):
		return KindValidation
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
