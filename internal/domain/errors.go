package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrIdempotencyRequired = errors.New("idempotency key required")
	ErrIdempotencyConflict = errors.New("idempotency key reused with different payload")
	// ErrIdempotencyInProgress is a live claim on the key whose first request
	// has not produced a response yet.
	ErrIdempotencyInProgress = fmt.Errorf("%w: request in progress", ErrConflict)
	ErrInvalidEnvelope       = errors.New("invalid event envelope")
	ErrUnsupportedEventType  = errors.New("unsupported event type")
	ErrUnsupportedEventClass = errors.New("unsupported event class")

	// ErrAttributionDenied covers unknown, unapproved and suspended partners as
	// well as self-referrals.
	ErrAttributionDenied = errors.New("attribution denied")
	// ErrDuplicateAttribution means the referred identity already belongs to a
	// different partner. First touch wins and is never re-attributed.
	ErrDuplicateAttribution   = errors.New("duplicate attribution")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrBelowMinimumThreshold  = errors.New("below minimum payout threshold")
	ErrUnallocatableAmount    = errors.New("amount does not match whole credited earnings")
	ErrPartnerNotActive       = errors.New("partner not active")
	ErrUnknownMilestone       = errors.New("unknown milestone")
	// ErrConsistencyViolation is returned for double credit or double payout
	// tagging. Balances are left untouched when it is raised.
	ErrConsistencyViolation = errors.New("ledger consistency violation")
)
