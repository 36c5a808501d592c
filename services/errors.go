package services

import "errors"

// Sentinel errors for the challenge lifecycle. Handlers map these onto HTTP
// status codes; everything else is treated as an internal error.
var (
	ErrChallengeNotFound     = errors.New("challenge not found")
	ErrToolkitNotFound       = errors.New("toolkit not found")
	ErrUserChallengeNotFound = errors.New("user challenge not found")

	// ErrChallengeNotEnded: settlement was requested before the challenge
	// reached its ended state. The caller may retry after termination.
	ErrChallengeNotEnded = errors.New("challenge has not ended yet")

	// ErrToolkitVariantUnsupported: the toolkit variant has no registered
	// points-aggregation source.
	ErrToolkitVariantUnsupported = errors.New("toolkit variant has no points aggregation source")

	// ErrActiveChallengeExists: a toolkit can hold at most one non-completed
	// challenge at a time.
	ErrActiveChallengeExists = errors.New("toolkit already has an active challenge")

	ErrInvalidChallengeDates = errors.New("end_date must be after start_date")
)
