package services

import "errors"

// Sentinel errors returned by the core service methods. Handlers map these
// onto HTTP statuses; none of them leaves partial state behind.
var (
	ErrInvalidUsername = errors.New("username is required")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrMatchNotFound   = errors.New("match not found")

	ErrQuotaExceeded       = errors.New("question quota reached for this match")
	ErrUpstreamUnavailable = errors.New("question generator unavailable")
	ErrRoundNotFound       = errors.New("no such question for this match")
	ErrAlreadyAnswered     = errors.New("question already answered")
	ErrNoAnswers           = errors.New("no answers recorded for this match")

	ErrInvalidQuota            = errors.New("tournament quota must be a positive power of two")
	ErrAlreadyEnrolled         = errors.New("player already enrolled in this tournament")
	ErrTournamentNotFound      = errors.New("tournament not found")
	ErrTournamentMatchNotFound = errors.New("tournament match not found")
	ErrAlreadyDecided          = errors.New("tournament match already has a winner")
	ErrInvalidWinner           = errors.New("winner is not a player of this match")
)
