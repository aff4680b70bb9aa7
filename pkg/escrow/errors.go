package escrow

import "errors"

// Validation errors fail fast and leave no state mutation behind.
var (
	ErrZeroDeposit         = errors.New("deposit must be positive")
	ErrAlreadyExists       = errors.New("bounty already exists")
	ErrNotFound            = errors.New("bounty not found")
	ErrExpired             = errors.New("bounty has expired")
	ErrStaleTerms          = errors.New("bounty terms do not match")
	ErrSelfApplication     = errors.New("funder cannot apply to own bounty")
	ErrAlreadyApplied      = errors.New("applicant already applied")
	ErrNotApplicant        = errors.New("caller is not an applicant")
	ErrNotFunder           = errors.New("caller is not the funder")
	ErrAlreadyAccomplished = errors.New("bounty already accomplished")
	ErrNoSubmission        = errors.New("bounty has no submission")
	ErrWinnerNotApplicant  = errors.New("winner is not an applicant")
	ErrNotOwner            = errors.New("caller is not the owner")
	ErrInvalidRate         = errors.New("compensation rate must be positive")
)

// ErrLocked is returned when a settlement is attempted while another one is in
// flight. It is retryable by the caller; the core never queues or retries.
var ErrLocked = errors.New("settlement in progress")
