package ledger

import "errors"

var (
	// ErrNotFound means a referenced kid, chore, reward, or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIneligible means the reward is archived or the kid is outside its eligible set.
	ErrIneligible = errors.New("not eligible for this reward")

	// ErrInsufficientStars means the reward costs more than the kid's balance.
	ErrInsufficientStars = errors.New("insufficient stars")

	// ErrValidation means the input was missing or malformed.
	ErrValidation = errors.New("invalid input")
)
