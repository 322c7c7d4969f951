package services

import (
	"errors"

	"playbox/internal/core"
)

// BannerFor turns an operation error into the message shown to the operator.
func BannerFor(err error) core.Banner {
	switch {
	case err == nil:
		return core.Banner{}
	case errors.Is(err, core.ErrBackendUnavailable):
		return core.Failure("PlayBox server is unavailable. Please try again.")
	case errors.Is(err, core.ErrInsufficientBalance):
		return core.Failure("Insufficient balance")
	case errors.Is(err, core.ErrCardAlreadyLinked):
		return core.Failure("This card is already linked to a user")
	case errors.Is(err, core.ErrNotFound):
		return core.Failure("User not found")
	case errors.Is(err, core.ErrEmptyCardUID):
		return core.Failure("Please scan a card first")
	case errors.Is(err, core.ErrEmptyName):
		return core.Failure("Name is required")
	case errors.Is(err, core.ErrEmptyPhone):
		return core.Failure("Phone number is required")
	case errors.Is(err, core.ErrInvalidAmount):
		return core.Failure("Please enter a valid amount")
	case errors.Is(err, core.ErrEmptyDeductor):
		return core.Failure("Deductor name is required")
	case errors.Is(err, core.ErrEmptyDescription):
		return core.Failure("Description is required")
	default:
		return core.Failure("Operation failed: " + err.Error())
	}
}
