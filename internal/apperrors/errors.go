package apperrors

import "errors"

// Trigger errors
var (
	ErrTriggerNotFound   = errors.New("trigger not found")
	ErrUnknownActionType = errors.New("unknown action type")
	ErrUnknownEvent      = errors.New("unknown trigger event")
)

// Validation errors
var (
	ErrMissingField        = errors.New("missing required field")
	ErrInvalidActionConfig = errors.New("invalid action config")
	ErrInvalidCondition    = errors.New("invalid trigger condition")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// Lookup errors
var (
	ErrMaterialNotFound = errors.New("material not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrConcurrentUpdate = errors.New("material was modified concurrently")
)

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTriggerNotFound) ||
		errors.Is(err, ErrMaterialNotFound) ||
		errors.Is(err, ErrTaskNotFound)
}

// IsValidation reports whether err stems from bad input or a bad definition.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidActionConfig) ||
		errors.Is(err, ErrInvalidCondition) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrUnknownActionType) ||
		errors.Is(err, ErrUnknownEvent)
}
