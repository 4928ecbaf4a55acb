package automation

import "bomflow/internal/apperrors"

// Re-exported so callers of this package need not import apperrors.
var (
	ErrTriggerNotFound     = apperrors.ErrTriggerNotFound
	ErrUnknownActionType   = apperrors.ErrUnknownActionType
	ErrUnknownEvent        = apperrors.ErrUnknownEvent
	ErrMissingField        = apperrors.ErrMissingField
	ErrInvalidActionConfig = apperrors.ErrInvalidActionConfig
	ErrInvalidCondition    = apperrors.ErrInvalidCondition
	ErrMaterialNotFound    = apperrors.ErrMaterialNotFound
	ErrConcurrentUpdate    = apperrors.ErrConcurrentUpdate
)
