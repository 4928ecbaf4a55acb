package automation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"bomflow/internal/apperrors"
)

// idField reads a positive integer id from data. ok is false when the key is
// absent or nil; a present value that is not a usable id is an error.
func idField(data EventData, key string) (id uint, ok bool, err error) {
	raw, present := data[key]
	if !present || raw == nil {
		return 0, false, nil
	}
	var f float64
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false, nil
		}
		parsed, perr := strconv.ParseUint(s, 10, 64)
		if perr != nil {
			return 0, false, fmt.Errorf("%w: %s=%q is not an id", apperrors.ErrInvalidArgument, key, v)
		}
		f = float64(parsed)
	case json.Number:
		parsed, perr := v.Float64()
		if perr != nil {
			return 0, false, fmt.Errorf("%w: %s=%q is not an id", apperrors.ErrInvalidArgument, key, v)
		}
		f = parsed
	default:
		n, isNum := toNumber(raw)
		if !isNum {
			return 0, false, fmt.Errorf("%w: %s has type %T", apperrors.ErrInvalidArgument, key, raw)
		}
		f = n
	}
	if f <= 0 || f != math.Trunc(f) || f > math.MaxUint32 {
		return 0, false, fmt.Errorf("%w: %s=%v is not an id", apperrors.ErrInvalidArgument, key, raw)
	}
	return uint(f), true, nil
}

// requireID is idField with absence reported as ErrMissingField.
func requireID(data EventData, key string) (uint, error) {
	id, ok, err := idField(data, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", apperrors.ErrMissingField, key)
	}
	return id, nil
}

// taskIDOf extracts the task reference for the log row, ignoring bad values.
func taskIDOf(data EventData) *uint {
	id, ok, err := idField(data, KeyTaskID)
	if err != nil || !ok {
		return nil
	}
	return &id
}
