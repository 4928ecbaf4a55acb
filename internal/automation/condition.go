package automation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gorm.io/datatypes"
)

// Condition maps an event data field to the scalar it must equal.
type Condition map[string]interface{}

// ParseCondition decodes a stored trigger condition. A null or empty
// document is the empty condition; nested objects and arrays are rejected.
func ParseCondition(raw datatypes.JSON) (Condition, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Condition{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var cond Condition
	if err := dec.Decode(&cond); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	if cond == nil {
		cond = Condition{}
	}
	for key, v := range cond {
		switch v.(type) {
		case nil, string, bool, json.Number:
		default:
			return nil, fmt.Errorf("%w: %q must be a string, number, boolean or null", ErrInvalidCondition, key)
		}
	}
	return cond, nil
}

// Matches reports whether every key of condition is present in eventData
// with an equal value. The empty condition always matches.
func Matches(condition map[string]interface{}, eventData map[string]interface{}) bool {
	for key, expected := range condition {
		actual, ok := eventData[key]
		if !ok || !scalarEqual(expected, actual) {
			return false
		}
	}
	return true
}

// scalarEqual compares by value within a kind: numbers numerically across Go
// numeric types, strings and bools exactly, nil only to nil. Values of
// different kinds are never equal, and non-scalars never match.
func scalarEqual(expected, actual interface{}) bool {
	if en, ok := toNumber(expected); ok {
		an, ok := toNumber(actual)
		return ok && en == an
	}
	switch e := expected.(type) {
	case nil:
		return actual == nil
	case string:
		a, ok := actual.(string)
		return ok && a == e
	case bool:
		a, ok := actual.(bool)
		return ok && a == e
	}
	return false
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	}
	return 0, false
}
