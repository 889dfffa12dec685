package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

var ErrInvalidField = errors.New("invalid field")

type jsonKind int

const (
	kindObject jsonKind = iota
	kindArray
	kindString
)

func (k jsonKind) String() string {
	switch k {
	case kindObject:
		return "an object"
	case kindArray:
		return "a list"
	default:
		return "a string"
	}
}

// checkKind validates that raw holds a JSON value of the given kind.
func checkKind(field string, kind jsonKind, raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return fmt.Errorf("%w: %s is not valid JSON", ErrInvalidField, field)
	}
	var ok bool
	switch kind {
	case kindObject:
		ok = trimmed[0] == '{'
	case kindArray:
		ok = trimmed[0] == '['
	case kindString:
		ok = trimmed[0] == '"'
	}
	if !ok {
		return fmt.Errorf("%w: %s must be %s", ErrInvalidField, field, kind)
	}
	return nil
}

// decodeValue turns raw JSON into plain Go values so two encodings of the same
// document compare equal.
func decodeValue(raw json.RawMessage) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func sameValue(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// appendBounded appends entries and keeps only the newest max items.
func appendBounded[T any](log []T, entries []T, max int) []T {
	log = append(log, entries...)
	if len(log) > max {
		log = append([]T(nil), log[len(log)-max:]...)
	}
	return log
}
