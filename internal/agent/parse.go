package agent

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseBool is the single parser for boolean wire fields. It accepts
// y, yes, t, true, on, 1 and n, no, f, false, off, 0 in any case, with
// surrounding whitespace ignored.
func ParseBool(s string) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "":
		return false, ErrEmptyBool
	case "y", "yes", "t", "true", "on", "1":
		return true, nil
	case "n", "no", "f", "false", "off", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidBool, s)
	}
}

// FormatBool renders a boolean the way agents expect it on the wire.
func FormatBool(b bool) string {
	return strconv.FormatBool(b)
}

func parseBoolPayload(payload []byte) (bool, error) {
	b, err := ParseBool(string(payload))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return b, nil
}

func parseIntPayload(payload []byte) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrMalformedPayload, payload)
	}
	return n, nil
}

// parseIntIn parses an integer and checks it against [lo, hi].
func parseIntIn(payload []byte, lo, hi int) (int, error) {
	n, err := parseIntPayload(payload)
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: %d outside [%d, %d]", ErrInvalidValue, n, lo, hi)
	}
	return n, nil
}

// Bounds for fields with no natural limit.
const (
	maxInt = int(^uint(0) >> 1)
	minInt = -maxInt - 1
)

func parseNonNegative(payload []byte) (int, error) {
	return parseIntIn(payload, 0, maxInt)
}

// intField returns a handler storing a bounded integer in dst.
func intField(dst *int, lo, hi int) fieldHandler {
	return func(payload []byte) error {
		v, err := parseIntIn(payload, lo, hi)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func boolField(dst *bool) fieldHandler {
	return func(payload []byte) error {
		v, err := parseBoolPayload(payload)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}
