// Package env reads typed settings from the process environment. Binaries use
// it to seed flag defaults so that every flag can also be set through a
// variable or a .env file.
package env

import (
	"os"
	"strconv"
	"time"

	"golang.org/x/xerrors"
)

// Lookup parses the variable key as T. ok is false when key is unset.
func Lookup[T any](key string) (value T, ok bool, err error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return value, false, nil
	}

	var parsed any
	switch any(value).(type) {
	case string:
		parsed = raw
	case int:
		parsed, err = strconv.Atoi(raw)
	case int64:
		parsed, err = strconv.ParseInt(raw, 10, 64)
	case uint:
		var u uint64
		u, err = strconv.ParseUint(raw, 10, 0)
		parsed = uint(u)
	case float64:
		parsed, err = strconv.ParseFloat(raw, 64)
	case bool:
		parsed, err = strconv.ParseBool(raw)
	case time.Duration:
		parsed, err = time.ParseDuration(raw)
	default:
		return value, true, xerrors.Errorf("unsupported type %T for %s", value, key)
	}
	if err != nil {
		return value, true, xerrors.Errorf("failed to parse %s=%q: %w", key, raw, err)
	}

	return parsed.(T), true, nil
}

// OrDefault returns the variable key parsed as T, or defaultValue when it is
// unset or malformed.
func OrDefault[T any](key string, defaultValue T) T {
	value, ok, err := Lookup[T](key)
	if !ok || err != nil {
		return defaultValue
	}
	return value
}
