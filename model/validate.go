package model

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/loadmesh/jenkins-converge/core/common"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func nonEmptyString(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return invalid("%s must not be empty", field)
	}
	return nil
}

func nonNegativeInt(field string, v int) error {
	if v < 0 {
		return invalid("%s must be >= 0, got %d", field, v)
	}
	return nil
}

func enumOf[T ~string](field string, v T, allowed ...T) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return invalid("%s must be one of %v, got %q", field, allowed, v)
}

// setOfString checks tags that end up space-delimited on the wire.
func setOfString(field string, s mapset.Set[string]) error {
	if s == nil {
		return nil
	}
	for _, tag := range s.ToSlice() {
		if tag == "" || strings.ContainsAny(tag, " \t\n") {
			return invalid("%s contains an invalid tag %q", field, tag)
		}
	}
	return nil
}

func emptyUnless(field string, set bool, cond bool, variant string) error {
	if set && !cond {
		return invalid("%s is only valid for the %s variant", field, variant)
	}
	return nil
}

// firstError returns the first non-nil check result.
func firstError(checks ...error) error {
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}
