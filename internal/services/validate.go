package services

import (
	"math"
	"strings"

	"github.com/dmitrijs2005/orcafacil/internal/common"
)

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return common.Invalid(field, "is required")
	}
	return nil
}

func nonNegative(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return common.Invalid(field, "must be a finite number")
	}
	if v < 0 {
		return common.Invalid(field, "must not be negative")
	}
	return nil
}

// firstErr returns the first non-nil error.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
