package meta

import (
	"errors"
	"fmt"

	"github.com/agnivade/levenshtein"
	"github.com/go-playground/validator/v10"

	"github.com/loomworks/loom/pkg/fault"
)

// validate is the shared validator instance; validator.Validate is
// safe for concurrent use.
var validate = validator.New()

// Validate checks policy configuration values (negative retry counts,
// negative timeouts, malformed levels). It fails fast, before any I/O,
// with a structural error naming the offending field.
func Validate(m Meta) error {
	if err := validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fault.Structural(
				fmt.Sprintf("invalid policy config: field %s failed %q", f.Namespace(), f.Tag()),
				nil,
			).WithCode(fault.CodeValidation)
		}
		return fault.Structural("invalid policy config", err).WithCode(fault.CodeValidation)
	}
	return nil
}

// Suggest returns the closest known key to unknown within a small edit
// distance, or "" when nothing is close enough to be a plausible typo.
func Suggest(unknown string, known []string) string {
	best, bestDist := "", 3
	for _, k := range known {
		if d := levenshtein.ComputeDistance(unknown, k); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

// UnknownKeyError builds the structural error for a declared key no
// registered macro can satisfy, with a fuzzy-matched suggestion when
// one is plausible.
func UnknownKeyError(key string, known []string) error {
	msg := fmt.Sprintf("no registered macro satisfies declared capability %q", key)
	if s := Suggest(key, known); s != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", s)
	}
	return fault.Structural(msg, nil).WithCode(fault.CodeUnknownCap)
}
