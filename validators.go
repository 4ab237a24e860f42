package dynform

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/reoring/dynform/condition"
)

// ValidationErrors maps an error key (required, min, pattern, ...) to its
// payload.
type ValidationErrors map[string]any

// ValidatorFunc checks a value and returns nil when it is valid.
type ValidatorFunc func(value any) ValidationErrors

// Built-in validator names.
const (
	ValidatorRequired     = "required"
	ValidatorRequiredTrue = "requiredTrue"
	ValidatorEmail        = "email"
	ValidatorPattern      = "pattern"
	ValidatorMin          = "min"
	ValidatorMax          = "max"
	ValidatorMinLength    = "minLength"
	ValidatorMaxLength    = "maxLength"
)

// IsBuiltinValidator reports whether name selects a built-in validator.
func IsBuiltinValidator(name string) bool {
	switch name {
	case ValidatorRequired, ValidatorRequiredTrue, ValidatorEmail, ValidatorPattern,
		ValidatorMin, ValidatorMax, ValidatorMinLength, ValidatorMaxLength:
		return true
	default:
		return false
	}
}

var emailRe = regexp.MustCompile(`^[^@\s!(){}<>]+@[\w-]+(\.[A-Za-z]+)+$`)

// Required fails on nil, "", and empty lists or maps.
func Required(v any) ValidationErrors {
	if isEmptyValue(v) {
		return ValidationErrors{"required": true}
	}
	return nil
}

// RequiredTrue fails unless v is the boolean true.
func RequiredTrue(v any) ValidationErrors {
	if b, ok := v.(bool); ok && b {
		return nil
	}
	return ValidationErrors{"required": true}
}

// Email checks the address format. Empty values pass.
func Email(v any) ValidationErrors {
	if isEmptyValue(v) {
		return nil
	}
	s, ok := v.(string)
	if ok && emailRe.MatchString(s) {
		return nil
	}
	return ValidationErrors{"email": "Invalid email format"}
}

// compileValidator turns a spec into a ValidatorFunc. Unknown names and bad
// arguments compile to a no-op and an error describing the problem.
func compileValidator(spec ValidatorSpec, custom map[string]ValidatorFunc) (ValidatorFunc, error) {
	switch spec.Name {
	case ValidatorRequired:
		return Required, nil
	case ValidatorRequiredTrue:
		return RequiredTrue, nil
	case ValidatorEmail:
		return Email, nil
	case ValidatorPattern:
		re, err := compilePattern(spec)
		if err != nil {
			return nullValidator, err
		}
		return patternValidator(re), nil
	case ValidatorMin, ValidatorMax:
		bound, ok := toNumber(spec.Value)
		if !ok {
			return nullValidator, fmt.Errorf("%s expects a number, got %v", spec.Name, spec.Value)
		}
		return boundValidator(spec.Name, bound), nil
	case ValidatorMinLength, ValidatorMaxLength:
		n, ok := toNumber(spec.Value)
		if !ok || n < 0 {
			return nullValidator, fmt.Errorf("%s expects a non-negative number, got %v", spec.Name, spec.Value)
		}
		return lengthValidator(spec.Name == ValidatorMinLength, int(n)), nil
	}
	if fn, ok := custom[spec.Name]; ok && fn != nil {
		return fn, nil
	}
	return nullValidator, errUnknownValidator
}

var errUnknownValidator = errors.New("unknown validator")

func nullValidator(any) ValidationErrors { return nil }

func compilePattern(spec ValidatorSpec) (*regexp.Regexp, error) {
	src := fmt.Sprint(spec.Value)
	if spec.Value == nil || src == "" {
		return nil, errors.New("pattern expects a regular expression")
	}
	// keep only the flags RE2 understands; g/y/u have no meaning here
	var flags strings.Builder
	for _, f := range spec.Flags {
		switch f {
		case 'i', 'm', 's', 'U':
			flags.WriteRune(f)
		}
	}
	if flags.Len() > 0 {
		src = "(?" + flags.String() + ")" + src
	}
	return regexp.Compile(src)
}

func patternValidator(re *regexp.Regexp) ValidatorFunc {
	return func(v any) ValidationErrors {
		if isEmptyValue(v) {
			return nil
		}
		s := stringOf(v)
		if re.MatchString(s) {
			return nil
		}
		return ValidationErrors{"pattern": map[string]any{
			"requiredPattern": re.String(),
			"actualValue":     s,
		}}
	}
}

func boundValidator(name string, bound float64) ValidatorFunc {
	return func(v any) ValidationErrors {
		if isEmptyValue(v) {
			return nil
		}
		n, ok := toNumber(v)
		if !ok {
			return nil
		}
		if (name == ValidatorMin && n < bound) || (name == ValidatorMax && n > bound) {
			return ValidationErrors{name: map[string]any{name: bound, "actual": v}}
		}
		return nil
	}
}

func lengthValidator(isMin bool, want int) ValidatorFunc {
	key := "maxlength"
	if isMin {
		key = "minlength"
	}
	return func(v any) ValidationErrors {
		if isEmptyValue(v) {
			return nil
		}
		n, ok := lengthOf(v)
		if !ok {
			return nil
		}
		if (isMin && n < want) || (!isMin && n > want) {
			return ValidationErrors{key: map[string]any{"requiredLength": want, "actualLength": n}}
		}
		return nil
	}
}

// isEmptyValue mirrors the usual required semantics: nil, "" and zero-length
// collections are empty; false and 0 are not.
func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

func lengthOf(v any) (int, bool) {
	if s, ok := v.(string); ok {
		return utf8.RuneCountInString(s), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len(), true
	default:
		return 0, false
	}
}

// toNumber accepts numeric values and numeric strings.
func toNumber(v any) (float64, bool) {
	if f, ok := condition.ToFloat(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

func stringOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
