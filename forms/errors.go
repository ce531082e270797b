package forms

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// FieldErrors maps a field name to its first failing message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return strings.Join(parts, "; ")
}

// Get returns the message for field or "".
func (fe FieldErrors) Get(field string) string {
	if fe == nil {
		return ""
	}
	return fe[field]
}

// Has reports whether field failed.
func (fe FieldErrors) Has(field string) bool {
	_, ok := fe[field]
	return ok
}

// Of extracts FieldErrors from a Validate result. Non validation errors are
// reported under the empty key.
func Of(err error) FieldErrors {
	if err == nil {
		return nil
	}

	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe
	}

	var ve validation.Errors
	if errors.As(err, &ve) {
		return fromValidation(ve)
	}
	return FieldErrors{"": err.Error()}
}

func fromValidation(ve validation.Errors) FieldErrors {
	out := FieldErrors{}
	for field, err := range ve {
		if err == nil {
			continue
		}
		out[field] = err.Error()
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// finish turns a ValidateStruct result into FieldErrors.
func finish(err error) (FieldErrors, error) {
	if err == nil {
		return FieldErrors{}, nil
	}
	var ve validation.Errors
	if errors.As(err, &ve) {
		out := fromValidation(ve)
		if out == nil {
			out = FieldErrors{}
		}
		return out, nil
	}
	// internal errors come from misconfigured rules
	return nil, err
}

func result(fe FieldErrors) error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}
