package storefront

import (
	"encoding/json"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Kind tags every error returned at the auth service boundary.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindRateLimited  Kind = "rate_limited"
	KindNetwork      Kind = "network"
	KindUnknown      Kind = "unknown"
)

// Text codes set on every error built through NewError or WrapError.
const (
	TextCodeValidation   = "VALIDATION"
	TextCodeUnauthorized = "UNAUTHORIZED"
	TextCodeRateLimited  = "RATE_LIMITED"
	TextCodeNetwork      = "NETWORK"
	TextCodeUnknown      = "UNKNOWN"
)

// GenericErrorMessage is shown when nothing better can be extracted.
const GenericErrorMessage = "An unexpected error occurred"

// TextCode returns the go-errors text code for k.
func (k Kind) TextCode() string {
	switch k {
	case KindValidation:
		return TextCodeValidation
	case KindUnauthorized:
		return TextCodeUnauthorized
	case KindRateLimited:
		return TextCodeRateLimited
	case KindNetwork:
		return TextCodeNetwork
	default:
		return TextCodeUnknown
	}
}

// Category returns the go-errors category for k.
func (k Kind) Category() goerrors.Category {
	switch k {
	case KindValidation:
		return goerrors.CategoryValidation
	case KindUnauthorized:
		return goerrors.CategoryAuth
	case KindRateLimited:
		return goerrors.CategoryRateLimit
	case KindNetwork:
		return goerrors.CategoryOperation
	default:
		return goerrors.CategoryInternal
	}
}

func kindForTextCode(code string) (Kind, bool) {
	switch code {
	case TextCodeValidation:
		return KindValidation, true
	case TextCodeUnauthorized:
		return KindUnauthorized, true
	case TextCodeRateLimited:
		return KindRateLimited, true
	case TextCodeNetwork:
		return KindNetwork, true
	case TextCodeUnknown:
		return KindUnknown, true
	}
	return "", false
}

func kindForCategory(category goerrors.Category) Kind {
	switch category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return KindValidation
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return KindUnauthorized
	case goerrors.CategoryRateLimit:
		return KindRateLimited
	default:
		return KindUnknown
	}
}

// NewError builds a tagged error.
func NewError(kind Kind, message string) *goerrors.Error {
	return goerrors.New(message, kind.Category()).WithTextCode(kind.TextCode())
}

// WrapError tags source with kind. The message falls back to source's text.
func WrapError(source error, kind Kind, message string) *goerrors.Error {
	if source == nil {
		if message == "" {
			message = GenericErrorMessage
		}
		return NewError(kind, message)
	}
	if message == "" {
		message = source.Error()
	}
	return goerrors.Wrap(source, kind.Category(), message).WithTextCode(kind.TextCode())
}

// KindOf returns the Kind of err, KindUnknown for untagged errors.
// The text code wins over the category.
func KindOf(err error) Kind {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return KindUnknown
	}
	if kind, ok := kindForTextCode(richErr.TextCode); ok {
		return kind
	}
	return kindForCategory(richErr.Category)
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf returns the HTTP status recorded on err, zero when there is none.
func StatusOf(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		return richErr.Code
	}
	return 0
}

// MessageFromPayload walks the fallback chain used for error bodies:
// msg, message, error_description, error, the JSON dump of the payload and
// finally GenericErrorMessage.
func MessageFromPayload(payload map[string]any) string {
	for _, key := range []string{"msg", "message", "error_description", "error"} {
		if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	if len(payload) > 0 {
		if raw, err := json.Marshal(payload); err == nil {
			return string(raw)
		}
	}
	return GenericErrorMessage
}

// Describe turns any error into text suitable for an inline error region.
// Tagged errors yield their message, then their metadata is tried through
// MessageFromPayload, then the wrapped source.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		if strings.TrimSpace(richErr.Message) != "" {
			return richErr.Message
		}
		if len(richErr.Metadata) > 0 {
			return MessageFromPayload(richErr.Metadata)
		}
		if richErr.Source != nil {
			return Describe(richErr.Source)
		}
		return GenericErrorMessage
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return GenericErrorMessage
}
