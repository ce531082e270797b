package forms

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	MsgInvalidEmail     = "Please enter a valid email address"
	MsgPasswordLength   = "Password must be at least 8 characters"
	MsgPasswordStrength = "Password must contain at least one uppercase letter, one lowercase letter, and one number"
	MsgPasswordMismatch = "Passwords don't match"
	MsgAcceptTerms      = "You must accept the terms and conditions"
	MsgFirstName        = "First name is required"
	MsgLastName         = "Last name is required"
	MsgFullName         = "Full name is required"
	MsgFullNameLength   = "Full name must be at most 200 characters"
	MsgInvalidPhone     = "Please enter a valid phone number"
)

const minPasswordLength = 8

var (
	lowerRe = regexp.MustCompile(`[a-z]`)
	upperRe = regexp.MustCompile(`[A-Z]`)
	digitRe = regexp.MustCompile(`\d`)
)

func emailRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error(MsgInvalidEmail),
		is.Email.Error(MsgInvalidEmail),
	}
}

func passwordLengthRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error(MsgPasswordLength),
		validation.RuneLength(minPasswordLength, 0).Error(MsgPasswordLength),
	}
}

// newPasswordRules are the rules for a password being chosen. Each class is
// a separate presence check so the order of characters never matters.
func newPasswordRules() []validation.Rule {
	return append(passwordLengthRules(),
		validation.Match(lowerRe).Error(MsgPasswordStrength),
		validation.Match(upperRe).Error(MsgPasswordStrength),
		validation.Match(digitRe).Error(MsgPasswordStrength),
	)
}

// notBlank fails on strings that are empty after trimming.
func notBlank(message string) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return errors.New(message)
		}
		return nil
	})
}

// confirmMatches attributes a mismatch to confirm_password unless that field
// already failed.
func confirmMatches(fe FieldErrors, password, confirm string) {
	if fe.Has("confirm_password") {
		return
	}
	if password != confirm {
		fe["confirm_password"] = MsgPasswordMismatch
	}
}
