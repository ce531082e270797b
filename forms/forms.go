// Package forms holds the validation schemas for the storefront forms.
// Every Validate returns nil or FieldErrors keyed by the json field name.
package forms

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"
)

// SignInForm is the sign in form.
type SignInForm struct {
	Email      string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

func (f SignInForm) Validate() error {
	fe, err := finish(validation.ValidateStruct(&f,
		validation.Field(&f.Email, emailRules()...),
		validation.Field(&f.Password, passwordLengthRules()...),
	))
	if err != nil {
		return err
	}
	return result(fe)
}

// SignUpForm is the registration form.
type SignUpForm struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
	AcceptTerms     string `form:"accept_terms" json:"accept_terms"`
}

func (f SignUpForm) Validate() error {
	fe, err := finish(validation.ValidateStruct(&f,
		validation.Field(&f.FirstName, notBlank(MsgFirstName)),
		validation.Field(&f.LastName, notBlank(MsgLastName)),
		validation.Field(&f.Email, emailRules()...),
		validation.Field(&f.Password, newPasswordRules()...),
		validation.Field(&f.AcceptTerms,
			validation.Required.Error(MsgAcceptTerms),
			validation.In("true", "on").Error(MsgAcceptTerms),
		),
	))
	if err != nil {
		return err
	}
	confirmMatches(fe, f.Password, f.ConfirmPassword)
	return result(fe)
}

// Metadata is the user metadata stored with a new account.
func (f SignUpForm) Metadata() map[string]any {
	first := strings.TrimSpace(f.FirstName)
	last := strings.TrimSpace(f.LastName)
	return map[string]any{
		"first_name": first,
		"last_name":  last,
		"full_name":  strings.TrimSpace(first + " " + last),
	}
}

// ForgotPasswordForm requests a password reset email.
type ForgotPasswordForm struct {
	Email string `form:"email" json:"email"`
}

func (f ForgotPasswordForm) Validate() error {
	fe, err := finish(validation.ValidateStruct(&f,
		validation.Field(&f.Email, emailRules()...),
	))
	if err != nil {
		return err
	}
	return result(fe)
}

// ResetPasswordForm sets a new password.
type ResetPasswordForm struct {
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

func (f ResetPasswordForm) Validate() error {
	fe, err := finish(validation.ValidateStruct(&f,
		validation.Field(&f.Password, newPasswordRules()...),
	))
	if err != nil {
		return err
	}
	confirmMatches(fe, f.Password, f.ConfirmPassword)
	return result(fe)
}

// ProfileForm edits the account profile. Region is the default region used
// to parse phone numbers without a country code.
type ProfileForm struct {
	FullName string `form:"full_name" json:"full_name"`
	Phone    string `form:"phone" json:"phone"`
	Region   string `form:"-" json:"-"`
}

func (f ProfileForm) Validate() error {
	fe, err := finish(validation.ValidateStruct(&f,
		validation.Field(&f.FullName,
			notBlank(MsgFullName),
			validation.RuneLength(1, 200).Error(MsgFullNameLength),
		),
		validation.Field(&f.Phone, validation.By(f.validPhone)),
	))
	if err != nil {
		return err
	}
	return result(fe)
}

func (f ProfileForm) validPhone(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, ok := f.parsePhone(s); !ok {
		return errors.New(MsgInvalidPhone)
	}
	return nil
}

func (f ProfileForm) parsePhone(raw string) (*phonenumbers.PhoneNumber, bool) {
	region := strings.ToUpper(strings.TrimSpace(f.Region))
	if region == "" {
		region = "US"
	}
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return nil, false
	}
	return num, true
}

// NormalizedPhone returns the phone in E.164 form, "" when empty or invalid.
func (f ProfileForm) NormalizedPhone() string {
	if strings.TrimSpace(f.Phone) == "" {
		return ""
	}
	num, ok := f.parsePhone(f.Phone)
	if !ok {
		return ""
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// TrimmedName returns the full name without surrounding spaces.
func (f ProfileForm) TrimmedName() string {
	return strings.TrimSpace(f.FullName)
}
