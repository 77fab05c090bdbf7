package checkout

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/appetiteclub/storefront/services/storefront/internal/api"
)

var (
	phonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

type ValidationError = api.ValidationError

type ValidationErrors = api.ValidationErrors

// CustomerForm is what the shopper types into the checkout overlay.
type CustomerForm struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

func (f CustomerForm) Validate() ValidationErrors {
	var errs ValidationErrors

	if utf8.RuneCountInString(strings.TrimSpace(f.Name)) < 2 {
		errs = append(errs, ValidationError{Field: "name", Message: "Name must be at least 2 characters"})
	}
	if !phonePattern.MatchString(strings.TrimSpace(f.Phone)) {
		errs = append(errs, ValidationError{Field: "phone", Message: "Invalid phone number"})
	}
	if email := strings.TrimSpace(f.Email); email != "" && !emailPattern.MatchString(email) {
		errs = append(errs, ValidationError{Field: "email", Message: "Invalid email"})
	}
	if addr := strings.TrimSpace(f.Address); addr != "" && utf8.RuneCountInString(addr) < 10 {
		errs = append(errs, ValidationError{Field: "address", Message: "Address must be at least 10 characters"})
	}
	if utf8.RuneCountInString(f.Notes) > 500 {
		errs = append(errs, ValidationError{Field: "notes", Message: "Notes too long"})
	}

	return errs
}

func (f CustomerForm) details() api.CustomerDetails {
	return api.CustomerDetails{
		Name:    strings.TrimSpace(f.Name),
		Phone:   strings.TrimSpace(f.Phone),
		Email:   strings.TrimSpace(f.Email),
		Address: strings.TrimSpace(f.Address),
	}
}
