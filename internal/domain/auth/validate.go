package auth

import (
	"regexp"
	"strings"
)

const (
	minLoginPasswordLen    = 6
	minRegisterPasswordLen = 8
	minUsernameLen         = 3
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	// Spanish mobile and landline numbers with optional country prefix.
	phonePattern  = regexp.MustCompile(`^(\+34|0034)?[6789]\d{8}$`)
	phoneStripper = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// LoginRequest holds the login form.
type LoginRequest struct {
	Email    string
	Password string
}

// Normalize trims and lower-cases the email.
func (r LoginRequest) Normalize() LoginRequest {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	return r
}

// Validate checks the form without contacting the provider.
func (r LoginRequest) Validate() error {
	if !IsValidEmail(r.Email) {
		return &ValidationError{Field: "email", Message: "Por favor, introduce un email válido"}
	}
	if len(r.Password) < minLoginPasswordLen {
		return &ValidationError{Field: "password", Message: "La contraseña debe tener al menos 6 caracteres"}
	}
	return nil
}

// RegisterRequest holds the registration form.
type RegisterRequest struct {
	Username        string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
	AcceptTerms     bool
}

// Normalize applies the same clean-up the form inputs do.
func (r RegisterRequest) Normalize() RegisterRequest {
	r.Username = strings.ToLower(strings.TrimSpace(r.Username))
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	return r
}

// Validate checks the form in the order the fields are presented.
func (r RegisterRequest) Validate() error {
	switch {
	case !r.AcceptTerms:
		return &ValidationError{Field: "acceptTerms", Message: "Debes aceptar la Política de Privacidad para continuar"}
	case len(r.Username) < minUsernameLen:
		return &ValidationError{Field: "username", Message: "El nombre de usuario debe tener al menos 3 caracteres"}
	case !usernamePattern.MatchString(r.Username):
		return &ValidationError{Field: "username", Message: "El nombre de usuario solo puede contener letras, números, guiones y puntos"}
	case !IsValidEmail(r.Email):
		return &ValidationError{Field: "email", Message: "Por favor, introduce un email válido"}
	case r.Phone != "" && !IsValidPhone(r.Phone):
		return &ValidationError{Field: "phone", Message: "Por favor, introduce un número de teléfono español válido (ej: 612345678)"}
	case !IsStrongPassword(r.Password):
		return &ValidationError{Field: "password", Message: "La contraseña debe tener al menos 8 caracteres, una mayúscula, una minúscula y un número"}
	case r.Password != r.ConfirmPassword:
		return &ValidationError{Field: "confirmPassword", Message: "Las contraseñas no coinciden"}
	}
	return nil
}

// IsValidEmail reports whether s looks like an email address.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// IsValidPhone accepts Spanish numbers such as "+34 612 34 56 78",
// "612345678" or "(0034) 912-345-678".
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(phoneStripper.Replace(s))
}

// IsStrongPassword requires 8+ characters with upper, lower and digit.
func IsStrongPassword(s string) bool {
	if len(s) < minRegisterPasswordLen {
		return false
	}
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	return upper && lower && digit
}
