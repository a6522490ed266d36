package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginRequest_Validate(t *testing.T) {
	tests := []struct {
		name  string
		req   LoginRequest
		field string
	}{
		{name: "valid", req: LoginRequest{Email: "Ana@Example.com ", Password: "secret"}},
		{name: "malformed email", req: LoginRequest{Email: "abc", Password: "secret"}, field: "email"},
		{name: "empty email", req: LoginRequest{Password: "secret"}, field: "email"},
		{name: "short password", req: LoginRequest{Email: "ana@example.com", Password: "12345"}, field: "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Normalize().Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.NotEmpty(t, ve.Message)
		})
	}
}

func TestLoginRequest_Normalize(t *testing.T) {
	r := LoginRequest{Email: "  Ana@Example.COM ", Password: " pw "}.Normalize()
	assert.Equal(t, "ana@example.com", r.Email)
	assert.Equal(t, " pw ", r.Password, "password must be kept verbatim")
}

func TestRegisterRequest_Validate(t *testing.T) {
	valid := RegisterRequest{
		Username:        "ana_g",
		Email:           "ana@example.com",
		Phone:           "+34 612 34 56 78",
		Password:        "Secreto12",
		ConfirmPassword: "Secreto12",
		AcceptTerms:     true,
	}
	require.NoError(t, valid.Normalize().Validate())

	tests := []struct {
		name   string
		modify func(r *RegisterRequest)
		field  string
	}{
		{name: "terms not accepted", modify: func(r *RegisterRequest) { r.AcceptTerms = false }, field: "acceptTerms"},
		{name: "short username", modify: func(r *RegisterRequest) { r.Username = "ab" }, field: "username"},
		{name: "username with spaces", modify: func(r *RegisterRequest) { r.Username = "ana garcia" }, field: "username"},
		{name: "bad email", modify: func(r *RegisterRequest) { r.Email = "ana@" }, field: "email"},
		{name: "foreign phone", modify: func(r *RegisterRequest) { r.Phone = "+44 7700 900123" }, field: "phone"},
		{name: "weak password", modify: func(r *RegisterRequest) { r.Password, r.ConfirmPassword = "secreto12", "secreto12" }, field: "password"},
		{name: "mismatched confirmation", modify: func(r *RegisterRequest) { r.ConfirmPassword = "Secreto13" }, field: "confirmPassword"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.modify(&r)
			var ve *ValidationError
			require.ErrorAs(t, r.Normalize().Validate(), &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	t.Run("phone is optional", func(t *testing.T) {
		r := valid
		r.Phone = ""
		require.NoError(t, r.Normalize().Validate())
	})
}

func TestIsValidPhone(t *testing.T) {
	for _, s := range []string{"612345678", "+34612345678", "0034 912-345-678", "(0034) 912 345 678", "712345678"} {
		assert.True(t, IsValidPhone(s), s)
	}
	for _, s := range []string{"512345678", "61234567", "+33612345678", "phone"} {
		assert.False(t, IsValidPhone(s), s)
	}
}

func TestIsStrongPassword(t *testing.T) {
	assert.True(t, IsStrongPassword("Abcdefg1"))
	assert.False(t, IsStrongPassword("Abcdef1"), "too short")
	assert.False(t, IsStrongPassword("abcdefg1"), "no upper")
	assert.False(t, IsStrongPassword("ABCDEFG1"), "no lower")
	assert.False(t, IsStrongPassword("Abcdefgh"), "no digit")
}
