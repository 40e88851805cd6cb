package validate

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string          `json:"email" validate:"required,email"`
	Name     string          `json:"full_name" validate:"notblank"`
	Role     string          `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
	Deposit  decimal.Decimal `json:"deposit" validate:"gt=0"`
	Starts   string          `json:"starts" validate:"omitempty,datetime=2006-01-02"`
	Internal string          `json:"-"`
}

func TestStruct(t *testing.T) {
	valid := signup{Email: "a@example.com", Name: "A", Deposit: decimal.NewFromInt(1)}

	tests := []struct {
		name   string
		mutate func(s *signup)
		want   []FieldError
	}{
		{"valid", func(*signup) {}, nil},
		{"missing email", func(s *signup) { s.Email = "" },
			[]FieldError{{"email", "email is required"}}},
		{"bad email", func(s *signup) { s.Email = "not-an-email" },
			[]FieldError{{"email", "email must be a valid email address"}}},
		{"blank name", func(s *signup) { s.Name = "   " },
			[]FieldError{{"full_name", "full_name is required"}}},
		{"unknown role", func(s *signup) { s.Role = "owner" },
			[]FieldError{{"role", "role must be one of: user, admin"}}},
		{"zero deposit", func(s *signup) { s.Deposit = decimal.Zero },
			[]FieldError{{"deposit", "deposit must be greater than 0"}}},
		{"fractional deposit", func(s *signup) { s.Deposit = decimal.RequireFromString("0.5") }, nil},
		{"bad date", func(s *signup) { s.Starts = "05/01/2025" },
			[]FieldError{{"starts", "starts must be a date in YYYY-MM-DD format"}}},
		{"several", func(s *signup) { s.Email = ""; s.Name = "" },
			[]FieldError{{"email", "email is required"}, {"full_name", "full_name is required"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)

			err := Struct(&s)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}

			var verr *Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.want, verr.Fields)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Run("malformed", func(t *testing.T) {
		var s signup
		err := DecodeJSON(httptest.NewRequest("POST", "/", strings.NewReader(`{`)), &s)
		assert.ErrorIs(t, err, ErrInvalidBody)
		assert.Equal(t, "Invalid request body", Message(err))
	})

	t.Run("invalid fields", func(t *testing.T) {
		var s signup
		err := DecodeJSON(httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"x","full_name":"A","deposit":"10"}`)), &s)
		assert.NotErrorIs(t, err, ErrInvalidBody)
		assert.Equal(t, "email must be a valid email address", Message(err))
	})

	t.Run("valid", func(t *testing.T) {
		var s signup
		err := DecodeJSON(httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@example.com","full_name":"A","deposit":1500000}`)), &s)
		require.NoError(t, err)
		assert.True(t, s.Deposit.Equal(decimal.NewFromInt(1500000)))
	})
}
