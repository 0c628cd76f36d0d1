package validator

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerForm struct {
	Username string `form:"username" validate:"required,username"`
	Email    string `form:"email" validate:"required,email"`
}

func TestCustomValidator(t *testing.T) {
	v := New(8)

	tests := []struct {
		name   string
		form   registerForm
		fields map[string]string
	}{
		{name: "valid", form: registerForm{Username: "alice_1", Email: "alice@example.com"}},
		{name: "missing username", form: registerForm{Email: "alice@example.com"}, fields: map[string]string{"username": "required"}},
		{name: "bad charset", form: registerForm{Username: "al ice", Email: "alice@example.com"}, fields: map[string]string{"username": "username"}},
		{name: "too long", form: registerForm{Username: "alice_long", Email: "alice@example.com"}, fields: map[string]string{"username": "username"}},
		{name: "bad email", form: registerForm{Username: "alice", Email: "nope"}, fields: map[string]string{"email": "email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.form)
			if tt.fields == nil {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Equal(t, tt.fields, FieldErrors(err))
		})
	}
}

func TestFieldErrors_NonValidationError(t *testing.T) {
	assert.Nil(t, FieldErrors(errors.New("boom")))
}
