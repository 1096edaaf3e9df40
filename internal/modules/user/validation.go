// README: Sign-up and contact-info validation rules with user-facing messages.
package user

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"newber/internal/apperr"
)

var phonePattern = regexp.MustCompile(`^[+]?[0-9]{10,13}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

var fieldMessages = map[string]string{
	"phone":   "please enter a valid phone number",
	"email":   "please enter a valid email address",
	"eqfield": "passwords do not match",
}

// check runs struct validation and turns the first failure into a ValidationError.
func check(cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation(err.Error())
	}

	// Missing fields are reported before format problems.
	for _, fe := range verrs {
		if fe.Tag() == "required" && fe.Field() != "Role" {
			return apperr.Validation("please enter all fields")
		}
	}
	fe := verrs[0]
	if fe.Field() == "Role" {
		return apperr.Validation("please select an account type")
	}
	if msg, ok := fieldMessages[fe.Tag()]; ok {
		return apperr.Validation(msg)
	}
	return apperr.Validation("invalid " + strings.ToLower(fe.Field()))
}
