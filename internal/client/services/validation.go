package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/gophmail/internal/common"
)

var validate = validator.New()

// validateStruct runs struct tag validation and turns failures into a
// common.ErrValidation with a readable message.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.Validationf("%v", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", e.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s is not a valid email", e.Field()))
		case "dive", "required_without":
			msgs = append(msgs, fmt.Sprintf("%s is invalid", e.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("validation failed on field %s (%s)", e.Field(), e.Tag()))
		}
	}
	return common.Validationf("%s", strings.Join(msgs, ". "))
}
