package model

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// NewValidator returns a validator that understands the model's custom types
// and the notblank tag.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if t, ok := field.Interface().(EventTime); ok {
			return t.Time
		}
		return nil
	}, EventTime{})
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return v
}
