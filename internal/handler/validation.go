package handler

import (
	"github.com/go-playground/validator/v10"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
)

// NewValidator returns a validator with the pipeline's custom tags
// registered: blendmode and streamtag.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("blendmode", func(fl validator.FieldLevel) bool {
		return model.BlendMode(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("streamtag", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseStreamTag(fl.Field().String())
		return ok
	})
	return v
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
