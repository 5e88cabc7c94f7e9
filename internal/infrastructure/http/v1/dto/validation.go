package dto

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"invoicenum/internal/core/numerator"
)

// RegisterValidators installs the numbering binding tags on gin's validator.
// Safe to call more than once.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("numbering_template", validateTemplate); err != nil {
		return fmt.Errorf("register numbering_template: %w", err)
	}
	if err := v.RegisterValidation("reset_period", validateResetPeriod); err != nil {
		return fmt.Errorf("register reset_period: %w", err)
	}
	return nil
}

func validateTemplate(fl validator.FieldLevel) bool {
	return numerator.Validate(fl.Field().String()) == nil
}

func validateResetPeriod(fl validator.FieldLevel) bool {
	return numerator.ResetPeriod(fl.Field().String()).IsValid()
}
