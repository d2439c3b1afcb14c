package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	validator.RegisterValidation("positive_amount", validatePositiveAmount)
	validator.RegisterValidation("refund_initiator", validateRefundInitiator)

	return validator
}

func validatePositiveAmount(fl validator.FieldLevel) bool {
	amount, ok := fl.Field().Interface().(decimal.Decimal)
	if !ok {
		return false
	}

	return amount.IsPositive()
}

func validateRefundInitiator(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "user", "admin", "system":
		return true
	default:
		return false
	}
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "iso4217":
		return "must be a valid ISO 4217 currency code"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", err.Param())
	case "positive_amount":
		return "must be a positive amount"
	case "refund_initiator":
		return "must be one of: user, admin, system"
	default:
		return "is invalid"
	}
}
