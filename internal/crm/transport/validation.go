package transport

import (
	"estate_crm_backend/internal/crm/domain"
	"estate_crm_backend/platform/validator"

	playground "github.com/go-playground/validator/v10"
)

// RegisterValidators adds the CRM enum rules used in validate tags:
// stage, approval, paymentMethod, paymentStatus and paymentPurpose.
func RegisterValidators(val *validator.Validator) error {
	rules := map[string]func(string) error{
		"stage":          func(s string) error { _, err := domain.ParseStage(s); return err },
		"approval":       func(s string) error { _, err := domain.ParseApprovalState(s); return err },
		"paymentMethod":  func(s string) error { _, err := domain.ParsePaymentMethod(s); return err },
		"paymentStatus":  func(s string) error { _, err := domain.ParsePaymentStatus(s); return err },
		"paymentPurpose": func(s string) error { _, err := domain.ParsePaymentPurpose(s); return err },
	}
	for tag, parse := range rules {
		parse := parse
		err := val.RegisterValidation(tag, func(fl playground.FieldLevel) bool {
			return parse(fl.Field().String()) == nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
