package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground struct validation for data loaded from
// outside request binding (protocol template files, worker env).
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (val *Validator) Validate(obj interface{}) error {
	if err := val.v.Struct(obj); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("field %s failed %q validation", first.Namespace(), first.Tag())
		}
		return err
	}
	return nil
}

func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}
