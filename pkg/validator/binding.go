package validator

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	playground "github.com/go-playground/validator/v10"

	"medbook/pkg/slots"
)

// RegisterBindings добавляет в движок валидации gin теги:
//
//	clock   - время HH:MM
//	isodate - дата YYYY-MM-DD
//	phone   - телефон, допустимый после FormatPhone
func RegisterBindings() error {
	v, ok := binding.Validator.Engine().(*playground.Validate)
	if !ok {
		return errors.New("движок валидации gin не поддерживается")
	}

	return Register(v)
}

func Register(v *playground.Validate) error {
	tags := map[string]playground.Func{
		"clock":   validateClock,
		"isodate": validateISODate,
		"phone":   validatePhoneField,
	}

	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}

	return nil
}

func validateClock(fl playground.FieldLevel) bool {
	_, err := slots.ParseClock(fl.Field().String())
	return err == nil
}

func validateISODate(fl playground.FieldLevel) bool {
	_, err := slots.ParseDate(fl.Field().String())
	return err == nil
}

func validatePhoneField(fl playground.FieldLevel) bool {
	return ValidatePhone(FormatPhone(fl.Field().String()))
}
