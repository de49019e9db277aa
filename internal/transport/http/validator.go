package http

import (
	"errors"
	"fmt"
	"strings"

	"arcfolio/internal/domain/models"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator регистрирует правило project_category поверх стандартных
func NewValidator() *CustomValidator {
	validate := validator.New()
	_ = validate.RegisterValidation("project_category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).Valid()
	})

	return &CustomValidator{validator: validate}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	return errors.New(strings.Join(lo.Map(fieldErrs, func(fe validator.FieldError, _ int) string {
		return fieldMessage(fe)
	}), "; "))
}

func fieldMessage(fe validator.FieldError) string {
	if fe.Tag() == "project_category" {
		names := lo.Map(models.Categories(), func(c models.Category, _ int) string { return string(c) })
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.Join(names, ", "))
	}
	return fe.Error()
}
