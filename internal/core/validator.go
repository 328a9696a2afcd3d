package core

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"raincheck/internal/types"
)

// Validator wraps go-playground/validator for request-body validation.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator with struct-tag validation enabled.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{
		validate: validator.New(),
		logger:   logger,
	}
}

// ValidateStruct validates dst against its struct tags. Violations are
// returned as a single validation AppError with one detail entry per field.
func (v *Validator) ValidateStruct(dst interface{}) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	details := make(map[string]any, len(validationErrs))
	for _, fe := range validationErrs {
		details[strings.ToLower(fe.Field())] = fmt.Sprintf("failed %q constraint", fe.Tag())
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationInvalidJSON,
		"request validation failed",
		err,
		details,
	)
}
