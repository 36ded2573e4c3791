package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"studiobook/pkg/logger"
	"studiobook/pkg/model"
	"studiobook/pkg/timeutil"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type AvailabilityValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAvailabilityValidator(log *logger.Logger) *AvailabilityValidator {
	return &AvailabilityValidator{
		validate: validator.New(),
		logger:   log,
	}
}

// Validate rejects malformed configurations at write time so the composer
// never sees a zero-length window or a break escaping its rule.
func (v *AvailabilityValidator) Validate(cfg *model.AvailabilityConfig) error {
	if err := v.validate.Struct(cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	var errs ValidationErrors
	for i, rule := range cfg.Rules {
		errs = append(errs, validateRule(i, rule)...)
	}
	for i, ex := range cfg.Exceptions {
		errs = append(errs, validateException(i, ex)...)
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateRule(idx int, rule model.AvailabilityRule) ValidationErrors {
	var errs ValidationErrors
	field := fmt.Sprintf("Rules[%d]", idx)

	start, err := timeutil.ParseClock(rule.Start)
	if err != nil {
		errs = append(errs, ValidationError{Field: field + ".Start", Message: err.Error()})
	}
	end, err := timeutil.ParseClock(rule.End)
	if err != nil {
		errs = append(errs, ValidationError{Field: field + ".End", Message: err.Error()})
	}
	if len(errs) > 0 {
		return errs
	}

	if start >= end {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "window start must be before end",
		})
	}
	if rule.SlotMinutes%15 != 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".SlotMinutes",
			Message: "slot granularity must be a multiple of 15",
		})
	}

	for j, brk := range rule.Breaks {
		bField := fmt.Sprintf("%s.Breaks[%d]", field, j)
		bs, err := timeutil.ParseClock(brk.Start)
		if err != nil {
			errs = append(errs, ValidationError{Field: bField + ".Start", Message: err.Error()})
			continue
		}
		be, err := timeutil.ParseClock(brk.End)
		if err != nil {
			errs = append(errs, ValidationError{Field: bField + ".End", Message: err.Error()})
			continue
		}
		if bs >= be {
			errs = append(errs, ValidationError{Field: bField, Message: "break start must be before end"})
			continue
		}
		if bs < start || be > end {
			errs = append(errs, ValidationError{Field: bField, Message: "break must nest within the rule window"})
		}
	}
	return errs
}

func validateException(idx int, ex model.AvailabilityException) ValidationErrors {
	var errs ValidationErrors
	field := fmt.Sprintf("Exceptions[%d]", idx)

	for j, block := range ex.Blocks {
		bField := fmt.Sprintf("%s.Blocks[%d]", field, j)
		bs, err := timeutil.ParseClock(block.Start)
		if err != nil {
			errs = append(errs, ValidationError{Field: bField + ".Start", Message: err.Error()})
			continue
		}
		be, err := timeutil.ParseClock(block.End)
		if err != nil {
			errs = append(errs, ValidationError{Field: bField + ".End", Message: err.Error()})
			continue
		}
		if bs >= be {
			errs = append(errs, ValidationError{Field: bField, Message: "block start must be before end"})
		}
	}
	if ex.Closed && len(ex.Blocks) > 0 {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "a closed day cannot also carry blocked sub-windows",
		})
	}
	return errs
}

func (v *AvailabilityValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors
	for _, err := range errs {
		message := err.Error()
		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "datetime":
			message = fmt.Sprintf("%s must be a YYYY-MM-DD date", err.Field())
		}
		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}
	return validationErrors
}
