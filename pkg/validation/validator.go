// Package validation wraps go-playground/validator with the module's custom
// field rules and a single entry point, so every handler validates request
// structs the same way before they reach a service.
package validation

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
)

// Validator wraps validator.Validate with the module's custom rules.
type Validator struct {
	validate *validator.Validate
}

// New constructs a Validator with custom rules registered.
func New() *Validator {
	v := validator.New()
	v.RegisterValidation("safe_string", validateSafeString)
	v.RegisterValidation("idempotency_key", validateIdempotencyKey)
	v.RegisterValidation("currency_code", validateCurrencyCode)
	return &Validator{validate: v}
}

// Validate runs struct-tag validation and returns a KindValidation error on
// failure; callers never see the raw validator error across the HTTP
// boundary (no internal detail disclosure, per SPEC_FULL.md §7).
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return errs.Wrap(errs.KindValidation, "request failed validation", err)
	}
	return nil
}

// validateSafeString rejects values containing common injection markers.
// Used on free-text fields that flow into logs or audit details.
func validateSafeString(fl validator.FieldLevel) bool {
	str := strings.ToLower(fl.Field().String())
	dangerous := []string{
		"<script", "</script>", "javascript:", "onerror=", "onload=",
		"select ", "insert ", "update ", "delete ", "drop ", "union ",
		"--", "/*", "*/",
	}
	for _, pattern := range dangerous {
		if strings.Contains(str, pattern) {
			return false
		}
	}
	return true
}

// validateIdempotencyKey enforces the 64-char max recommended by
// SPEC_FULL.md §6 and restricts the charset to avoid ambiguity in logs.
var idempotencyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_\-\.]{1,64}$`)

func validateIdempotencyKey(fl validator.FieldLevel) bool {
	return idempotencyKeyPattern.MatchString(fl.Field().String())
}

// validateCurrencyCode requires an ISO-4217-shaped three-letter code.
var currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

func validateCurrencyCode(fl validator.FieldLevel) bool {
	return currencyCodePattern.MatchString(fl.Field().String())
}

// Pagination is the standard request shape for list operations.
type Pagination struct {
	Limit  int    `form:"limit" validate:"min=1,max=100" json:"limit"`
	Cursor string `form:"cursor" validate:"omitempty" json:"cursor"`
}
