package validation

import (
	"reflect"
	"regexp"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var nonDigits = regexp.MustCompile(`\D`)

// New returns a configured validator with the storefront's custom rules registered.
// Field names in errors are the JSON names.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// phone10: exactly ten digits once spaces, dashes and brackets are stripped.
	_ = v.RegisterValidation("phone10", func(fl validatorv10.FieldLevel) bool {
		return len(nonDigits.ReplaceAllString(fl.Field().String(), "")) == 10
	})
	// notblank: non-empty after trimming whitespace.
	_ = v.RegisterValidation("notblank", func(fl validatorv10.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	v.RegisterStructValidation(productStructValidation, ProductRequest{})
	v.RegisterStructValidation(unitsStructValidation, UpdateUnitsRequest{})

	return v
}

// productStructValidation checks the decimal fields the tag rules cannot reach.
func productStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(ProductRequest)

	if !req.UnitPrice.IsPositive() {
		sl.ReportError(req.UnitPrice, "unitPrice", "UnitPrice", "gt", "0")
	}
	if req.UnitsAvailable.IsNegative() {
		sl.ReportError(req.UnitsAvailable, "unitsAvailable", "UnitsAvailable", "gte", "0")
	}
	if req.Units != nil && !req.Units.IsPositive() {
		sl.ReportError(*req.Units, "units", "Units", "gt", "0")
	}
}

func unitsStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateUnitsRequest)
	if req.Units.LessThan(decimal.Zero) {
		sl.ReportError(req.Units, "units", "Units", "gte", "0")
	}
}

var customerMessages = map[string]string{
	"customerName": "Name is required.",
	"email":        "Enter a valid email address.",
	"phone":        "Phone number must contain exactly 10 digits.",
}

// ValidateCustomerInfo returns field -> message for every invalid customer
// field. An empty map means the info is valid.
func ValidateCustomerInfo(v *validatorv10.Validate, info CustomerInfo) map[string]string {
	out := map[string]string{}
	err := v.Struct(info)
	if err == nil {
		return out
	}
	ve, ok := err.(validatorv10.ValidationErrors)
	if !ok {
		out["error"] = err.Error()
		return out
	}
	for _, fe := range ve {
		msg, ok := customerMessages[fe.Field()]
		if !ok {
			msg = fe.Error()
		}
		out[fe.Field()] = msg
	}
	return out
}
