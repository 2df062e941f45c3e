package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"tailorshop/m/domain"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// amount: a non-negative decimal that fits NUMERIC(12,2).
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		_, err := domain.NormalizeAmount(fl.FieldName(), d)
		return err == nil
	})
	return v
}

// bind decodes the request body into dest and validates it. On failure it
// writes a 400 and returns false.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := decodeJSON(r, dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dest); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.SplitN(fe.Namespace(), ".", 2)
		name := fe.Field()
		if len(field) == 2 {
			name = field[1]
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", name))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid e-mail address", name))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", name, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", name, fe.Param()))
		case "amount":
			msgs = append(msgs, fmt.Sprintf("%s must be a non-negative amount with at most %d decimal places and %d integer digits",
				name, domain.AmountScale, domain.AmountIntegerDigits))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", name, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", name, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
