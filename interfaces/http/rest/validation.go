package rest

import (
	"strings"

	"github.com/go-playground/validator/v10"

	apperr "github.com/auctionhub/auction-core/pkg/errors"
)

var validate = validator.New()

// validateStruct runs tag-based validation over a decoded request body and
// collapses field errors into a single client-facing message.
func validateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, formatFieldError(fe))
			}
			return apperr.New(apperr.KindValidation, strings.Join(msgs, "; "))
		}
		return apperr.New(apperr.KindValidation, err.Error())
	}
	return nil
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "gte":
		return field + " must be at least " + fe.Param()
	case "min":
		return field + " must be at least " + fe.Param()
	case "max":
		return field + " must be at most " + fe.Param()
	default:
		return field + " is invalid"
	}
}
