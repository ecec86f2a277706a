package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/shopcore/order-inventory/internal/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// bind decodes the request body into dst and runs struct validation.
// Everything that goes wrong here is the client's fault.
func bind(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return apperr.Validation("field %s failed validation on %s", f.Field(), f.Tag())
		}
		return apperr.Validation("invalid request body")
	}
	return nil
}
