package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
	"github.com/pratik-mahalle/wiman/internal/pkg/validator"
)

const maxRequestBody = 1 << 20

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// An empty body is treated as an empty object.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validator, dst interface{}) *errors.AppError {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return errors.BadRequest("Invalid request body")
	}
	if errs := v.Validate(dst); len(errs) > 0 {
		return errors.ValidationError("Validation failed", errs)
	}
	return nil
}
