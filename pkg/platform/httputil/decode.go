package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "heirloom/pkg/domain-errors"
)

// Validatable is implemented by request DTOs that validate and parse
// themselves after decoding.
type Validatable interface {
	Validate() error
}

const maxBodyBytes = 1 << 20

// Decode reads and validates a JSON request body. On failure the error
// response has already been written and the second return is false.
func Decode[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request) (PT, bool) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	pv := PT(&v)
	if err := pv.Validate(); err != nil {
		var de *dErrors.Error
		if !errors.As(err, &de) {
			err = dErrors.Newf(dErrors.CodeValidation, "%v", err)
		}
		WriteError(w, err)
		return nil, false
	}
	return pv, true
}
