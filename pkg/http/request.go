package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	apperrors "slotify/pkg/errors"
)

// DecodeJSON decodes the request body into dst, rejecting trailing data.
// Fields dst does not declare are ignored.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperrors.InvalidInput("Request body is required")
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("Request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.New(apperrors.CodeInvalidInput, "Request body too large", http.StatusRequestEntityTooLarge)
		}
		return apperrors.InvalidInput("Invalid request body")
	}
	if dec.More() {
		return apperrors.InvalidInput("Request body must contain a single JSON object")
	}
	return nil
}
