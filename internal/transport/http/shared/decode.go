package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"hrportal/internal/transport/http/api"
)

// DecodeJSON reads the request body into dst. On failure it writes the error
// envelope and returns false. An empty body decodes to the zero value.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, requestID string) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestID)
		return false
	}
	api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
	return false
}
