package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/shopcore/order-inventory/internal/apperr"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto status codes. Internal
// errors never leak their cause to the client.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	msg := "internal error"
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		code, msg = http.StatusBadRequest, err.Error()
	case apperr.KindNotFound:
		code, msg = http.StatusNotFound, err.Error()
	case apperr.KindConflict:
		code, msg = http.StatusConflict, err.Error()
	case apperr.KindState:
		code, msg = http.StatusUnprocessableEntity, err.Error()
	}
	writeJSON(w, code, map[string]string{"error": msg})
}
