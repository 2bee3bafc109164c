// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"

	"github.com/goccy/go-json"
)

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Text sends a plain-text status response.
func Text(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}
