package middleware

import (
	"net/http"

	"github.com/goccy/go-json"
)

type Middleware func(http.Handler) http.Handler

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
