package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
)

// writeJSON encodes data as the response body. Errors are logged, not
// surfaced to the client: by the time Encode fails the status line and
// headers are already written.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("httpapi: failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
