package gateway

import (
	"encoding/json"
	"net/http"
)

// The gateway keeps its own wire envelope: the mobile clients depend on
// exactly {result} on success and {error, details?} on failure.

type resultBody struct {
	Result string `json:"result"`
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeResult(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resultBody{Result: text})
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message, Details: details})
}
