package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/TalentPipe/internal/models"
)

// writeJSON writes a JSON envelope with the given HTTP status code.
func writeJSON(w http.ResponseWriter, statusCode int, resp models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("api: failed to encode response", "error", err)
	}
}

// writeResult writes a success envelope around a result payload.
func writeResult(w http.ResponseWriter, result interface{}) {
	writeJSON(w, http.StatusOK, models.Success(result))
}

// writeError writes an error envelope with the given status code.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, models.Error(message))
}
