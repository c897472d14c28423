package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// MaxIDLength bounds product ids accepted on the path.
const MaxIDLength = 64

func RespondJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}

	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error encoding response to JSON", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

// RespondError writes the {"error": message} envelope every client expects.
func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	RespondJSON(w, logger, status, map[string]string{"error": message})
}

// RespondMessage writes the {"message": message} envelope used for acknowledgements.
func RespondMessage(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	RespondJSON(w, logger, status, map[string]string{"message": message})
}

// ParseID extracts the product id (a scanned barcode) from the request path.
// Returns the ID and a boolean indicating success.
func ParseID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" || len(id) > MaxIDLength {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid ID: %s", r.PathValue("id")))
		return "", false
	}
	return id, true
}

// ParsePage reads optional limit and offset query parameters.
// A missing limit means "no limit" and is reported as 0.
func ParsePage(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (limit, offset int, ok bool) {
	for key, dst := range map[string]*int{"limit": &limit, "offset": &offset} {
		raw := r.URL.Query().Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s number: %s", key, raw))
			return 0, 0, false
		}
		*dst = v
	}
	return limit, offset, true
}
