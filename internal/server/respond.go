package server

import (
	"encoding/json"
	"net/http"

	"messagely/internal/common"
)

type errorBody struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"Failed to marshal JSON response","status":500}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func respondMessage(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, errorResponse{Error: errorBody{Message: message, Status: code}})
}

// respondError writes err with the status of its kind; unclassified errors are logged and hidden
func (h *handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := common.HTTPStatusFromError(err)
	if code == http.StatusInternalServerError {
		h.logger.Errorw("Request failed", append(requestFields(r), "error", err)...)
		respondMessage(w, code, http.StatusText(code))
		return
	}

	respondMessage(w, code, err.Error())
}
