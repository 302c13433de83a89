package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/logbook-io/logbook/internal/model"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

type ingestResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    model.LogRecord `json:"data"`
}

type queryResponse struct {
	Status     string            `json:"status"`
	Data       []model.LogRecord `json:"data"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"totalPages"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("JSON encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string, detail error) {
	resp := errorResponse{Status: statusError, Message: message}
	if detail != nil {
		resp.Error = detail.Error()
	}
	writeJSON(w, code, resp)
}
