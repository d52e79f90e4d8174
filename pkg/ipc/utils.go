package ipc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/odvcencio/autotap/pkg/errors"
)

// respondJSON sends a JSON response with appropriate headers.
func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// respondError sends a structured JSON error response.
func respondError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	response := struct {
		Error       string   `json:"error"`
		Status      int      `json:"status"`
		Code        string   `json:"code,omitempty"`
		Message     string   `json:"message"`
		Details     string   `json:"details,omitempty"`
		Remediation []string `json:"remediation,omitempty"`
		Timestamp   string   `json:"timestamp"`
	}{
		Status:    status,
		Message:   http.StatusText(status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if tapErr, ok := apperrors.As(err); ok {
		response.Code = string(tapErr.Code)
		if tapErr.UserMessage != "" {
			response.Message = tapErr.UserMessage
		} else if tapErr.Message != "" {
			response.Message = tapErr.Message
		}
		if len(tapErr.Remediation) > 0 {
			response.Remediation = append([]string{}, tapErr.Remediation...)
		}
		response.Details = tapErr.Error()
	} else if err != nil {
		response.Message = err.Error()
	}

	if response.Details == "" && err != nil {
		response.Details = fmt.Sprintf("%v", err)
	}

	response.Error = response.Message
	_ = json.NewEncoder(w).Encode(response)
}
