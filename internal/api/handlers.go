// Package api provides HTTP handlers for WarfarinBot endpoints.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/WarfarinBot/internal/models"
)

// IndexText is served on GET / for load balancer readiness checks.
const IndexText = "✅ LINE Bot is ready to receive Webhook"

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, IndexText)
}

// healthHandler reports process uptime, the configured transports and store reachability.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	transports := make([]string, 0, len(s.services))
	for _, svc := range s.services {
		transports = append(transports, svc.Name())
	}
	healthData := map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"transports": transports,
	}

	statusCode := http.StatusOK
	if _, err := s.st.IsDuplicate("health-probe"); err != nil {
		slog.Warn("Health check: store unreachable", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "store unreachable"
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, healthData)
}

func (s *Server) receiptsHandler(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.st.GetReceipts()
	if err != nil {
		slog.Error("Server.receiptsHandler: failed to fetch receipts", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch receipts"))
		return
	}
	slog.Debug("Server.receiptsHandler: receipts fetched", "count", len(receipts))
	writeJSONResponse(w, http.StatusOK, models.Success(receipts))
}

// dialogueRequest is the body of POST /dialogue.
type dialogueRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// dialogueHandler feeds one message to the dialogue and returns its replies as JSON.
func (s *Server) dialogueHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req dialogueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.dialogueHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.UserID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrEmptyUserID.Error()))
		return
	}

	res, err := s.dialogue.HandleMessage(r.Context(), req.UserID, req.Text)
	if err != nil {
		slog.Error("Server.dialogueHandler: dialogue failed", "error", err, "userID", req.UserID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(res))
}
