package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mipyme/backend/models"
	"github.com/mipyme/backend/repository"
	ws "github.com/mipyme/backend/websocket"
)

const auditListLimit = 100

// AuditService records every mutating action to the audit trail and
// broadcasts it to connected event stream clients.
type AuditService struct {
	repo *repository.GORMRepository
	hub  *ws.Hub
}

func NewAuditService(repo *repository.GORMRepository, hub *ws.Hub) *AuditService {
	return &AuditService{
		repo: repo,
		hub:  hub,
	}
}

// Record writes an audit entry. Request metadata (client IP, user agent) is
// taken from r when present. Audit failures are logged but never fail the
// operation being audited.
func (a *AuditService) Record(ctx context.Context, r *http.Request, action, entityType, entityID, details string) {
	entry := &models.AuditLog{
		Timestamp:  time.Now(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
	}
	if r != nil {
		entry.IPAddress = r.RemoteAddr
		entry.UserAgent = r.UserAgent()
	}

	if err := a.repo.CreateAuditLog(ctx, entry); err != nil {
		slog.Warn("Failed to record audit entry", "action", action, "error", err)
	}

	if a.hub != nil {
		a.hub.BroadcastEvent(ws.Event{
			Action:     action,
			EntityType: entityType,
			EntityID:   entityID,
			Details:    details,
			Timestamp:  entry.Timestamp,
		})
	}
}

// ListHandler returns the most recent audit entries.
func (a *AuditService) ListHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := a.repo.ListAuditLogs(r.Context(), auditListLimit)
	if err != nil {
		slog.Error("Failed to list audit logs", "error", err)
		http.Error(w, "Failed to list audit logs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
