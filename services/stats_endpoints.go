package services

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mipyme/backend/repository"
)

type StatsEndpoints struct {
	repo *repository.GORMRepository
}

type StatsResponse struct {
	TotalDocuments    int64 `json:"total_documents"`
	TotalInvoices     int64 `json:"total_invoices"`
	PendingSignatures int64 `json:"pending_signatures"`
}

func NewStatsEndpoints(repo *repository.GORMRepository) *StatsEndpoints {
	return &StatsEndpoints{repo: repo}
}

// StatsHandler returns the dashboard counters.
func (e *StatsEndpoints) StatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	documents, err := e.repo.CountDocuments(ctx)
	if err != nil {
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}
	invoices, err := e.repo.CountInvoices(ctx)
	if err != nil {
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}
	pending, err := e.repo.CountPendingSignatures(ctx)
	if err != nil {
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatsResponse{
		TotalDocuments:    documents,
		TotalInvoices:     invoices,
		PendingSignatures: pending,
	})

	slog.Info("Stats computed", "documents", documents, "invoices", invoices, "pending_signatures", pending)
}
