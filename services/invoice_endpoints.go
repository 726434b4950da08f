package services

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mipyme/backend/models"
	"github.com/mipyme/backend/repository"
)

type InvoiceEndpoints struct {
	repo     *repository.GORMRepository
	invoices *InvoiceService
	audit    *AuditService
}

type CreateInvoiceResponse struct {
	Success            bool    `json:"success"`
	InvoiceID          string  `json:"invoice_id"`
	InvoiceNumber      string  `json:"invoice_number"`
	Total              float64 `json:"total"`
	Currency           string  `json:"currency"`
	Signed             bool    `json:"signed"`
	SignatureTimestamp string  `json:"signature_timestamp,omitempty"`
}

type ListInvoicesResponse struct {
	Invoices []models.Invoice `json:"invoices"`
	Count    int              `json:"count"`
}

func NewInvoiceEndpoints(repo *repository.GORMRepository, invoices *InvoiceService, audit *AuditService) *InvoiceEndpoints {
	return &InvoiceEndpoints{
		repo:     repo,
		invoices: invoices,
		audit:    audit,
	}
}

func (e *InvoiceEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Post("/create", e.CreateInvoiceHandler)
		r.Get("/list", e.ListInvoicesHandler)
		r.Get("/{id}", e.GetInvoiceHandler)
		r.Get("/{id}/pdf", e.DownloadPDFHandler)
		r.Get("/{id}/xml", e.DownloadXMLHandler)
	})
}

func (e *InvoiceEndpoints) CreateInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	invoice, err := e.invoices.CreateInvoice(r.Context(), &req)
	if err != nil {
		slog.Error("Failed to create invoice", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	e.audit.Record(r.Context(), r, "invoice.create", "invoice", invoice.ID, invoice.InvoiceNumber)

	response := CreateInvoiceResponse{
		Success:       true,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		Total:         invoice.Total,
		Currency:      invoice.Currency,
		Signed:        invoice.IsSigned,
	}
	if invoice.SignatureTimestamp != nil {
		response.SignatureTimestamp = invoice.SignatureTimestamp.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)

	slog.Info("Invoice created", "invoice_id", invoice.ID, "invoice_number", invoice.InvoiceNumber)
}

func (e *InvoiceEndpoints) ListInvoicesHandler(w http.ResponseWriter, r *http.Request) {
	invoices, err := e.repo.ListInvoices(r.Context())
	if err != nil {
		slog.Error("Failed to list invoices", "error", err)
		http.Error(w, "Failed to list invoices", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListInvoicesResponse{
		Invoices: invoices,
		Count:    len(invoices),
	})
}

func (e *InvoiceEndpoints) GetInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	invoice := e.lookupInvoice(w, r)
	if invoice == nil {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"invoice": invoice,
	})
}

func (e *InvoiceEndpoints) DownloadPDFHandler(w http.ResponseWriter, r *http.Request) {
	invoice := e.lookupInvoice(w, r)
	if invoice == nil {
		return
	}
	if invoice.PDFPath == "" {
		http.Error(w, "Invoice PDF not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename="+invoice.InvoiceNumber+".pdf")
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, invoice.PDFPath)

	slog.Info("Invoice PDF downloaded", "invoice_id", invoice.ID)
}

func (e *InvoiceEndpoints) DownloadXMLHandler(w http.ResponseWriter, r *http.Request) {
	invoice := e.lookupInvoice(w, r)
	if invoice == nil {
		return
	}
	if invoice.XMLPath == "" {
		http.Error(w, "Invoice XML not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename="+invoice.InvoiceNumber+".xml")
	w.Header().Set("Content-Type", "application/xml")
	http.ServeFile(w, r, invoice.XMLPath)

	slog.Info("Invoice XML downloaded", "invoice_id", invoice.ID)
}

func (e *InvoiceEndpoints) lookupInvoice(w http.ResponseWriter, r *http.Request) *models.Invoice {
	invoiceID := chi.URLParam(r, "id")
	if invoiceID == "" {
		http.Error(w, "Invoice ID is required", http.StatusBadRequest)
		return nil
	}

	invoice, err := e.repo.GetInvoiceByID(r.Context(), invoiceID)
	if err != nil {
		slog.Error("Failed to get invoice", "error", err, "invoice_id", invoiceID)
		http.Error(w, "Failed to get invoice", http.StatusInternalServerError)
		return nil
	}
	if invoice == nil {
		http.Error(w, "Invoice not found", http.StatusNotFound)
		return nil
	}
	return invoice
}
