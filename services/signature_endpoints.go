package services

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mipyme/backend/models"
	"github.com/mipyme/backend/repository"
)

type SignatureEndpoints struct {
	repo   *repository.GORMRepository
	signer *SignatureService
	store  *FileStore
	audit  *AuditService
}

type SignDocumentRequest struct {
	DocumentPath string     `json:"document_path"`
	SignerInfo   SignerInfo `json:"signer_info"`
}

type VerifySignatureRequest struct {
	DocumentPath string `json:"document_path"`
}

type SignResponse struct {
	Success      bool                   `json:"success"`
	SignatureID  string                 `json:"signature_id"`
	Timestamp    string                 `json:"timestamp"`
	Signer       string                 `json:"signer"`
	Message      string                 `json:"message"`
	DocumentInfo map[string]interface{} `json:"document_info,omitempty"`
}

type ListSignaturesResponse struct {
	Signatures []models.Signature `json:"signatures"`
	Count      int                `json:"count"`
}

func NewSignatureEndpoints(repo *repository.GORMRepository, signer *SignatureService, store *FileStore, audit *AuditService) *SignatureEndpoints {
	return &SignatureEndpoints{
		repo:   repo,
		signer: signer,
		store:  store,
		audit:  audit,
	}
}

func (e *SignatureEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/signature", func(r chi.Router) {
		r.Post("/sign", e.SignHandler)
		r.Post("/verify", e.VerifyHandler)
		r.Get("/list", e.ListHandler)
		r.Post("/document/{id}", e.SignDocumentHandler)
	})
}

func (e *SignatureEndpoints) SignHandler(w http.ResponseWriter, r *http.Request) {
	var req SignDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.DocumentPath == "" {
		http.Error(w, "Document path is required", http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(req.DocumentPath); err != nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	sig, err := e.signer.SignFile(r.Context(), req.DocumentPath, req.SignerInfo, "document")
	if err != nil {
		slog.Error("Failed to sign document", "error", err, "document_path", req.DocumentPath)
		http.Error(w, "Failed to sign document", http.StatusInternalServerError)
		return
	}

	e.audit.Record(r.Context(), r, "signature.sign", "signature", sig.SignatureID, sig.DocumentPath)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SignResponse{
		Success:     true,
		SignatureID: sig.SignatureID,
		Timestamp:   sig.Timestamp.Format(time.RFC3339),
		Signer:      sig.SignerName,
		Message:     "Document signed successfully",
	})
}

func (e *SignatureEndpoints) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	var req VerifySignatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.DocumentPath == "" {
		http.Error(w, "Document path is required", http.StatusBadRequest)
		return
	}

	result, err := e.signer.VerifyFile(r.Context(), req.DocumentPath)
	if err != nil {
		slog.Error("Failed to verify signature", "error", err, "document_path", req.DocumentPath)
		http.Error(w, "Failed to verify signature", http.StatusInternalServerError)
		return
	}

	e.audit.Record(r.Context(), r, "signature.verify", "signature", result.SignatureID, req.DocumentPath)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)

	slog.Info("Signature verified", "document_path", req.DocumentPath, "valid", result.Valid)
}

func (e *SignatureEndpoints) ListHandler(w http.ResponseWriter, r *http.Request) {
	sigs, err := e.repo.ListSignatures(r.Context())
	if err != nil {
		slog.Error("Failed to list signatures", "error", err)
		http.Error(w, "Failed to list signatures", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListSignaturesResponse{
		Signatures: sigs,
		Count:      len(sigs),
	})
}

// SignDocumentHandler signs a managed document by ID. Signer info may come
// from the request body or fall back to system defaults.
func (e *SignatureEndpoints) SignDocumentHandler(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	if docID == "" {
		http.Error(w, "Document ID is required", http.StatusBadRequest)
		return
	}

	doc, err := e.repo.GetDocumentByID(r.Context(), docID)
	if err != nil {
		slog.Error("Failed to get document for signing", "error", err, "document_id", docID)
		http.Error(w, "Failed to get document", http.StatusInternalServerError)
		return
	}
	if doc == nil || !e.store.Exists(doc.StoredFilename) {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	signer := SignerInfo{
		Name:    "System User",
		Email:   "usuario@mipyme.vn",
		TaxCode: "TAX-CODE-001",
	}
	// Body is optional; override defaults when present
	var req struct {
		SignerName    string `json:"signer_name"`
		SignerEmail   string `json:"signer_email"`
		SignerTaxCode string `json:"signer_tax_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		if req.SignerName != "" {
			signer.Name = req.SignerName
		}
		if req.SignerEmail != "" {
			signer.Email = req.SignerEmail
		}
		if req.SignerTaxCode != "" {
			signer.TaxCode = req.SignerTaxCode
		}
	}

	sig, err := e.signer.SignFile(r.Context(), e.store.Path(doc.StoredFilename), signer, "document")
	if err != nil {
		slog.Error("Failed to sign document", "error", err, "document_id", docID)
		http.Error(w, "Failed to sign document", http.StatusInternalServerError)
		return
	}

	e.audit.Record(r.Context(), r, "signature.sign", "document", doc.ID, sig.SignatureID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SignResponse{
		Success:     true,
		SignatureID: sig.SignatureID,
		Timestamp:   sig.Timestamp.Format(time.RFC3339),
		Signer:      sig.SignerName,
		Message:     "Document signed successfully",
		DocumentInfo: map[string]interface{}{
			"title":             doc.Title,
			"category":          doc.Category,
			"original_filename": doc.OriginalFilename,
		},
	})

	slog.Info("Managed document signed", "document_id", doc.ID, "signature_id", sig.SignatureID)
}
