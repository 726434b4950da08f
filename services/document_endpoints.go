package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mipyme/backend/models"
	"github.com/mipyme/backend/repository"
)

type DocumentEndpoints struct {
	repo           *repository.GORMRepository
	store          *FileStore
	share          *ShareService
	audit          *AuditService
	maxUploadBytes int64
}

type UploadDocumentResponse struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}

type ListDocumentsResponse struct {
	Documents []models.Document `json:"documents"`
	Count     int               `json:"count"`
}

type SearchDocumentsResponse struct {
	Results []models.Document `json:"results"`
	Count   int               `json:"count"`
}

type ShareDocumentResponse struct {
	Token     string `json:"token"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}

func NewDocumentEndpoints(repo *repository.GORMRepository, store *FileStore, share *ShareService, audit *AuditService, maxUploadBytes int64) *DocumentEndpoints {
	return &DocumentEndpoints{
		repo:           repo,
		store:          store,
		share:          share,
		audit:          audit,
		maxUploadBytes: maxUploadBytes,
	}
}

func (e *DocumentEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Post("/upload", e.UploadDocumentHandler)
		r.Get("/list", e.ListDocumentsHandler)
		r.Get("/search", e.SearchDocumentsHandler)
		r.Get("/{id}", e.GetDocumentHandler)
		r.Delete("/{id}", e.DeleteDocumentHandler)
		r.Get("/{id}/download", e.DownloadDocumentHandler)
		r.Post("/{id}/versions", e.UploadVersionHandler)
		r.Get("/{id}/versions", e.ListVersionsHandler)
		r.Post("/{id}/share", e.ShareDocumentHandler)
	})
	r.Get("/shared/{token}", e.SharedDownloadHandler)
}

func (e *DocumentEndpoints) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, e.maxUploadBytes)
	if err := r.ParseMultipartForm(e.maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form or file too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Filename == "" {
		http.Error(w, "No file selected", http.StatusBadRequest)
		return
	}
	if !AllowedFile(header.Filename) {
		http.Error(w, "File type not allowed", http.StatusBadRequest)
		return
	}

	docID := uuid.New().String()
	originalFilename := SanitizeFilename(header.Filename)
	extension := FileExtension(originalFilename)
	storedName := docID + "." + extension

	size, hash, err := e.store.Save(storedName, file)
	if err != nil {
		slog.Error("Failed to store uploaded file", "error", err, "filename", originalFilename)
		http.Error(w, "Failed to store file", http.StatusInternalServerError)
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = originalFilename
	}
	category := r.FormValue("category")
	if category == "" {
		category = "general"
	}

	doc := &models.Document{
		ID:               docID,
		OriginalFilename: originalFilename,
		StoredFilename:   storedName,
		Title:            title,
		Category:         category,
		Description:      r.FormValue("description"),
		Tags:             parseTags(r.FormValue("tags")),
		UploadDate:       time.Now(),
		FileSize:         size,
		FileHash:         hash,
		FileExtension:    extension,
		Version:          1,
		IsActive:         true,
	}

	if err := e.repo.CreateDocument(r.Context(), doc); err != nil {
		e.store.Remove(storedName)
		slog.Error("Failed to create document", "error", err)
		http.Error(w, "Failed to create document", http.StatusInternalServerError)
		return
	}

	e.audit.Record(r.Context(), r, "document.upload", "document", doc.ID, doc.Title)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(UploadDocumentResponse{
		Success:    true,
		DocumentID: doc.ID,
		Message:    "Document uploaded successfully",
	})

	slog.Info("Document uploaded", "document_id", doc.ID, "title", doc.Title, "size", size)
}

func (e *DocumentEndpoints) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	docs, err := e.repo.ListDocuments(r.Context())
	if err != nil {
		slog.Error("Failed to list documents", "error", err)
		http.Error(w, "Failed to list documents", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListDocumentsResponse{
		Documents: docs,
		Count:     len(docs),
	})
}

func (e *DocumentEndpoints) GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := e.lookupDocument(w, r)
	if doc == nil || err != nil {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"document": doc,
	})
}

func (e *DocumentEndpoints) DownloadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := e.lookupDocument(w, r)
	if doc == nil || err != nil {
		return
	}

	if !e.store.Exists(doc.StoredFilename) {
		http.Error(w, "Document file not found", http.StatusNotFound)
		return
	}

	e.serveDocument(w, r, doc)
	slog.Info("Document downloaded", "document_id", doc.ID)
}

func (e *DocumentEndpoints) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := e.lookupDocument(w, r)
	if doc == nil || err != nil {
		return
	}

	if err := e.store.Remove(doc.StoredFilename); err != nil {
		slog.Warn("Failed to remove document file", "error", err, "document_id", doc.ID)
	}

	if err := e.repo.DeleteDocument(r.Context(), doc.ID); err != nil {
		slog.Error("Failed to delete document", "error", err, "document_id", doc.ID)
		http.Error(w, "Failed to delete document", http.StatusInternalServerError)
		return
	}

	e.audit.Record(r.Context(), r, "document.delete", "document", doc.ID, doc.Title)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
	})

	slog.Info("Document deleted", "document_id", doc.ID)
}

func (e *DocumentEndpoints) SearchDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")

	results, err := e.repo.SearchDocuments(r.Context(), query, category)
	if err != nil {
		slog.Error("Failed to search documents", "error", err, "query", query)
		http.Error(w, "Failed to search documents", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SearchDocumentsResponse{
		Results: results,
		Count:   len(results),
	})

	slog.Info("Documents searched", "query", query, "category", category, "count", len(results))
}

// UploadVersionHandler replaces a document's content with a new revision.
// The superseded revision is archived as a DocumentVersion row and its file
// is kept on disk under its old stored name.
func (e *DocumentEndpoints) UploadVersionHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := e.lookupDocument(w, r)
	if doc == nil || err != nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, e.maxUploadBytes)
	if err := r.ParseMultipartForm(e.maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form or file too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !AllowedFile(header.Filename) {
		http.Error(w, "File type not allowed", http.StatusBadRequest)
		return
	}

	// Capture the current revision before overwriting metadata; the history
	// row is only written once the new file is safely on disk, so a failed
	// upload leaves no stray history behind.
	version := &models.DocumentVersion{
		DocumentID:     doc.ID,
		VersionNumber:  doc.Version,
		StoredFilename: doc.StoredFilename,
		FileHash:       doc.FileHash,
		ChangeNotes:    r.FormValue("change_notes"),
	}

	extension := FileExtension(header.Filename)
	newVersion := doc.Version + 1
	storedName := fmt.Sprintf("%s_v%d.%s", doc.ID, newVersion, extension)

	size, hash, err := e.store.Save(storedName, file)
	if err != nil {
		slog.Error("Failed to store new document version", "error", err, "document_id", doc.ID)
		http.Error(w, "Failed to store file", http.StatusInternalServerError)
		return
	}

	if err := e.repo.CreateDocumentVersion(r.Context(), version); err != nil {
		e.store.Remove(storedName)
		slog.Error("Failed to archive document version", "error", err, "document_id", doc.ID)
		http.Error(w, "Failed to archive document version", http.StatusInternalServerError)
		return
	}

	doc.OriginalFilename = SanitizeFilename(header.Filename)
	doc.StoredFilename = storedName
	doc.FileSize = size
	doc.FileHash = hash
	doc.FileExtension = extension
	doc.Version = newVersion

	if err := e.repo.UpdateDocument(r.Context(), doc); err != nil {
		e.store.Remove(storedName)
		if derr := e.repo.DeleteDocumentVersion(r.Context(), version.ID); derr != nil {
			slog.Warn("Failed to remove stale version row", "error", derr, "document_id", doc.ID)
		}
		slog.Error("Failed to update document", "error", err, "document_id", doc.ID)
		http.Error(w, "Failed to update document", http.StatusInternalServerError)
		return
	}

	e.audit.Record(r.Context(), r, "document.version", "document", doc.ID, fmt.Sprintf("version %d", newVersion))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":     true,
		"document_id": doc.ID,
		"version":     doc.Version,
	})

	slog.Info("Document version uploaded", "document_id", doc.ID, "version", doc.Version)
}

func (e *DocumentEndpoints) ListVersionsHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := e.lookupDocument(w, r)
	if doc == nil || err != nil {
		return
	}

	versions, err := e.repo.GetDocumentVersions(r.Context(), doc.ID)
	if err != nil {
		slog.Error("Failed to list document versions", "error", err, "document_id", doc.ID)
		http.Error(w, "Failed to list document versions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"versions": versions,
		"current":  doc.Version,
	})
}

func (e *DocumentEndpoints) ShareDocumentHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := e.lookupDocument(w, r)
	if doc == nil || err != nil {
		return
	}

	token, err := e.share.MintToken(doc.ID)
	if err != nil {
		if errors.Is(err, ErrShareLinksDisabled) {
			http.Error(w, "Share links are not configured", http.StatusServiceUnavailable)
			return
		}
		slog.Error("Failed to mint share token", "error", err, "document_id", doc.ID)
		http.Error(w, "Failed to create share link", http.StatusInternalServerError)
		return
	}

	e.audit.Record(r.Context(), r, "document.share", "document", doc.ID, doc.Title)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ShareDocumentResponse{
		Token:     token,
		URL:       "/api/v1/shared/" + token,
		ExpiresAt: time.Now().Add(e.share.TTL()).Format(time.RFC3339),
	})

	slog.Info("Document share link created", "document_id", doc.ID)
}

func (e *DocumentEndpoints) SharedDownloadHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		http.Error(w, "Share token is required", http.StatusBadRequest)
		return
	}

	docID, err := e.share.VerifyToken(token)
	if err != nil {
		if errors.Is(err, ErrShareLinksDisabled) {
			http.Error(w, "Share links are not configured", http.StatusServiceUnavailable)
			return
		}
		slog.Warn("Invalid share token", "error", err)
		http.Error(w, "Invalid or expired share link", http.StatusUnauthorized)
		return
	}

	doc, err := e.repo.GetDocumentByID(r.Context(), docID)
	if err != nil {
		slog.Error("Failed to get shared document", "error", err, "document_id", docID)
		http.Error(w, "Failed to get document", http.StatusInternalServerError)
		return
	}
	if doc == nil || !e.store.Exists(doc.StoredFilename) {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	e.serveDocument(w, r, doc)
	slog.Info("Shared document downloaded", "document_id", doc.ID)
}

// lookupDocument resolves the {id} URL parameter. It writes the error
// response itself and returns nil when the document cannot be served.
func (e *DocumentEndpoints) lookupDocument(w http.ResponseWriter, r *http.Request) (*models.Document, error) {
	docID := chi.URLParam(r, "id")
	if docID == "" {
		http.Error(w, "Document ID is required", http.StatusBadRequest)
		return nil, nil
	}

	doc, err := e.repo.GetDocumentByID(r.Context(), docID)
	if err != nil {
		slog.Error("Failed to get document", "error", err, "document_id", docID)
		http.Error(w, "Failed to get document", http.StatusInternalServerError)
		return nil, err
	}
	if doc == nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return nil, nil
	}
	return doc, nil
}

func (e *DocumentEndpoints) serveDocument(w http.ResponseWriter, r *http.Request, doc *models.Document) {
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.OriginalFilename))
	http.ServeFile(w, r, e.store.Path(doc.StoredFilename))
}

// parseTags splits a comma-separated tag list, dropping empty entries.
func parseTags(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	if tags == nil {
		return []string{}
	}
	return tags
}
