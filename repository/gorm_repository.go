package repository

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mipyme/backend/models"
	"gorm.io/gorm"
)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.Document{},
		&models.DocumentVersion{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.Signature{},
		&models.AuditLog{},
	)
}

// Document operations

func (r *GORMRepository) CreateDocument(ctx context.Context, doc *models.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		slog.Error("Failed to create document", "error", err)
		return err
	}
	slog.Info("Document created", "document_id", doc.ID, "title", doc.Title)
	return nil
}

func (r *GORMRepository) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&doc).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get document by ID", "error", err, "document_id", id)
		return nil, err
	}
	return &doc, nil
}

func (r *GORMRepository) ListDocuments(ctx context.Context) ([]models.Document, error) {
	var docs []models.Document
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("upload_date DESC").Find(&docs).Error
	if err != nil {
		slog.Error("Failed to list documents", "error", err)
		return nil, err
	}
	return docs, nil
}

// SearchDocuments matches query against title, description and tags, with an
// optional category filter. Matching is case-insensitive substring search.
func (r *GORMRepository) SearchDocuments(ctx context.Context, query, category string) ([]models.Document, error) {
	var docs []models.Document
	q := r.db.WithContext(ctx).Where("is_active = ?", true)

	if query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		q = q.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(tags) LIKE ?)", pattern, pattern, pattern)
	}
	if category != "" {
		q = q.Where("category = ?", category)
	}

	if err := q.Order("upload_date DESC").Find(&docs).Error; err != nil {
		slog.Error("Failed to search documents", "error", err, "query", query, "category", category)
		return nil, err
	}
	return docs, nil
}

func (r *GORMRepository) UpdateDocument(ctx context.Context, doc *models.Document) error {
	if err := r.db.WithContext(ctx).Save(doc).Error; err != nil {
		slog.Error("Failed to update document", "error", err, "document_id", doc.ID)
		return err
	}
	slog.Info("Document updated", "document_id", doc.ID, "version", doc.Version)
	return nil
}

func (r *GORMRepository) DeleteDocument(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Document{}).Error; err != nil {
		slog.Error("Failed to delete document", "error", err, "document_id", id)
		return err
	}
	slog.Info("Document deleted", "document_id", id)
	return nil
}

func (r *GORMRepository) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Document{}).Where("is_active = ?", true).Count(&count).Error; err != nil {
		slog.Error("Failed to count documents", "error", err)
		return 0, err
	}
	return count, nil
}

func (r *GORMRepository) CreateDocumentVersion(ctx context.Context, version *models.DocumentVersion) error {
	if err := r.db.WithContext(ctx).Create(version).Error; err != nil {
		slog.Error("Failed to create document version", "error", err)
		return err
	}
	slog.Info("Document version created", "document_id", version.DocumentID, "version", version.VersionNumber)
	return nil
}

func (r *GORMRepository) DeleteDocumentVersion(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.DocumentVersion{}, id).Error; err != nil {
		slog.Error("Failed to delete document version", "error", err, "version_id", id)
		return err
	}
	return nil
}

func (r *GORMRepository) GetDocumentVersions(ctx context.Context, documentID string) ([]models.DocumentVersion, error) {
	var versions []models.DocumentVersion
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Order("version_number").Find(&versions).Error
	if err != nil {
		slog.Error("Failed to get document versions", "error", err, "document_id", documentID)
		return nil, err
	}
	return versions, nil
}

// Invoice operations

func (r *GORMRepository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	if err := r.db.WithContext(ctx).Create(invoice).Error; err != nil {
		slog.Error("Failed to create invoice", "error", err)
		return err
	}
	slog.Info("Invoice created", "invoice_id", invoice.ID, "invoice_number", invoice.InvoiceNumber)
	return nil
}

func (r *GORMRepository) GetInvoiceByID(ctx context.Context, id string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).Where("id = ?", id).Preload("Items").First(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get invoice by ID", "error", err, "invoice_id", id)
		return nil, err
	}
	return &invoice, nil
}

func (r *GORMRepository) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).Preload("Items").Order("invoice_date DESC").Find(&invoices).Error
	if err != nil {
		slog.Error("Failed to list invoices", "error", err)
		return nil, err
	}
	return invoices, nil
}

func (r *GORMRepository) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	if err := r.db.WithContext(ctx).Save(invoice).Error; err != nil {
		slog.Error("Failed to update invoice", "error", err, "invoice_id", invoice.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) CountInvoices(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Invoice{}).Count(&count).Error; err != nil {
		slog.Error("Failed to count invoices", "error", err)
		return 0, err
	}
	return count, nil
}

// Signature operations

func (r *GORMRepository) CreateSignature(ctx context.Context, sig *models.Signature) error {
	if err := r.db.WithContext(ctx).Create(sig).Error; err != nil {
		slog.Error("Failed to create signature", "error", err)
		return err
	}
	slog.Info("Signature created", "signature_id", sig.SignatureID, "document_path", sig.DocumentPath)
	return nil
}

// GetSignatureByDocumentPath returns the most recent signature covering the
// given document path.
func (r *GORMRepository) GetSignatureByDocumentPath(ctx context.Context, documentPath string) (*models.Signature, error) {
	var sig models.Signature
	err := r.db.WithContext(ctx).
		Where("document_path = ?", documentPath).
		Order("timestamp DESC").
		First(&sig).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get signature by document path", "error", err, "document_path", documentPath)
		return nil, err
	}
	return &sig, nil
}

func (r *GORMRepository) DeleteSignature(ctx context.Context, signatureID string) error {
	err := r.db.WithContext(ctx).
		Where("signature_id = ?", signatureID).
		Delete(&models.Signature{}).Error
	if err != nil {
		slog.Error("Failed to delete signature", "error", err, "signature_id", signatureID)
		return err
	}
	return nil
}

func (r *GORMRepository) ListSignatures(ctx context.Context) ([]models.Signature, error) {
	var sigs []models.Signature
	err := r.db.WithContext(ctx).Order("timestamp DESC").Find(&sigs).Error
	if err != nil {
		slog.Error("Failed to list signatures", "error", err)
		return nil, err
	}
	return sigs, nil
}

func (r *GORMRepository) MarkSignatureVerified(ctx context.Context, signatureID string, verifiedAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.Signature{}).
		Where("signature_id = ?", signatureID).
		Update("verified_at", verifiedAt).Error
	if err != nil {
		slog.Error("Failed to mark signature verified", "error", err, "signature_id", signatureID)
		return err
	}
	return nil
}

func (r *GORMRepository) CountPendingSignatures(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Signature{}).Where("status = ?", "pending").Count(&count).Error; err != nil {
		slog.Error("Failed to count pending signatures", "error", err)
		return 0, err
	}
	return count, nil
}

// Audit operations

func (r *GORMRepository) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		slog.Error("Failed to create audit log", "error", err, "action", entry.Action)
		return err
	}
	return nil
}

func (r *GORMRepository) ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := r.db.WithContext(ctx).Order("timestamp DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		slog.Error("Failed to list audit logs", "error", err)
		return nil, err
	}
	return entries, nil
}
