package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// All models are automatically exported from their respective files:
// - Document, DocumentVersion from document.go
// - Invoice, InvoiceItem from invoice.go
// - Signature from signature.go
// - AuditLog from audit.go

// Database schema overview:
// 1. documents - Metadata and disk references for managed documents
// 2. document_versions - Version history rows for each document
// 3. invoices - Electronic invoices with seller/buyer data and computed totals
// 4. invoice_items - Line items belonging to an invoice
// 5. signatures - Digital signature records (RSA-PSS-SHA256)
// 6. audit_logs - System-wide action trail, also fed to the live event stream
