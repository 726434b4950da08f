package models

import (
	"time"

	"gorm.io/gorm"
)

// Signature records a digital signature produced by the signing service.
// Complies with Electronic Transactions Law No.20/2023/QH15 (type 2,
// public digital signature).
type Signature struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	SignatureID  string `gorm:"size:100;uniqueIndex;not null" json:"signature_id"`
	DocumentPath string `gorm:"size:500;not null" json:"document_path"`
	DocumentType string `gorm:"size:50" json:"document_type,omitempty"` // "invoice", "document"

	// Signer information
	SignerName    string `gorm:"size:255;not null" json:"signer_name"`
	SignerEmail   string `gorm:"size:100" json:"signer_email,omitempty"`
	SignerTaxCode string `gorm:"size:50" json:"signer_tax_code,omitempty"`

	// Signature data
	SignatureData string `gorm:"type:text;not null" json:"-"` // base64 encoded
	DocumentHash  string `gorm:"size:64;not null" json:"-"`   // base64 encoded SHA256
	Algorithm     string `gorm:"size:50;default:'RSA-PSS-SHA256'" json:"algorithm"`
	KeySize       int    `gorm:"default:2048" json:"key_size"`

	// Certificate information
	CertificateSerial string `gorm:"size:100" json:"certificate_serial,omitempty"`
	CertificateIssuer string `gorm:"size:255" json:"certificate_issuer,omitempty"`

	// Validity
	Status     string     `gorm:"size:50;default:'valid'" json:"status"`
	Timestamp  time.Time  `gorm:"not null" json:"timestamp"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`

	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	VerifiedAt *time.Time     `json:"verified_at,omitempty"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}
