package models

import (
	"time"

	"gorm.io/gorm"
)

// Invoice is an electronic invoice following Decree 70/2025/ND-CP. Each
// invoice is materialized as an XML file (for the tax authority) and a PDF
// (for the customer); both paths are recorded here.
type Invoice struct {
	ID            string    `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceNumber string    `gorm:"size:50;uniqueIndex;not null" json:"invoice_number"`
	InvoiceDate   time.Time `gorm:"not null" json:"invoice_date"`

	// Seller information
	SellerName    string `gorm:"size:255;not null" json:"seller_name"`
	SellerTaxCode string `gorm:"size:50;not null" json:"seller_tax_code"`
	SellerAddress string `gorm:"type:text" json:"seller_address,omitempty"`
	SellerPhone   string `gorm:"size:50" json:"seller_phone,omitempty"`
	SellerEmail   string `gorm:"size:100" json:"seller_email,omitempty"`

	// Buyer information
	BuyerName    string `gorm:"size:255;not null" json:"buyer_name"`
	BuyerTaxCode string `gorm:"size:50" json:"buyer_tax_code,omitempty"`
	BuyerAddress string `gorm:"type:text" json:"buyer_address,omitempty"`
	BuyerPhone   string `gorm:"size:50" json:"buyer_phone,omitempty"`
	BuyerEmail   string `gorm:"size:100" json:"buyer_email,omitempty"`

	// Amounts
	Subtotal  float64 `gorm:"not null" json:"subtotal"`
	VATRate   float64 `gorm:"default:0.10" json:"vat_rate"`
	VATAmount float64 `gorm:"not null" json:"vat_amount"`
	Total     float64 `gorm:"not null" json:"total"`
	Currency  string  `gorm:"size:10;default:'VND'" json:"currency"`

	PaymentMethod string `gorm:"size:100" json:"payment_method"`
	Notes         string `gorm:"type:text" json:"notes,omitempty"`

	// Generated artifact paths
	XMLPath string `gorm:"size:500" json:"xml_path,omitempty"`
	PDFPath string `gorm:"size:500" json:"pdf_path,omitempty"`

	// Signing state
	Status             string     `gorm:"size:50;default:'generated'" json:"status"`
	IsSigned           bool       `gorm:"default:false" json:"is_signed"`
	SignatureID        string     `gorm:"size:100" json:"signature_id,omitempty"`
	SignatureTimestamp *time.Time `json:"signature_timestamp,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	CreatedBy string         `gorm:"size:100" json:"created_by,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Items []InvoiceItem `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
}

// InvoiceItem is a single product/service line on an invoice.
type InvoiceItem struct {
	ID            uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	InvoiceID     string  `gorm:"type:uuid;not null;index" json:"invoice_id"`
	LineNumber    int     `gorm:"not null" json:"line_number"`
	Description   string  `gorm:"size:500;not null" json:"description"`
	Quantity      float64 `gorm:"not null" json:"quantity"`
	UnitPrice     float64 `gorm:"not null" json:"unit_price"`
	Amount        float64 `gorm:"not null" json:"amount"`
	UnitOfMeasure string  `gorm:"size:50" json:"unit_of_measure,omitempty"`

	// Relationships
	Invoice Invoice `gorm:"foreignKey:InvoiceID" json:"-"`
}
