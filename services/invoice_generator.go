package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mipyme/backend/models"
	"github.com/mipyme/backend/repository"
)

const (
	defaultVATRate  = 0.10
	defaultCurrency = "VND"
	einvoiceXMLNS   = "http://www.gdt.gov.vn/einvoice"
	einvoiceVersion = "2.0"
)

// InvoiceService creates electronic invoices following Decree 70/2025/ND-CP:
// an XML artifact for the tax authority plus a PDF for the customer, with
// the XML digitally signed at creation time.
type InvoiceService struct {
	repo   *repository.GORMRepository
	store  *FileStore
	signer *SignatureService
}

// PartyInfo carries seller or buyer identity on an invoice request.
type PartyInfo struct {
	Name    string `json:"name"`
	TaxCode string `json:"tax_code"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

type InvoiceItemRequest struct {
	Description   string  `json:"description"`
	Quantity      float64 `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	UnitOfMeasure string  `json:"unit_of_measure"`
}

type CreateInvoiceRequest struct {
	SellerInfo    PartyInfo            `json:"seller_info"`
	BuyerInfo     PartyInfo            `json:"buyer_info"`
	Items         []InvoiceItemRequest `json:"items"`
	PaymentMethod string               `json:"payment_method"`
	VATRate       *float64             `json:"vat_rate,omitempty"`
	Currency      string               `json:"currency,omitempty"`
	Notes         string               `json:"notes,omitempty"`
}

// Validate checks the fields Decree 70/2025/ND-CP requires on every invoice.
func (r *CreateInvoiceRequest) Validate() error {
	if r.SellerInfo.Name == "" || r.SellerInfo.TaxCode == "" {
		return fmt.Errorf("seller_info requires name and tax_code")
	}
	if r.BuyerInfo.Name == "" {
		return fmt.Errorf("buyer_info requires name")
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("at least one item is required")
	}
	for i, item := range r.Items {
		if item.Description == "" {
			return fmt.Errorf("item %d requires a description", i+1)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("item %d requires a positive quantity", i+1)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("item %d has a negative unit price", i+1)
		}
	}
	if r.PaymentMethod == "" {
		return fmt.Errorf("payment_method is required")
	}
	return nil
}

func NewInvoiceService(repo *repository.GORMRepository, store *FileStore, signer *SignatureService) *InvoiceService {
	return &InvoiceService{
		repo:   repo,
		store:  store,
		signer: signer,
	}
}

// computeTotals sums the line amounts and applies the VAT rate.
func computeTotals(items []InvoiceItemRequest, vatRate float64) (subtotal, vatAmount, total float64) {
	for _, item := range items {
		subtotal += item.Quantity * item.UnitPrice
	}
	vatAmount = subtotal * vatRate
	total = subtotal + vatAmount
	return subtotal, vatAmount, total
}

// formatInvoiceNumber builds the sequential invoice number, e.g.
// INV-20250115-00042.
func formatInvoiceNumber(sequence int64, t time.Time) string {
	return fmt.Sprintf("INV-%s-%05d", t.Format("20060102"), sequence)
}

// CreateInvoice computes totals, persists the invoice and materializes its
// XML and PDF artifacts. The XML is signed before the record is stored.
func (s *InvoiceService) CreateInvoice(ctx context.Context, req *CreateInvoiceRequest) (*models.Invoice, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	vatRate := defaultVATRate
	if req.VATRate != nil {
		vatRate = *req.VATRate
	}
	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	subtotal, vatAmount, total := computeTotals(req.Items, vatRate)

	count, err := s.repo.CountInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to determine invoice sequence: %w", err)
	}

	now := time.Now()
	invoice := &models.Invoice{
		ID:            uuid.New().String(),
		InvoiceNumber: formatInvoiceNumber(count+1, now),
		InvoiceDate:   now,
		SellerName:    req.SellerInfo.Name,
		SellerTaxCode: req.SellerInfo.TaxCode,
		SellerAddress: req.SellerInfo.Address,
		SellerPhone:   req.SellerInfo.Phone,
		SellerEmail:   req.SellerInfo.Email,
		BuyerName:     req.BuyerInfo.Name,
		BuyerTaxCode:  req.BuyerInfo.TaxCode,
		BuyerAddress:  req.BuyerInfo.Address,
		BuyerPhone:    req.BuyerInfo.Phone,
		BuyerEmail:    req.BuyerInfo.Email,
		Subtotal:      subtotal,
		VATRate:       vatRate,
		VATAmount:     vatAmount,
		Total:         total,
		Currency:      currency,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		Status:        "generated",
	}

	for idx, item := range req.Items {
		invoice.Items = append(invoice.Items, models.InvoiceItem{
			InvoiceID:     invoice.ID,
			LineNumber:    idx + 1,
			Description:   item.Description,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			Amount:        item.Quantity * item.UnitPrice,
			UnitOfMeasure: item.UnitOfMeasure,
		})
	}

	xmlPath, err := s.writeXML(invoice)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invoice XML: %w", err)
	}
	invoice.XMLPath = xmlPath

	pdfPath := s.store.Path(invoice.ID + ".pdf")
	if err := renderInvoicePDF(pdfPath, invoice); err != nil {
		os.Remove(xmlPath)
		return nil, fmt.Errorf("failed to generate invoice PDF: %w", err)
	}
	invoice.PDFPath = pdfPath

	sig, err := s.signer.SignInvoiceXML(ctx, xmlPath)
	if err != nil {
		os.Remove(xmlPath)
		os.Remove(pdfPath)
		return nil, fmt.Errorf("failed to sign invoice XML: %w", err)
	}
	invoice.IsSigned = true
	invoice.SignatureID = sig.SignatureID
	invoice.SignatureTimestamp = &sig.Timestamp

	if err := s.repo.CreateInvoice(ctx, invoice); err != nil {
		os.Remove(xmlPath)
		os.Remove(pdfPath)
		// The signature row points at the removed XML and must go with it
		if derr := s.repo.DeleteSignature(ctx, sig.SignatureID); derr != nil {
			slog.Warn("Failed to remove signature for unsaved invoice", "signature_id", sig.SignatureID, "error", derr)
		}
		return nil, fmt.Errorf("failed to store invoice: %w", err)
	}

	slog.Info("Invoice generated",
		"invoice_id", invoice.ID,
		"invoice_number", invoice.InvoiceNumber,
		"total", invoice.Total,
		"currency", invoice.Currency,
	)
	return invoice, nil
}

// XML document structure required by the tax authority. Based on Decree
// 123/2020/ND-CP and Decree 70/2025/ND-CP.

type invoiceXML struct {
	XMLName xml.Name          `xml:"Invoice"`
	XMLNS   string            `xml:"xmlns,attr"`
	Version string            `xml:"version,attr"`
	General invoiceGeneralXML `xml:"GeneralInformation"`
	Seller  invoiceSellerXML  `xml:"Seller"`
	Buyer   invoiceBuyerXML   `xml:"Buyer"`
	Items   []invoiceItemXML  `xml:"Items>Item"`
	Summary invoiceSummaryXML `xml:"Summary"`
	Payment invoicePaymentXML `xml:"PaymentInformation"`
}

type invoiceGeneralXML struct {
	InvoiceNumber string `xml:"InvoiceNumber"`
	InvoiceDate   string `xml:"InvoiceDate"`
	Currency      string `xml:"Currency"`
	ExchangeRate  string `xml:"ExchangeRate"`
}

type invoiceSellerXML struct {
	TaxCode   string `xml:"TaxCode"`
	LegalName string `xml:"LegalName"`
	Address   string `xml:"Address"`
	Phone     string `xml:"Phone"`
	Email     string `xml:"Email"`
}

type invoiceBuyerXML struct {
	TaxCode string `xml:"TaxCode"`
	Name    string `xml:"Name"`
	Address string `xml:"Address"`
	Phone   string `xml:"Phone"`
	Email   string `xml:"Email"`
}

type invoiceItemXML struct {
	LineNumber  int     `xml:"LineNumber"`
	Description string  `xml:"Description"`
	Quantity    float64 `xml:"Quantity"`
	UnitPrice   float64 `xml:"UnitPrice"`
	Amount      float64 `xml:"Amount"`
	VATRate     float64 `xml:"VATRate"`
}

type invoiceSummaryXML struct {
	Subtotal  float64 `xml:"Subtotal"`
	VATAmount float64 `xml:"VATAmount"`
	Total     float64 `xml:"Total"`
}

type invoicePaymentXML struct {
	PaymentMethod string `xml:"PaymentMethod"`
}

func buildInvoiceXML(invoice *models.Invoice) *invoiceXML {
	doc := &invoiceXML{
		XMLNS:   einvoiceXMLNS,
		Version: einvoiceVersion,
		General: invoiceGeneralXML{
			InvoiceNumber: invoice.InvoiceNumber,
			InvoiceDate:   invoice.InvoiceDate.Format(time.RFC3339),
			Currency:      invoice.Currency,
			ExchangeRate:  "1",
		},
		Seller: invoiceSellerXML{
			TaxCode:   invoice.SellerTaxCode,
			LegalName: invoice.SellerName,
			Address:   invoice.SellerAddress,
			Phone:     invoice.SellerPhone,
			Email:     invoice.SellerEmail,
		},
		Buyer: invoiceBuyerXML{
			TaxCode: invoice.BuyerTaxCode,
			Name:    invoice.BuyerName,
			Address: invoice.BuyerAddress,
			Phone:   invoice.BuyerPhone,
			Email:   invoice.BuyerEmail,
		},
		Summary: invoiceSummaryXML{
			Subtotal:  invoice.Subtotal,
			VATAmount: invoice.VATAmount,
			Total:     invoice.Total,
		},
		Payment: invoicePaymentXML{
			PaymentMethod: invoice.PaymentMethod,
		},
	}

	for _, item := range invoice.Items {
		doc.Items = append(doc.Items, invoiceItemXML{
			LineNumber:  item.LineNumber,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount,
			VATRate:     invoice.VATRate * 100,
		})
	}

	return doc
}

func (s *InvoiceService) writeXML(invoice *models.Invoice) (string, error) {
	data, err := xml.MarshalIndent(buildInvoiceXML(invoice), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal invoice XML: %w", err)
	}

	path := s.store.Path(invoice.ID + ".xml")
	content := append([]byte(xml.Header), data...)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write invoice XML: %w", err)
	}
	return path, nil
}
