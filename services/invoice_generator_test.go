package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mipyme/backend/models"
	"github.com/stretchr/testify/require"
)

func validInvoiceRequest() *CreateInvoiceRequest {
	return &CreateInvoiceRequest{
		SellerInfo: PartyInfo{
			Name:    "MiPyME Demo",
			TaxCode: "0123456789",
			Address: "123 Hang Bai, Hanoi",
			Email:   "facturacion@mipyme.vn",
		},
		BuyerInfo: PartyInfo{
			Name:    "Cliente SA",
			TaxCode: "9876543210",
		},
		Items: []InvoiceItemRequest{
			{Description: "Consulting services", Quantity: 2, UnitPrice: 500000, UnitOfMeasure: "hour"},
			{Description: "Software license", Quantity: 1, UnitPrice: 1000000},
		},
		PaymentMethod: "bank_transfer",
	}
}

func TestCreateInvoiceRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateInvoiceRequest)
		wantErr string
	}{
		{
			name:   "valid request",
			mutate: func(r *CreateInvoiceRequest) {},
		},
		{
			name:    "missing seller name",
			mutate:  func(r *CreateInvoiceRequest) { r.SellerInfo.Name = "" },
			wantErr: "seller_info",
		},
		{
			name:    "missing seller tax code",
			mutate:  func(r *CreateInvoiceRequest) { r.SellerInfo.TaxCode = "" },
			wantErr: "seller_info",
		},
		{
			name:    "missing buyer name",
			mutate:  func(r *CreateInvoiceRequest) { r.BuyerInfo.Name = "" },
			wantErr: "buyer_info",
		},
		{
			name:    "no items",
			mutate:  func(r *CreateInvoiceRequest) { r.Items = nil },
			wantErr: "at least one item",
		},
		{
			name:    "item without description",
			mutate:  func(r *CreateInvoiceRequest) { r.Items[0].Description = "" },
			wantErr: "description",
		},
		{
			name:    "zero quantity",
			mutate:  func(r *CreateInvoiceRequest) { r.Items[1].Quantity = 0 },
			wantErr: "positive quantity",
		},
		{
			name:    "negative unit price",
			mutate:  func(r *CreateInvoiceRequest) { r.Items[0].UnitPrice = -1 },
			wantErr: "negative unit price",
		},
		{
			name:    "missing payment method",
			mutate:  func(r *CreateInvoiceRequest) { r.PaymentMethod = "" },
			wantErr: "payment_method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validInvoiceRequest()
			tt.mutate(req)

			err := req.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestComputeTotals(t *testing.T) {
	items := []InvoiceItemRequest{
		{Quantity: 2, UnitPrice: 500000},
		{Quantity: 1, UnitPrice: 1000000},
	}

	subtotal, vatAmount, total := computeTotals(items, 0.10)
	require.InDelta(t, 2000000, subtotal, 0.001)
	require.InDelta(t, 200000, vatAmount, 0.001)
	require.InDelta(t, 2200000, total, 0.001)

	// Zero VAT rate
	subtotal, vatAmount, total = computeTotals(items, 0)
	require.InDelta(t, 2000000, subtotal, 0.001)
	require.Zero(t, vatAmount)
	require.InDelta(t, 2000000, total, 0.001)
}

func TestFormatInvoiceNumber(t *testing.T) {
	date := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	require.Equal(t, "INV-20260115-00001", formatInvoiceNumber(1, date))
	require.Equal(t, "INV-20260115-00042", formatInvoiceNumber(42, date))
	require.Equal(t, "INV-20260115-99999", formatInvoiceNumber(99999, date))
}

func newTestInvoiceService(t *testing.T) *InvoiceService {
	t.Helper()

	repo := newTestRepository(t)
	store := NewFileStore(t.TempDir())
	signer, err := NewSignatureService(repo, t.TempDir())
	require.NoError(t, err)
	return NewInvoiceService(repo, store, signer)
}

func TestCreateInvoice(t *testing.T) {
	svc := newTestInvoiceService(t)
	ctx := context.Background()

	invoice, err := svc.CreateInvoice(ctx, validInvoiceRequest())
	require.NoError(t, err)

	require.NotEmpty(t, invoice.ID)
	require.Equal(t, fmt.Sprintf("INV-%s-00001", time.Now().Format("20060102")), invoice.InvoiceNumber)
	require.InDelta(t, 2000000, invoice.Subtotal, 0.001)
	require.InDelta(t, 0.10, invoice.VATRate, 0.0001)
	require.InDelta(t, 200000, invoice.VATAmount, 0.001)
	require.InDelta(t, 2200000, invoice.Total, 0.001)
	require.Equal(t, "VND", invoice.Currency)
	require.Len(t, invoice.Items, 2)
	require.Equal(t, 1, invoice.Items[0].LineNumber)
	require.Equal(t, 2, invoice.Items[1].LineNumber)

	// The XML is signed at creation time
	require.True(t, invoice.IsSigned)
	require.NotEmpty(t, invoice.SignatureID)
	require.NotNil(t, invoice.SignatureTimestamp)

	// Both artifacts exist on disk
	_, err = os.Stat(invoice.XMLPath)
	require.NoError(t, err)
	_, err = os.Stat(invoice.PDFPath)
	require.NoError(t, err)

	// The persisted record is readable with items preloaded
	stored, err := svc.repo.GetInvoiceByID(ctx, invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.Items, 2)
}

func TestCreateInvoiceSequenceIncrements(t *testing.T) {
	svc := newTestInvoiceService(t)
	ctx := context.Background()

	first, err := svc.CreateInvoice(ctx, validInvoiceRequest())
	require.NoError(t, err)
	second, err := svc.CreateInvoice(ctx, validInvoiceRequest())
	require.NoError(t, err)

	today := time.Now().Format("20060102")
	require.Equal(t, "INV-"+today+"-00001", first.InvoiceNumber)
	require.Equal(t, "INV-"+today+"-00002", second.InvoiceNumber)
}

func TestCreateInvoiceCustomVATAndCurrency(t *testing.T) {
	svc := newTestInvoiceService(t)

	req := validInvoiceRequest()
	vatRate := 0.08
	req.VATRate = &vatRate
	req.Currency = "USD"

	invoice, err := svc.CreateInvoice(context.Background(), req)
	require.NoError(t, err)
	require.InDelta(t, 0.08, invoice.VATRate, 0.0001)
	require.Equal(t, "USD", invoice.Currency)
	require.InDelta(t, 2000000*0.08, invoice.VATAmount, 0.001)
}

func TestCreateInvoiceRejectsInvalidRequest(t *testing.T) {
	svc := newTestInvoiceService(t)

	req := validInvoiceRequest()
	req.Items = nil

	_, err := svc.CreateInvoice(context.Background(), req)
	require.Error(t, err)
}

func TestCreateInvoiceFailureLeavesNoArtifacts(t *testing.T) {
	svc := newTestInvoiceService(t)
	ctx := context.Background()

	// Occupy the invoice number the next creation will compute, so storing
	// the invoice hits the unique index and fails after signing
	conflict := &models.Invoice{
		ID:            uuid.New().String(),
		InvoiceNumber: "INV-" + time.Now().Format("20060102") + "-00002",
		InvoiceDate:   time.Now(),
		SellerName:    "MiPyME Demo",
		SellerTaxCode: "0123456789",
		BuyerName:     "Cliente SA",
		Subtotal:      1,
		VATAmount:     0,
		Total:         1,
	}
	require.NoError(t, svc.repo.CreateInvoice(ctx, conflict))

	_, err := svc.CreateInvoice(ctx, validInvoiceRequest())
	require.Error(t, err)

	// No orphan signature row pointing at a removed file
	sigs, err := svc.repo.ListSignatures(ctx)
	require.NoError(t, err)
	require.Empty(t, sigs)

	// And no stray XML/PDF artifacts on disk
	entries, err := os.ReadDir(svc.store.Dir())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestInvoiceXMLStructure(t *testing.T) {
	svc := newTestInvoiceService(t)

	invoice, err := svc.CreateInvoice(context.Background(), validInvoiceRequest())
	require.NoError(t, err)

	data, err := os.ReadFile(invoice.XMLPath)
	require.NoError(t, err)

	var doc invoiceXML
	require.NoError(t, xml.Unmarshal(data, &doc))

	require.Equal(t, "http://www.gdt.gov.vn/einvoice", doc.XMLNS)
	require.Equal(t, "2.0", doc.Version)
	require.Equal(t, invoice.InvoiceNumber, doc.General.InvoiceNumber)
	require.Equal(t, "0123456789", doc.Seller.TaxCode)
	require.Equal(t, "Cliente SA", doc.Buyer.Name)
	require.Len(t, doc.Items, 2)
	require.InDelta(t, 10.0, doc.Items[0].VATRate, 0.0001) // percentage in XML
	require.InDelta(t, invoice.Total, doc.Summary.Total, 0.001)
}
