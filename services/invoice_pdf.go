package services

import (
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/mipyme/backend/models"
)

// renderInvoicePDF writes the customer-facing PDF for an invoice: header,
// seller and buyer blocks, the item table and the totals section.
func renderInvoicePDF(path string, invoice *models.Invoice) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// Title
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 10, "FACTURA ELECTRONICA / E-INVOICE", "", 1, "L", false, 0, "")

	// Invoice header
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Invoice Number: "+invoice.InvoiceNumber, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date: "+invoice.InvoiceDate.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	drawSeparator(pdf)

	// Seller block
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, "SELLER:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, "Name: "+invoice.SellerName, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Tax Code: "+invoice.SellerTaxCode, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Address: "+invoice.SellerAddress, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Phone: %s | Email: %s", invoice.SellerPhone, invoice.SellerEmail), "", 1, "L", false, 0, "")

	// Buyer block
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, "CUSTOMER:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, "Name: "+invoice.BuyerName, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Tax Code: "+invoice.BuyerTaxCode, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Address: "+invoice.BuyerAddress, "", 1, "L", false, 0, "")

	// Item table
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, "ITEMS:", "", 1, "L", false, 0, "")
	pdf.CellFormat(10, 6, "#", "B", 0, "L", false, 0, "")
	pdf.CellFormat(85, 6, "Description", "B", 0, "L", false, 0, "")
	pdf.CellFormat(20, 6, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, "Unit Price", "B", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, item := range invoice.Items {
		desc := item.Description
		if len(desc) > 45 {
			desc = desc[:45]
		}
		pdf.CellFormat(10, 6, fmt.Sprintf("%d", item.LineNumber), "", 0, "L", false, 0, "")
		pdf.CellFormat(85, 6, desc, "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, trimZeros(item.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, formatAmount(item.UnitPrice), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, formatAmount(item.Amount), "", 1, "R", false, 0, "")
	}
	drawSeparator(pdf)

	// Totals
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(115, 6, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(35, 6, "Subtotal:", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, fmt.Sprintf("%s %s", formatAmount(invoice.Subtotal), invoice.Currency), "", 1, "R", false, 0, "")

	pdf.CellFormat(115, 6, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(35, 6, fmt.Sprintf("VAT (%.0f%%):", invoice.VATRate*100), "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, fmt.Sprintf("%s %s", formatAmount(invoice.VATAmount), invoice.Currency), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(115, 8, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(35, 8, "TOTAL:", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, fmt.Sprintf("%s %s", formatAmount(invoice.Total), invoice.Currency), "", 1, "R", false, 0, "")

	// Payment method and notes
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Payment Method: "+invoice.PaymentMethod, "", 1, "L", false, 0, "")
	if invoice.Notes != "" {
		pdf.CellFormat(0, 6, "Notes: "+invoice.Notes, "", 1, "L", false, 0, "")
	}

	// Footer
	pdf.SetY(-25)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 5, "Electronic invoice valid under Decree 70/2025/ND-CP", "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Invoice ID: "+invoice.ID, "", 1, "L", false, 0, "")

	return pdf.OutputFileAndClose(path)
}

func drawSeparator(pdf *fpdf.Fpdf) {
	x, y := pdf.GetXY()
	w, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	pdf.Line(left, y, w-right, y)
	pdf.SetXY(x, y+1)
}

// formatAmount renders an amount with thousands separators and two
// decimals, e.g. 1234567.5 -> "1,234,567.50".
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	parts := strings.SplitN(s, ".", 2)
	intPart, fracPart := parts[0], parts[1]

	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}

	var b strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}

	out := b.String() + "." + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

// trimZeros renders a quantity without trailing decimal zeros.
func trimZeros(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
