// Package invoice renders order documents from the order's item snapshots.
package invoice

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

const DefaultQRSize = 256

// TrackingQR returns a PNG QR code encoding the order code.
func TrackingQR(code string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	return qrcode.Encode(code, qrcode.Medium, size)
}

// Render writes a one-page PDF invoice for o. Prices come from o.Items, never
// from the live catalog.
func Render(w io.Writer, shopName string, o shop.Order) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+o.Code, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, shopName)
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, "Order: "+o.Code)
	pdf.Ln(6)
	pdf.Cell(0, 7, "Date: "+o.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	pdf.Ln(6)
	pdf.Cell(0, 7, "Status: "+string(o.Status))
	pdf.Ln(12)

	qr, err := TrackingQR(o.Code, DefaultQRSize)
	if err != nil {
		return fmt.Errorf("qr: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qr))
	pdf.ImageOptions("qr", 160, 15, 35, 35, false, opts, 0, "")

	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(95, 8, "Item", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(20, 8, "Qty", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, "Subtotal", "1", 1, "R", true, 0, "")

	pdf.SetFont("Arial", "", 11)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, it := range o.Items {
		pdf.CellFormat(95, 8, tr(it.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 8, it.Price.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 8, fmt.Sprint(it.Qty), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 8, it.Subtotal().StringFixed(2), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(145, 9, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 9, o.Total.StringFixed(2), "1", 1, "R", false, 0, "")

	return pdf.Output(w)
}
