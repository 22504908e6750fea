// Package receipt renders transaction receipts as PDF byte streams.
package receipt

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/yameogogildas/transactions/internal/models"
)

type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer { return &PDFRenderer{} }

func (p *PDFRenderer) Render(t models.Transaction, owner models.User) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "Transaction Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 12)
	lines := []string{
		fmt.Sprintf("Client name: %s", owner.Name),
		fmt.Sprintf("Client email: %s", owner.Email),
		fmt.Sprintf("Amount: %s %s", t.Amount.StringFixed(2), t.Currency),
		fmt.Sprintf("Service: %s", t.Service),
		fmt.Sprintf("Transaction number: %s", t.Number),
		fmt.Sprintf("Status: %s", t.Status),
		fmt.Sprintf("Date: %s", t.CreatedAt.Format("2006-01-02 15:04:05 MST")),
	}
	for _, line := range lines {
		pdf.CellFormat(0, 8, line, "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering receipt for transaction %d: %w", t.ID, err)
	}
	return buf.Bytes(), nil
}
