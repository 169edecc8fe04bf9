// Package statement renders printable loan statements.
package statement

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/pkg/money"
)

var columns = []struct {
	title string
	width float64
	align string
}{
	{"No.", 20, "C"},
	{"Due date", 50, "C"},
	{"Amount", 60, "R"},
	{"Status", 50, "C"},
}

// PDFRenderer implements port.StatementRenderer with an A4 table layout.
type PDFRenderer struct {
	title string
	now   func() time.Time
}

// NewPDFRenderer returns a renderer whose documents carry title in the header.
func NewPDFRenderer(title string, now func() time.Time) *PDFRenderer {
	if title == "" {
		title = "Loan statement"
	}
	if now == nil {
		now = time.Now
	}
	return &PDFRenderer{title: title, now: now}
}

func (r *PDFRenderer) Render(ctx context.Context, loan model.Loan) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := r.build(loan)
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render statement pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) build(loan model.Loan) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(r.title, true)
	pdf.SetCreator("loanbook", true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(r.title), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	summary := loan.Summary()
	currency := loan.Currency()
	pdf.SetFont("Arial", "", 11)
	lines := []string{
		"Client: " + loan.ClientName(),
		"Principal: " + money.New(loan.Principal(), currency).Display(),
		fmt.Sprintf("Interest rate: %s%% %s", loan.Rate().Percent().String(), loan.Rate().Convention().String()),
		fmt.Sprintf("Installments: %d x %s", loan.InstallmentCount(), money.New(loan.InstallmentAmount(), currency).Display()),
		"Total paid: " + summary.TotalPaid.Display(),
		"Total remaining: " + summary.TotalRemaining.Display(),
		"Issued: " + r.now().Format(time.DateOnly),
	}
	for _, line := range lines {
		pdf.CellFormat(0, 7, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	header := func() {
		pdf.SetFont("Arial", "B", 11)
		pdf.SetFillColor(46, 125, 50)
		pdf.SetTextColor(255, 255, 255)
		for _, c := range columns {
			pdf.CellFormat(c.width, 8, c.title, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Arial", "", 10)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for i, inst := range loan.Installments() {
		if pdf.GetY()+7 > pageHeight-bottom-15 {
			pdf.AddPage()
			header()
		}
		fill := i%2 == 1
		pdf.SetFillColor(240, 240, 240)
		cells := []string{
			fmt.Sprintf("%d", inst.Number()),
			inst.DueDate().Format(time.DateOnly),
			money.New(inst.Amount(), currency).Display(),
			inst.Status().Label(),
		}
		for j, c := range columns {
			pdf.CellFormat(c.width, 7, tr(cells[j]), "1", 0, c.align, fill, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf
}
