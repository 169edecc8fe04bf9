package sweep

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/pkg/money"
)

var reminderTemplate = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2 style="color: #2E7D32;">Payment reminder</h2>
  <p>Hello {{.ClientName}},</p>
  <p>Installment <strong>{{.Number}} of {{.Count}}</strong> of your loan is due today.</p>
  <table style="border-collapse: collapse;">
    <tr><td style="padding: 4px 12px;">Installment</td><td style="padding: 4px 12px;">{{.Number}}/{{.Count}}</td></tr>
    <tr><td style="padding: 4px 12px;">Due date</td><td style="padding: 4px 12px;">{{.DueDate}}</td></tr>
    <tr><td style="padding: 4px 12px;">Amount</td><td style="padding: 4px 12px;">{{.Amount}}</td></tr>
    <tr><td style="padding: 4px 12px;">Status</td><td style="padding: 4px 12px;">{{.Status}}</td></tr>
  </table>
  <p>If you have already paid, please disregard this message.</p>
</body>
</html>
`))

type reminderView struct {
	ClientName string
	Number     int
	Count      int
	DueDate    string
	Amount     string
	Status     string
}

// reminderSubject is e.g. "Payment reminder - installment 3".
func reminderSubject(d model.DueInstallment) string {
	return fmt.Sprintf("Payment reminder - installment %d", d.Installment.Number())
}

func renderReminder(d model.DueInstallment) (string, error) {
	view := reminderView{
		ClientName: d.ClientName,
		Number:     d.Installment.Number(),
		Count:      d.InstallmentCount,
		DueDate:    d.Installment.DueDate().Format(time.DateOnly),
		Amount:     money.New(d.Installment.Amount(), d.Currency).Display(),
		Status:     d.Installment.Status().Label(),
	}

	var buf bytes.Buffer
	if err := reminderTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render reminder: %w", err)
	}
	return buf.String(), nil
}
