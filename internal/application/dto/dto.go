package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// CreateLoanRequest carries the data needed to record a new loan. Empty RateConvention
// and Currency fall back to the configured defaults.
type CreateLoanRequest struct {
	ClientName       string          `json:"client_name"`
	ClientEmail      string          `json:"client_email"`
	Principal        decimal.Decimal `json:"principal"`
	RatePercent      decimal.Decimal `json:"rate_percent"`
	RateConvention   string          `json:"rate_convention"`
	InstallmentCount int             `json:"installment_count"`
	Currency         string          `json:"currency"`
}

// UpdateLoanTermsRequest changes principal and rate. An empty RateConvention keeps the
// loan's current convention.
type UpdateLoanTermsRequest struct {
	LoanID         string          `json:"loan_id"`
	Principal      decimal.Decimal `json:"principal"`
	RatePercent    decimal.Decimal `json:"rate_percent"`
	RateConvention string          `json:"rate_convention"`
}

type SetInstallmentPaidRequest struct {
	InstallmentID string `json:"installment_id"`
	Paid          bool   `json:"paid"`
}

type DeleteLoanRequest struct {
	LoanID string `json:"loan_id"`
}

type GetLoanRequest struct {
	LoanID string `json:"loan_id"`
}

type ListLoansRequest struct{}

// DueInstallmentsRequest selects a calendar day. A zero AsOf means today.
type DueInstallmentsRequest struct {
	AsOf time.Time `json:"as_of"`
}

// PreviewScheduleRequest prices a schedule without recording anything.
type PreviewScheduleRequest struct {
	Principal        decimal.Decimal `json:"principal"`
	RatePercent      decimal.Decimal `json:"rate_percent"`
	RateConvention   string          `json:"rate_convention"`
	InstallmentCount int             `json:"installment_count"`
	Term             int             `json:"term"`
}

type GenerateStatementRequest struct {
	LoanID string `json:"loan_id"`
}

// SendStatementRequest mails the statement. An empty To uses the client's address.
type SendStatementRequest struct {
	LoanID string `json:"loan_id"`
	To     string `json:"to"`
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

type InstallmentResponse struct {
	ID      string          `json:"id"`
	LoanID  string          `json:"loan_id"`
	Number  int             `json:"number"`
	DueDate time.Time       `json:"due_date"`
	Amount  decimal.Decimal `json:"amount"`
	Paid    bool            `json:"paid"`
	PaidAt  *time.Time      `json:"paid_at,omitempty"`
	Status  string          `json:"status"`
}

type LoanSummaryResponse struct {
	TotalPaid      decimal.Decimal `json:"total_paid"`
	TotalRemaining decimal.Decimal `json:"total_remaining"`
	PaidCount      int             `json:"paid_count"`
	PendingCount   int             `json:"pending_count"`
}

// LoanResponse is the external representation of a loan and its schedule.
type LoanResponse struct {
	ID                string                `json:"id"`
	ClientName        string                `json:"client_name"`
	ClientEmail       string                `json:"client_email,omitempty"`
	Principal         decimal.Decimal       `json:"principal"`
	RatePercent       decimal.Decimal       `json:"rate_percent"`
	RateConvention    string                `json:"rate_convention"`
	InstallmentCount  int                   `json:"installment_count"`
	InstallmentAmount decimal.Decimal       `json:"installment_amount"`
	Currency          string                `json:"currency"`
	StartDate         time.Time             `json:"start_date"`
	Version           int                   `json:"version"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
	Summary           LoanSummaryResponse   `json:"summary"`
	Installments      []InstallmentResponse `json:"installments"`
}

type ListLoansResponse struct {
	Loans []LoanResponse `json:"loans"`
}

type DeleteLoanResponse struct {
	LoanID string `json:"loan_id"`
}

// SetInstallmentPaidResponse reports Changed=false when the flag already had the value.
type SetInstallmentPaidResponse struct {
	Installment InstallmentResponse `json:"installment"`
	Changed     bool                `json:"changed"`
}

type DueInstallmentResponse struct {
	InstallmentID    string          `json:"installment_id"`
	LoanID           string          `json:"loan_id"`
	Number           int             `json:"number"`
	InstallmentCount int             `json:"installment_count"`
	DueDate          time.Time       `json:"due_date"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	ClientName       string          `json:"client_name"`
	ClientEmail      string          `json:"client_email,omitempty"`
}

type DueInstallmentsResponse struct {
	AsOf  time.Time                `json:"as_of"`
	Items []DueInstallmentResponse `json:"items"`
}

type PlannedInstallmentResponse struct {
	Number  int             `json:"number"`
	DueDate time.Time       `json:"due_date"`
	Amount  decimal.Decimal `json:"amount"`
}

// PreviewScheduleResponse carries both totals: TotalAmount is payment×n, CompoundAmount
// is principal grown by (1+r)^term.
type PreviewScheduleResponse struct {
	Installments     int                          `json:"installments"`
	PeriodicRate     float64                      `json:"periodic_rate"`
	Payment          decimal.Decimal              `json:"payment"`
	TotalAmount      decimal.Decimal              `json:"total_amount"`
	TotalInterest    decimal.Decimal              `json:"total_interest"`
	CompoundAmount   decimal.Decimal              `json:"compound_amount"`
	CompoundInterest decimal.Decimal              `json:"compound_interest"`
	Schedule         []PlannedInstallmentResponse `json:"schedule"`
	Cached           bool                         `json:"cached"`
}

type StatementResponse struct {
	LoanID      string `json:"loan_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

type SendStatementResponse struct {
	LoanID    string `json:"loan_id"`
	Recipient string `json:"recipient"`
	Filename  string `json:"filename"`
}
