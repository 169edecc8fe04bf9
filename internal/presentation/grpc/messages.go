package grpc

import "google.golang.org/protobuf/types/known/timestamppb"

// Wire messages for loanbook.v1.LoanBookService. Amounts and rates are decimal strings,
// dates are YYYY-MM-DD.

type CreateLoanRequest struct {
	ClientName       string `json:"client_name"`
	ClientEmail      string `json:"client_email"`
	Principal        string `json:"principal"`
	RatePercent      string `json:"rate_percent"`
	RateConvention   string `json:"rate_convention"`
	InstallmentCount int32  `json:"installment_count"`
	Currency         string `json:"currency"`
}

type UpdateLoanTermsRequest struct {
	LoanID         string `json:"loan_id"`
	Principal      string `json:"principal"`
	RatePercent    string `json:"rate_percent"`
	RateConvention string `json:"rate_convention"`
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

// DueInstallmentsRequest selects a day; empty AsOf means today.
type DueInstallmentsRequest struct {
	AsOf string `json:"as_of"`
}

type PreviewScheduleRequest struct {
	Principal        string `json:"principal"`
	RatePercent      string `json:"rate_percent"`
	RateConvention   string `json:"rate_convention"`
	InstallmentCount int32  `json:"installment_count"`
	Term             int32  `json:"term"`
}

type GenerateStatementRequest struct {
	LoanID string `json:"loan_id"`
}

type SendStatementRequest struct {
	LoanID string `json:"loan_id"`
	To     string `json:"to"`
}

type RunReminderSweepRequest struct{}

type InstallmentResponse struct {
	ID      string `json:"id"`
	LoanID  string `json:"loan_id"`
	Number  int32  `json:"number"`
	DueDate string `json:"due_date"`
	Amount  string `json:"amount"`
	Paid    bool   `json:"paid"`
	PaidAt  *timestamppb.Timestamp `json:"paid_at,omitempty"`
	Status  string `json:"status"`
}

type LoanSummaryResponse struct {
	TotalPaid      string `json:"total_paid"`
	TotalRemaining string `json:"total_remaining"`
	PaidCount      int32  `json:"paid_count"`
	PendingCount   int32  `json:"pending_count"`
}

type LoanResponse struct {
	ID                string                 `json:"id"`
	ClientName        string                 `json:"client_name"`
	ClientEmail       string                 `json:"client_email,omitempty"`
	Principal         string                 `json:"principal"`
	RatePercent       string                 `json:"rate_percent"`
	RateConvention    string                 `json:"rate_convention"`
	InstallmentCount  int32                  `json:"installment_count"`
	InstallmentAmount string                 `json:"installment_amount"`
	Currency          string                 `json:"currency"`
	StartDate         string                 `json:"start_date"`
	Version           int32                  `json:"version"`
	CreatedAt         *timestamppb.Timestamp `json:"created_at"`
	UpdatedAt         *timestamppb.Timestamp `json:"updated_at"`
	Summary           *LoanSummaryResponse   `json:"summary"`
	Installments      []*InstallmentResponse `json:"installments"`
}

type ListLoansResponse struct {
	Loans      []*LoanResponse `json:"loans"`
	TotalCount int32           `json:"total_count"`
}

type DeleteLoanResponse struct {
	LoanID string `json:"loan_id"`
}

type SetInstallmentPaidResponse struct {
	Installment *InstallmentResponse `json:"installment"`
	Changed     bool                 `json:"changed"`
}

type DueInstallmentResponse struct {
	InstallmentID    string `json:"installment_id"`
	LoanID           string `json:"loan_id"`
	Number           int32  `json:"number"`
	InstallmentCount int32  `json:"installment_count"`
	DueDate          string `json:"due_date"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	ClientName       string `json:"client_name"`
	ClientEmail      string `json:"client_email,omitempty"`
}

type DueInstallmentsResponse struct {
	AsOf  string                    `json:"as_of"`
	Items []*DueInstallmentResponse `json:"items"`
}

type PlannedInstallmentResponse struct {
	Number  int32  `json:"number"`
	DueDate string `json:"due_date"`
	Amount  string `json:"amount"`
}

type PreviewScheduleResponse struct {
	Installments     int32                         `json:"installments"`
	PeriodicRate     float64                       `json:"periodic_rate"`
	Payment          string                        `json:"payment"`
	TotalAmount      string                        `json:"total_amount"`
	TotalInterest    string                        `json:"total_interest"`
	CompoundAmount   string                        `json:"compound_amount"`
	CompoundInterest string                        `json:"compound_interest"`
	Schedule         []*PlannedInstallmentResponse `json:"schedule"`
	Cached           bool                          `json:"cached"`
}

// StatementResponse carries the PDF; Content is base64 on the wire.
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

type RunReminderSweepResponse struct {
	AsOf   string `json:"as_of"`
	Due    int32  `json:"due"`
	Sent   int32  `json:"sent"`
	Failed int32  `json:"failed"`
}
