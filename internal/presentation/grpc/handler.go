package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/bibbank/loanbook/internal/application/dto"
	"github.com/bibbank/loanbook/internal/application/sweep"
	"github.com/bibbank/loanbook/internal/application/usecase"
	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/pkg/auth"
)

var (
	writeRoles = []string{auth.RoleAdmin, auth.RoleOperator}
	readRoles  = []string{auth.RoleAdmin, auth.RoleOperator, auth.RoleAuditor}
)

// ReminderTrigger runs one reminder pass on demand. *sweep.Sweeper implements it.
type ReminderTrigger interface {
	RunOnce(ctx context.Context) (sweep.Report, error)
}

// UseCases groups the application services behind the RPC surface.
type UseCases struct {
	CreateLoan         *usecase.CreateLoanUseCase
	UpdateLoanTerms    *usecase.UpdateLoanTermsUseCase
	SetInstallmentPaid *usecase.SetInstallmentPaidUseCase
	DeleteLoan         *usecase.DeleteLoanUseCase
	GetLoan            *usecase.GetLoanUseCase
	ListLoans          *usecase.ListLoansUseCase
	DueInstallments    *usecase.DueInstallmentsUseCase
	PreviewSchedule    *usecase.PreviewScheduleUseCase
	Statement          *usecase.GenerateStatementUseCase
	Reminders          ReminderTrigger
}

// LoanBookHandler implements LoanBookServiceServer.
type LoanBookHandler struct {
	UnimplementedLoanBookServiceServer

	uc           UseCases
	enforceRoles bool
	logger       *slog.Logger
}

// NewLoanBookHandler creates the handler. With enforceRoles set every call must carry
// claims (see auth.UnaryAuthInterceptor) holding a suitable role.
func NewLoanBookHandler(uc UseCases, enforceRoles bool, logger *slog.Logger) *LoanBookHandler {
	return &LoanBookHandler{uc: uc, enforceRoles: enforceRoles, logger: logger}
}

func (h *LoanBookHandler) CreateLoan(ctx context.Context, req *CreateLoanRequest) (*LoanResponse, error) {
	if err := h.authorize(ctx, writeRoles); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	principal, err := parseDecimal("principal", req.Principal)
	if err != nil {
		return nil, err
	}
	rate, err := parseDecimal("rate_percent", req.RatePercent)
	if err != nil {
		return nil, err
	}

	result, err := h.uc.CreateLoan.Execute(ctx, dto.CreateLoanRequest{
		ClientName:       req.ClientName,
		ClientEmail:      req.ClientEmail,
		Principal:        principal,
		RatePercent:      rate,
		RateConvention:   req.RateConvention,
		InstallmentCount: int(req.InstallmentCount),
		Currency:         req.Currency,
	})
	if err != nil {
		return nil, h.toStatus(ctx, "CreateLoan", err)
	}
	return toLoanResponse(result), nil
}

func (h *LoanBookHandler) UpdateLoanTerms(ctx context.Context, req *UpdateLoanTermsRequest) (*LoanResponse, error) {
	if err := h.authorize(ctx, writeRoles); err != nil {
		return nil, err
	}
	if req == nil || req.LoanID == "" {
		return nil, status.Error(codes.InvalidArgument, "loan_id is required")
	}
	principal, err := parseDecimal("principal", req.Principal)
	if err != nil {
		return nil, err
	}
	rate, err := parseDecimal("rate_percent", req.RatePercent)
	if err != nil {
		return nil, err
	}

	result, err := h.uc.UpdateLoanTerms.Execute(ctx, dto.UpdateLoanTermsRequest{
		LoanID:         req.LoanID,
		Principal:      principal,
		RatePercent:    rate,
		RateConvention: req.RateConvention,
	})
	if err != nil {
		return nil, h.toStatus(ctx, "UpdateLoanTerms", err)
	}
	return toLoanResponse(result), nil
}

func (h *LoanBookHandler) SetInstallmentPaid(ctx context.Context, req *SetInstallmentPaidRequest) (*SetInstallmentPaidResponse, error) {
	if err := h.authorize(ctx, writeRoles); err != nil {
		return nil, err
	}
	if req == nil || req.InstallmentID == "" {
		return nil, status.Error(codes.InvalidArgument, "installment_id is required")
	}

	result, err := h.uc.SetInstallmentPaid.Execute(ctx, dto.SetInstallmentPaidRequest{
		InstallmentID: req.InstallmentID,
		Paid:          req.Paid,
	})
	if err != nil {
		return nil, h.toStatus(ctx, "SetInstallmentPaid", err)
	}
	return &SetInstallmentPaidResponse{
		Installment: toInstallmentResponse(result.Installment),
		Changed:     result.Changed,
	}, nil
}

func (h *LoanBookHandler) DeleteLoan(ctx context.Context, req *DeleteLoanRequest) (*DeleteLoanResponse, error) {
	if err := h.authorize(ctx, writeRoles); err != nil {
		return nil, err
	}
	if req == nil || req.LoanID == "" {
		return nil, status.Error(codes.InvalidArgument, "loan_id is required")
	}

	result, err := h.uc.DeleteLoan.Execute(ctx, dto.DeleteLoanRequest{LoanID: req.LoanID})
	if err != nil {
		return nil, h.toStatus(ctx, "DeleteLoan", err)
	}
	return &DeleteLoanResponse{LoanID: result.LoanID}, nil
}

func (h *LoanBookHandler) GetLoan(ctx context.Context, req *GetLoanRequest) (*LoanResponse, error) {
	if err := h.authorize(ctx, readRoles); err != nil {
		return nil, err
	}
	if req == nil || req.LoanID == "" {
		return nil, status.Error(codes.InvalidArgument, "loan_id is required")
	}

	result, err := h.uc.GetLoan.Execute(ctx, dto.GetLoanRequest{LoanID: req.LoanID})
	if err != nil {
		return nil, h.toStatus(ctx, "GetLoan", err)
	}
	return toLoanResponse(result), nil
}

func (h *LoanBookHandler) ListLoans(ctx context.Context, _ *ListLoansRequest) (*ListLoansResponse, error) {
	if err := h.authorize(ctx, readRoles); err != nil {
		return nil, err
	}

	result, err := h.uc.ListLoans.Execute(ctx, dto.ListLoansRequest{})
	if err != nil {
		return nil, h.toStatus(ctx, "ListLoans", err)
	}

	loans := make([]*LoanResponse, 0, len(result.Loans))
	for _, l := range result.Loans {
		loans = append(loans, toLoanResponse(l))
	}
	return &ListLoansResponse{Loans: loans, TotalCount: int32(len(loans))}, nil
}

func (h *LoanBookHandler) DueInstallments(ctx context.Context, req *DueInstallmentsRequest) (*DueInstallmentsResponse, error) {
	if err := h.authorize(ctx, readRoles); err != nil {
		return nil, err
	}

	var asOf time.Time
	if req != nil && strings.TrimSpace(req.AsOf) != "" {
		var err error
		asOf, err = time.Parse(time.DateOnly, strings.TrimSpace(req.AsOf))
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid as_of %q: expected YYYY-MM-DD", req.AsOf)
		}
	}

	result, err := h.uc.DueInstallments.Execute(ctx, dto.DueInstallmentsRequest{AsOf: asOf})
	if err != nil {
		return nil, h.toStatus(ctx, "DueInstallments", err)
	}

	items := make([]*DueInstallmentResponse, 0, len(result.Items))
	for _, d := range result.Items {
		items = append(items, &DueInstallmentResponse{
			InstallmentID:    d.InstallmentID,
			LoanID:           d.LoanID,
			Number:           int32(d.Number),
			InstallmentCount: int32(d.InstallmentCount),
			DueDate:          formatDate(d.DueDate),
			Amount:           d.Amount.StringFixed(2),
			Currency:         d.Currency,
			ClientName:       d.ClientName,
			ClientEmail:      d.ClientEmail,
		})
	}
	return &DueInstallmentsResponse{AsOf: formatDate(result.AsOf), Items: items}, nil
}

func (h *LoanBookHandler) PreviewSchedule(ctx context.Context, req *PreviewScheduleRequest) (*PreviewScheduleResponse, error) {
	if err := h.authorize(ctx, readRoles); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	principal, err := parseDecimal("principal", req.Principal)
	if err != nil {
		return nil, err
	}
	rate, err := parseDecimal("rate_percent", req.RatePercent)
	if err != nil {
		return nil, err
	}

	result, err := h.uc.PreviewSchedule.Execute(ctx, dto.PreviewScheduleRequest{
		Principal:        principal,
		RatePercent:      rate,
		RateConvention:   req.RateConvention,
		InstallmentCount: int(req.InstallmentCount),
		Term:             int(req.Term),
	})
	if err != nil {
		return nil, h.toStatus(ctx, "PreviewSchedule", err)
	}

	schedule := make([]*PlannedInstallmentResponse, 0, len(result.Schedule))
	for _, p := range result.Schedule {
		schedule = append(schedule, &PlannedInstallmentResponse{
			Number:  int32(p.Number),
			DueDate: formatDate(p.DueDate),
			Amount:  p.Amount.StringFixed(2),
		})
	}
	return &PreviewScheduleResponse{
		Installments:     int32(result.Installments),
		PeriodicRate:     result.PeriodicRate,
		Payment:          result.Payment.String(),
		TotalAmount:      result.TotalAmount.String(),
		TotalInterest:    result.TotalInterest.String(),
		CompoundAmount:   result.CompoundAmount.String(),
		CompoundInterest: result.CompoundInterest.String(),
		Schedule:         schedule,
		Cached:           result.Cached,
	}, nil
}

func (h *LoanBookHandler) GenerateStatement(ctx context.Context, req *GenerateStatementRequest) (*StatementResponse, error) {
	if err := h.authorize(ctx, readRoles); err != nil {
		return nil, err
	}
	if req == nil || req.LoanID == "" {
		return nil, status.Error(codes.InvalidArgument, "loan_id is required")
	}

	result, err := h.uc.Statement.Execute(ctx, dto.GenerateStatementRequest{LoanID: req.LoanID})
	if err != nil {
		return nil, h.toStatus(ctx, "GenerateStatement", err)
	}
	return &StatementResponse{
		LoanID:      result.LoanID,
		Filename:    result.Filename,
		ContentType: result.ContentType,
		Content:     result.Content,
	}, nil
}

func (h *LoanBookHandler) SendStatement(ctx context.Context, req *SendStatementRequest) (*SendStatementResponse, error) {
	if err := h.authorize(ctx, writeRoles); err != nil {
		return nil, err
	}
	if req == nil || req.LoanID == "" {
		return nil, status.Error(codes.InvalidArgument, "loan_id is required")
	}

	result, err := h.uc.Statement.Send(ctx, dto.SendStatementRequest{LoanID: req.LoanID, To: req.To})
	if err != nil {
		return nil, h.toStatus(ctx, "SendStatement", err)
	}
	return &SendStatementResponse{
		LoanID:    result.LoanID,
		Recipient: result.Recipient,
		Filename:  result.Filename,
	}, nil
}

func (h *LoanBookHandler) RunReminderSweep(ctx context.Context, _ *RunReminderSweepRequest) (*RunReminderSweepResponse, error) {
	if err := h.authorize(ctx, writeRoles); err != nil {
		return nil, err
	}
	if h.uc.Reminders == nil {
		return nil, status.Error(codes.Unavailable, "reminder sweep is not configured")
	}

	report, err := h.uc.Reminders.RunOnce(ctx)
	if err != nil {
		return nil, h.toStatus(ctx, "RunReminderSweep", err)
	}
	return &RunReminderSweepResponse{
		AsOf:   formatDate(report.AsOf),
		Due:    int32(report.Due),
		Sent:   int32(report.Sent),
		Failed: int32(report.Failed),
	}, nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func (h *LoanBookHandler) authorize(ctx context.Context, roles []string) error {
	if !h.enforceRoles {
		return nil
	}
	return auth.RequireAnyRole(ctx, roles...)
}

// toStatus maps domain errors onto gRPC codes.
func (h *LoanBookHandler) toStatus(ctx context.Context, method string, err error) error {
	switch {
	case errors.Is(err, model.ErrInvalidLoanParameters):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, model.ErrConcurrentModification):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	h.logger.ErrorContext(ctx, "rpc failed", "method", method, "error", err)
	return status.Error(codes.Internal, err.Error())
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, status.Error(codes.InvalidArgument, fmt.Sprintf("invalid %s: %v", field, err))
	}
	return d, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func toTimestamp(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}

func toLoanResponse(l dto.LoanResponse) *LoanResponse {
	insts := make([]*InstallmentResponse, 0, len(l.Installments))
	for _, inst := range l.Installments {
		insts = append(insts, toInstallmentResponse(inst))
	}
	return &LoanResponse{
		ID:                l.ID,
		ClientName:        l.ClientName,
		ClientEmail:       l.ClientEmail,
		Principal:         l.Principal.String(),
		RatePercent:       l.RatePercent.String(),
		RateConvention:    l.RateConvention,
		InstallmentCount:  int32(l.InstallmentCount),
		InstallmentAmount: l.InstallmentAmount.StringFixed(2),
		Currency:          l.Currency,
		StartDate:         formatDate(l.StartDate),
		Version:           int32(l.Version),
		CreatedAt:         toTimestamp(l.CreatedAt),
		UpdatedAt:         toTimestamp(l.UpdatedAt),
		Summary: &LoanSummaryResponse{
			TotalPaid:      l.Summary.TotalPaid.StringFixed(2),
			TotalRemaining: l.Summary.TotalRemaining.StringFixed(2),
			PaidCount:      int32(l.Summary.PaidCount),
			PendingCount:   int32(l.Summary.PendingCount),
		},
		Installments: insts,
	}
}

func toInstallmentResponse(inst dto.InstallmentResponse) *InstallmentResponse {
	out := &InstallmentResponse{
		ID:      inst.ID,
		LoanID:  inst.LoanID,
		Number:  int32(inst.Number),
		DueDate: formatDate(inst.DueDate),
		Amount:  inst.Amount.StringFixed(2),
		Paid:    inst.Paid,
		Status:  inst.Status,
	}
	if inst.PaidAt != nil {
		out.PaidAt = toTimestamp(*inst.PaidAt)
	}
	return out
}
