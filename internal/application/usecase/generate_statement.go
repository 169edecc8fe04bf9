package usecase

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/bibbank/loanbook/internal/application/dto"
	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/internal/domain/port"
)

const statementContentType = "application/pdf"

// GenerateStatementUseCase renders a loan statement and, through Send, mails it.
type GenerateStatementUseCase struct {
	loanRepo   port.LoanRepository
	renderer   port.StatementRenderer
	notifier   port.Notifier
	fallbackTo string
	logger     *slog.Logger
}

// NewGenerateStatementUseCase wires dependencies. fallbackTo receives statements of loans
// without a client e-mail.
func NewGenerateStatementUseCase(
	loanRepo port.LoanRepository,
	renderer port.StatementRenderer,
	notifier port.Notifier,
	fallbackTo string,
	logger *slog.Logger,
) *GenerateStatementUseCase {
	return &GenerateStatementUseCase{
		loanRepo:   loanRepo,
		renderer:   renderer,
		notifier:   notifier,
		fallbackTo: fallbackTo,
		logger:     logger,
	}
}

func (uc *GenerateStatementUseCase) Execute(ctx context.Context, req dto.GenerateStatementRequest) (dto.StatementResponse, error) {
	loan, err := uc.loanRepo.FindByID(ctx, req.LoanID)
	if err != nil {
		return dto.StatementResponse{}, fmt.Errorf("find loan: %w", err)
	}
	return uc.render(ctx, loan)
}

// Send renders the statement and e-mails it as an attachment.
func (uc *GenerateStatementUseCase) Send(ctx context.Context, req dto.SendStatementRequest) (dto.SendStatementResponse, error) {
	loan, err := uc.loanRepo.FindByID(ctx, req.LoanID)
	if err != nil {
		return dto.SendStatementResponse{}, fmt.Errorf("find loan: %w", err)
	}

	to := firstNonEmpty(req.To, loan.ClientEmail(), uc.fallbackTo)
	if to == "" {
		return dto.SendStatementResponse{}, fmt.Errorf("resolve recipient: %w: loan %s has no e-mail and no fallback is configured",
			model.ErrDelivery, loan.ID())
	}

	stmt, err := uc.render(ctx, loan)
	if err != nil {
		return dto.SendStatementResponse{}, err
	}

	err = uc.notifier.Send(ctx, port.Notification{
		To:       to,
		Subject:  fmt.Sprintf("Loan statement - %s", loan.ClientName()),
		HTMLBody: fmt.Sprintf("<p>Attached is the statement of the loan of <strong>%s</strong>.</p>", html.EscapeString(loan.ClientName())),
		Attachments: []port.Attachment{{
			Filename:    stmt.Filename,
			ContentType: stmt.ContentType,
			Data:        stmt.Content,
		}},
	})
	if err != nil {
		return dto.SendStatementResponse{}, fmt.Errorf("send statement: %w", err)
	}

	uc.logger.InfoContext(ctx, "statement sent", "loan_id", loan.ID(), "recipient", to)
	return dto.SendStatementResponse{LoanID: loan.ID(), Recipient: to, Filename: stmt.Filename}, nil
}

func (uc *GenerateStatementUseCase) render(ctx context.Context, loan model.Loan) (dto.StatementResponse, error) {
	content, err := uc.renderer.Render(ctx, loan)
	if err != nil {
		return dto.StatementResponse{}, fmt.Errorf("render statement: %w", err)
	}
	return dto.StatementResponse{
		LoanID:      loan.ID(),
		Filename:    StatementFilename(loan),
		ContentType: statementContentType,
		Content:     content,
	}, nil
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// StatementFilename is e.g. "loan_maria_silva_3f2a9c1e.pdf".
func StatementFilename(loan model.Loan) string {
	name := strings.Trim(unsafeFilename.ReplaceAllString(strings.ToLower(loan.ClientName()), "_"), "_")
	if name == "" {
		name = "client"
	}
	id := loan.ID()
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("loan_%s_%s.pdf", name, id)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
