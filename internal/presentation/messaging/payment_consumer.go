// Package messaging turns inbound broker records into use case calls.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bibbank/loanbook/internal/application/dto"
	"github.com/bibbank/loanbook/internal/domain/model"
	pkgkafka "github.com/bibbank/loanbook/pkg/kafka"
)

// PaymentMessage marks one installment as paid or unpaid.
type PaymentMessage struct {
	InstallmentID string `json:"installment_id"`
	Paid          *bool  `json:"paid"`
}

// InstallmentPayer is satisfied by usecase.SetInstallmentPaidUseCase.
type InstallmentPayer interface {
	Execute(ctx context.Context, req dto.SetInstallmentPaidRequest) (dto.SetInstallmentPaidResponse, error)
}

// PaymentConsumer applies payment notifications from the payments topic.
type PaymentConsumer struct {
	payer  InstallmentPayer
	logger *slog.Logger
}

func NewPaymentConsumer(payer InstallmentPayer, logger *slog.Logger) *PaymentConsumer {
	return &PaymentConsumer{payer: payer, logger: logger}
}

// Handle is a pkgkafka.Handler. Messages that can never succeed are logged and acknowledged;
// only store failures are returned so the offset stays uncommitted.
func (c *PaymentConsumer) Handle(ctx context.Context, msg pkgkafka.Message) error {
	var pm PaymentMessage
	if err := json.Unmarshal(msg.Value, &pm); err != nil {
		c.logger.WarnContext(ctx, "dropping malformed payment message", "key", string(msg.Key), "error", err)
		return nil
	}
	pm.InstallmentID = strings.TrimSpace(pm.InstallmentID)
	if pm.InstallmentID == "" {
		c.logger.WarnContext(ctx, "dropping payment message without installment_id", "key", string(msg.Key))
		return nil
	}
	paid := true
	if pm.Paid != nil {
		paid = *pm.Paid
	}

	resp, err := c.payer.Execute(ctx, dto.SetInstallmentPaidRequest{InstallmentID: pm.InstallmentID, Paid: paid})
	switch {
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrInvalidLoanParameters):
		c.logger.WarnContext(ctx, "dropping payment message", "installment_id", pm.InstallmentID, "error", err)
		return nil
	case err != nil:
		return fmt.Errorf("apply payment %s: %w", pm.InstallmentID, err)
	}

	c.logger.InfoContext(ctx, "payment message applied",
		"installment_id", pm.InstallmentID,
		"paid", paid,
		"changed", resp.Changed,
	)
	return nil
}
