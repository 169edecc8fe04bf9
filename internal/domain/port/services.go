package port

import (
	"context"
	"time"

	"github.com/bibbank/loanbook/internal/domain/event"
	"github.com/bibbank/loanbook/internal/domain/model"
)

// EventPublisher defines the outbound port for publishing domain events.
type EventPublisher interface {
	Publish(ctx context.Context, events ...event.DomainEvent) error
}

// Attachment is a file carried by a Notification.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Notification is one outbound e-mail.
type Notification struct {
	To          string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Notifier delivers notifications. Failures wrap model.ErrDelivery.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// StatementRenderer produces the printable statement of a loan.
type StatementRenderer interface {
	Render(ctx context.Context, loan model.Loan) ([]byte, error)
}

// QuoteCache memoises schedule quotes for previews. A miss is (zero, false, nil).
type QuoteCache interface {
	Get(ctx context.Context, key string) (model.Quote, bool, error)
	Set(ctx context.Context, key string, quote model.Quote) error
}

// Clock is the time source of the ledger. Its location decides which calendar day "today" is.
type Clock interface {
	Now() time.Time
}
