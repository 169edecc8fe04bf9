package grpc_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/bibbank/loanbook/internal/application/sweep"
	"github.com/bibbank/loanbook/internal/application/usecase"
	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/internal/domain/port"
	"github.com/bibbank/loanbook/internal/domain/valueobject"
	"github.com/bibbank/loanbook/internal/infrastructure/persistence/sqlite"
	loangrpc "github.com/bibbank/loanbook/internal/presentation/grpc"
	"github.com/bibbank/loanbook/pkg/auth"
	"github.com/bibbank/loanbook/pkg/money"
)

var testNow = time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type fakeRenderer struct{}

func (fakeRenderer) Render(_ context.Context, loan model.Loan) ([]byte, error) {
	return []byte("%PDF-" + loan.ID()), nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []port.Notification
}

func (n *recordingNotifier) Send(_ context.Context, note port.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return nil
}

type fakeTrigger struct {
	report sweep.Report
	err    error
	calls  int
}

func (f *fakeTrigger) RunOnce(context.Context) (sweep.Report, error) {
	f.calls++
	return f.report, f.err
}

type harness struct {
	handler  *loangrpc.LoanBookHandler
	notifier *recordingNotifier
	trigger  *fakeTrigger
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, enforceRoles bool) *harness {
	t.Helper()

	repo, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	logger := discardLogger()
	clock := &fixedClock{now: testNow}
	defaults := usecase.LoanDefaults{RateConvention: valueobject.RateConventionAnnual, Currency: money.BRL}
	notifier := &recordingNotifier{}
	trigger := &fakeTrigger{}

	h := loangrpc.NewLoanBookHandler(loangrpc.UseCases{
		CreateLoan:         usecase.NewCreateLoanUseCase(repo, clock, defaults, logger),
		UpdateLoanTerms:    usecase.NewUpdateLoanTermsUseCase(repo, clock, logger),
		SetInstallmentPaid: usecase.NewSetInstallmentPaidUseCase(repo, clock, logger),
		DeleteLoan:         usecase.NewDeleteLoanUseCase(repo, clock, logger),
		GetLoan:            usecase.NewGetLoanUseCase(repo),
		ListLoans:          usecase.NewListLoansUseCase(repo),
		DueInstallments:    usecase.NewDueInstallmentsUseCase(repo, clock),
		PreviewSchedule:    usecase.NewPreviewScheduleUseCase(nil, clock, defaults, logger),
		Statement:          usecase.NewGenerateStatementUseCase(repo, fakeRenderer{}, notifier, "", logger),
		Reminders:          trigger,
	}, enforceRoles, logger)

	return &harness{handler: h, notifier: notifier, trigger: trigger}
}

func (h *harness) createLoan(t *testing.T) *loangrpc.LoanResponse {
	t.Helper()
	resp, err := h.handler.CreateLoan(context.Background(), &loangrpc.CreateLoanRequest{
		ClientName:       "Maria Silva",
		ClientEmail:      "maria@example.com",
		Principal:        "1000",
		RatePercent:      "12",
		InstallmentCount: 12,
	})
	require.NoError(t, err)
	return resp
}

func requireCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok, "expected a status error, got %v", err)
	assert.Equal(t, want, st.Code(), st.Message())
}

func TestLoanBookHandler_CreateAndGet(t *testing.T) {
	h := newHarness(t, false)
	created := h.createLoan(t)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "88.85", created.InstallmentAmount)
	assert.Equal(t, "ANNUAL", created.RateConvention)
	assert.Equal(t, "BRL", created.Currency)
	assert.Equal(t, "2026-05-04", created.StartDate)
	require.Len(t, created.Installments, 12)
	assert.Equal(t, "2026-06-03", created.Installments[0].DueDate)
	assert.Equal(t, "PENDING", created.Installments[0].Status)
	assert.Nil(t, created.Installments[0].PaidAt)
	assert.Equal(t, testNow.Unix(), created.CreatedAt.GetSeconds())
	assert.Equal(t, "0.00", created.Summary.TotalPaid)
	assert.Equal(t, "1066.20", created.Summary.TotalRemaining)

	got, err := h.handler.GetLoan(context.Background(), &loangrpc.GetLoanRequest{LoanID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Len(t, got.Installments, 12)
}

func TestLoanBookHandler_ErrorCodes(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	t.Run("malformed decimal", func(t *testing.T) {
		_, err := h.handler.CreateLoan(ctx, &loangrpc.CreateLoanRequest{
			ClientName: "Ana", Principal: "ten", RatePercent: "1", InstallmentCount: 3,
		})
		requireCode(t, err, codes.InvalidArgument)
	})

	t.Run("zero installments", func(t *testing.T) {
		_, err := h.handler.CreateLoan(ctx, &loangrpc.CreateLoanRequest{
			ClientName: "Ana", Principal: "100", RatePercent: "1", InstallmentCount: 0,
		})
		requireCode(t, err, codes.InvalidArgument)
	})

	t.Run("unknown loan", func(t *testing.T) {
		_, err := h.handler.GetLoan(ctx, &loangrpc.GetLoanRequest{LoanID: "missing"})
		requireCode(t, err, codes.NotFound)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := h.handler.DeleteLoan(ctx, &loangrpc.DeleteLoanRequest{})
		requireCode(t, err, codes.InvalidArgument)
	})

	t.Run("unknown installment", func(t *testing.T) {
		_, err := h.handler.SetInstallmentPaid(ctx, &loangrpc.SetInstallmentPaidRequest{InstallmentID: "nope", Paid: true})
		requireCode(t, err, codes.NotFound)
	})

	t.Run("malformed as_of", func(t *testing.T) {
		_, err := h.handler.DueInstallments(ctx, &loangrpc.DueInstallmentsRequest{AsOf: "04/05/2026"})
		requireCode(t, err, codes.InvalidArgument)
	})
}

func TestLoanBookHandler_PayAndReprice(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	created := h.createLoan(t)
	first := created.Installments[0]

	paid, err := h.handler.SetInstallmentPaid(ctx, &loangrpc.SetInstallmentPaidRequest{InstallmentID: first.ID, Paid: true})
	require.NoError(t, err)
	assert.True(t, paid.Changed)
	assert.True(t, paid.Installment.Paid)
	assert.Equal(t, "PAID", paid.Installment.Status)
	require.NotNil(t, paid.Installment.PaidAt)
	assert.True(t, testNow.Equal(paid.Installment.PaidAt.AsTime()))

	again, err := h.handler.SetInstallmentPaid(ctx, &loangrpc.SetInstallmentPaidRequest{InstallmentID: first.ID, Paid: true})
	require.NoError(t, err)
	assert.False(t, again.Changed)

	updated, err := h.handler.UpdateLoanTerms(ctx, &loangrpc.UpdateLoanTermsRequest{
		LoanID:      created.ID,
		Principal:   "1000",
		RatePercent: "24",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "88.85", updated.InstallmentAmount)
	assert.Equal(t, "88.85", updated.Installments[0].Amount)
	assert.True(t, updated.Installments[0].Paid)
	for _, inst := range updated.Installments[1:] {
		assert.Equal(t, updated.InstallmentAmount, inst.Amount)
	}
	assert.Equal(t, "88.85", updated.Summary.TotalPaid)
	assert.Equal(t, int32(1), updated.Summary.PaidCount)
	assert.Equal(t, int32(11), updated.Summary.PendingCount)
}

func TestLoanBookHandler_ListAndDelete(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	a := h.createLoan(t)
	h.createLoan(t)

	list, err := h.handler.ListLoans(ctx, &loangrpc.ListLoansRequest{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), list.TotalCount)

	deleted, err := h.handler.DeleteLoan(ctx, &loangrpc.DeleteLoanRequest{LoanID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, a.ID, deleted.LoanID)

	_, err = h.handler.GetLoan(ctx, &loangrpc.GetLoanRequest{LoanID: a.ID})
	requireCode(t, err, codes.NotFound)

	_, err = h.handler.DeleteLoan(ctx, &loangrpc.DeleteLoanRequest{LoanID: a.ID})
	requireCode(t, err, codes.NotFound)

	list, err = h.handler.ListLoans(ctx, &loangrpc.ListLoansRequest{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), list.TotalCount)
}

func TestLoanBookHandler_DueInstallments(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	created := h.createLoan(t)

	due, err := h.handler.DueInstallments(ctx, &loangrpc.DueInstallmentsRequest{AsOf: "2026-06-03"})
	require.NoError(t, err)
	assert.Equal(t, "2026-06-03", due.AsOf)
	require.Len(t, due.Items, 1)
	item := due.Items[0]
	assert.Equal(t, created.ID, item.LoanID)
	assert.Equal(t, int32(1), item.Number)
	assert.Equal(t, int32(12), item.InstallmentCount)
	assert.Equal(t, "88.85", item.Amount)
	assert.Equal(t, "maria@example.com", item.ClientEmail)

	today, err := h.handler.DueInstallments(ctx, &loangrpc.DueInstallmentsRequest{})
	require.NoError(t, err)
	assert.Equal(t, "2026-05-04", today.AsOf)
	assert.Empty(t, today.Items)
}

func TestLoanBookHandler_PreviewSchedule(t *testing.T) {
	h := newHarness(t, false)

	resp, err := h.handler.PreviewSchedule(context.Background(), &loangrpc.PreviewScheduleRequest{
		Principal:        "1000",
		RatePercent:      "12",
		InstallmentCount: 12,
		Term:             12,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(12), resp.Installments)
	assert.InDelta(t, 0.01, resp.PeriodicRate, 1e-12)
	assert.False(t, resp.Cached)
	require.Len(t, resp.Schedule, 12)
	assert.Equal(t, "88.85", resp.Schedule[0].Amount)
	assert.Equal(t, "2026-06-03", resp.Schedule[0].DueDate)
}

func TestLoanBookHandler_Statements(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	created := h.createLoan(t)

	stmt, err := h.handler.GenerateStatement(ctx, &loangrpc.GenerateStatementRequest{LoanID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", stmt.ContentType)
	assert.Equal(t, []byte("%PDF-"+created.ID), stmt.Content)
	assert.Contains(t, stmt.Filename, "loan_maria_silva_")

	sent, err := h.handler.SendStatement(ctx, &loangrpc.SendStatementRequest{LoanID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", sent.Recipient)
	require.Len(t, h.notifier.sent, 1)
	require.Len(t, h.notifier.sent[0].Attachments, 1)
	assert.Equal(t, stmt.Filename, h.notifier.sent[0].Attachments[0].Filename)
}

func TestLoanBookHandler_RunReminderSweep(t *testing.T) {
	t.Run("reports the pass", func(t *testing.T) {
		h := newHarness(t, false)
		h.trigger.report = sweep.Report{AsOf: time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), Due: 3, Sent: 2, Failed: 1}

		resp, err := h.handler.RunReminderSweep(context.Background(), &loangrpc.RunReminderSweepRequest{})
		require.NoError(t, err)
		assert.Equal(t, "2026-05-04", resp.AsOf)
		assert.Equal(t, int32(3), resp.Due)
		assert.Equal(t, int32(2), resp.Sent)
		assert.Equal(t, int32(1), resp.Failed)
		assert.Equal(t, 1, h.trigger.calls)
	})

	t.Run("query failure is internal", func(t *testing.T) {
		h := newHarness(t, false)
		h.trigger.err = errors.Join(model.ErrPersistence, errors.New("disk full"))

		_, err := h.handler.RunReminderSweep(context.Background(), &loangrpc.RunReminderSweepRequest{})
		requireCode(t, err, codes.Internal)
	})
}

func TestLoanBookHandler_Roles(t *testing.T) {
	h := newHarness(t, true)
	withRoles := func(roles ...string) context.Context {
		return auth.ContextWithClaims(context.Background(), &auth.Claims{Roles: roles})
	}

	t.Run("no claims", func(t *testing.T) {
		_, err := h.handler.ListLoans(context.Background(), &loangrpc.ListLoansRequest{})
		requireCode(t, err, codes.Unauthenticated)
	})

	t.Run("auditor reads", func(t *testing.T) {
		_, err := h.handler.ListLoans(withRoles(auth.RoleAuditor), &loangrpc.ListLoansRequest{})
		require.NoError(t, err)
	})

	t.Run("auditor cannot write", func(t *testing.T) {
		_, err := h.handler.CreateLoan(withRoles(auth.RoleAuditor), &loangrpc.CreateLoanRequest{
			ClientName: "Ana", Principal: "100", RatePercent: "1", InstallmentCount: 2,
		})
		requireCode(t, err, codes.PermissionDenied)

		_, err = h.handler.RunReminderSweep(withRoles(auth.RoleAuditor), &loangrpc.RunReminderSweepRequest{})
		requireCode(t, err, codes.PermissionDenied)
	})

	t.Run("operator writes", func(t *testing.T) {
		resp, err := h.handler.CreateLoan(withRoles(auth.RoleOperator), &loangrpc.CreateLoanRequest{
			ClientName: "Ana", Principal: "100", RatePercent: "1", InstallmentCount: 2,
		})
		require.NoError(t, err)
		assert.Len(t, resp.Installments, 2)
	})
}

func TestServer_OverTheWire(t *testing.T) {
	h := newHarness(t, true)
	jwtSvc, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "loanbook", Expiration: time.Hour})
	require.NoError(t, err)

	srv, err := loangrpc.NewServer(h.handler, discardLogger(), loangrpc.ServerOptions{JWT: jwtSvc})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.ServeListener(lis) }()
	t.Cleanup(srv.GracefulStop)

	conn, err := grpclib.NewClient("passthrough:///bufnet",
		grpclib.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpclib.WithTransportCredentials(insecure.NewCredentials()),
		grpclib.WithDefaultCallOptions(grpclib.CallContentSubtype(loangrpc.CodecName)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	method := "/" + loangrpc.ServiceName + "/"

	t.Run("health needs no token", func(t *testing.T) {
		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: loangrpc.ServiceName},
			grpclib.CallContentSubtype("proto"))
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	})

	t.Run("missing token", func(t *testing.T) {
		var out loangrpc.ListLoansResponse
		err := conn.Invoke(ctx, method+"ListLoans", &loangrpc.ListLoansRequest{}, &out)
		requireCode(t, err, codes.Unauthenticated)
	})

	t.Run("operator creates and lists", func(t *testing.T) {
		token, err := jwtSvc.GenerateToken("ops-1", []string{auth.RoleOperator})
		require.NoError(t, err)
		authed := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)

		var created loangrpc.LoanResponse
		err = conn.Invoke(authed, method+"CreateLoan", &loangrpc.CreateLoanRequest{
			ClientName:       "Maria Silva",
			Principal:        "1000",
			RatePercent:      "12",
			InstallmentCount: 12,
		}, &created)
		require.NoError(t, err)
		assert.Equal(t, "88.85", created.InstallmentAmount)

		var list loangrpc.ListLoansResponse
		require.NoError(t, conn.Invoke(authed, method+"ListLoans", &loangrpc.ListLoansRequest{}, &list))
		require.Len(t, list.Loans, 1)
		assert.Equal(t, created.ID, list.Loans[0].ID)
	})
}
