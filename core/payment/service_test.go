package payment_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/payment"
	"github.com/trezcool/maktaba/core/student"
	sqlxrepos "github.com/trezcool/maktaba/storage/database/sqlx"
	"github.com/trezcool/maktaba/tests"
)

var d = core.MustParseDate

type fixture struct {
	svc      *payment.Service
	repo     *sqlxrepos.PaymentRepository
	students *sqlxrepos.StudentRepository
	today    core.Date
}

func setup(t *testing.T) *fixture {
	db := testutil.PrepareDB(t)
	f := &fixture{
		repo:     sqlxrepos.NewPaymentRepository(db),
		students: sqlxrepos.NewStudentRepository(db),
		today:    d("2024-01-15"),
	}
	f.svc = payment.NewService(db, f.repo, f.students, func() core.Date { return f.today })
	return f
}

func TestService_Record(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	std := testutil.CreateStudent(t, f.students, "Asha", d("2024-01-01"))

	tests := []struct {
		name       string
		np         payment.NewPayment
		wantStatus payment.Status
		wantErr    error
	}{
		{
			name:       "paid on period start",
			np:         payment.NewPayment{StudentID: std.ID, Amount: decimal.NewFromInt(1200), PeriodStart: d("2024-01-01"), PeriodEnd: d("2024-01-31"), PaidDate: d("2024-01-01")},
			wantStatus: payment.StatusPaid,
		},
		{
			name:       "paid after period start",
			np:         payment.NewPayment{StudentID: std.ID, Amount: decimal.NewFromInt(1200), PeriodStart: d("2024-02-01"), PeriodEnd: d("2024-02-29"), PaidDate: d("2024-02-05")},
			wantStatus: payment.StatusLate,
		},
		{
			name:       "paid in advance",
			np:         payment.NewPayment{StudentID: std.ID, Amount: decimal.RequireFromString("1200.50"), PeriodStart: d("2024-03-01"), PeriodEnd: d("2024-03-31"), PaidDate: d("2024-02-20")},
			wantStatus: payment.StatusPaid,
		},
		{
			name:    "unknown student",
			np:      payment.NewPayment{StudentID: "lol", Amount: decimal.NewFromInt(1200), PeriodStart: d("2024-01-01"), PeriodEnd: d("2024-01-31"), PaidDate: d("2024-01-01")},
			wantErr: student.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Record(ctx, tt.np)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.True(t, tt.np.Amount.Equal(got.Amount), "amount = %s, want %s", got.Amount, tt.np.Amount)
			assert.Equal(t, tt.np.PeriodEnd, got.PeriodEnd)
			assert.Equal(t, "Asha", got.StudentName)
		})
	}

	t.Run("negative amount", func(t *testing.T) {
		_, err := f.svc.Record(ctx, payment.NewPayment{StudentID: std.ID, Amount: decimal.NewFromInt(-1), PeriodStart: d("2024-01-01"), PeriodEnd: d("2024-01-31"), PaidDate: d("2024-01-01")})
		assert.True(t, core.IsValidation(err))
	})
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	std := testutil.CreateStudent(t, f.students, "Asha", d("2024-01-01"))
	pmt := testutil.CreatePayment(t, f.repo, std.ID, "1200", d("2024-01-01"), d("2024-01-31"), d("2024-01-01"))

	_, err := f.svc.Update(ctx, pmt.ID, payment.UpdatePayment{})
	assert.ErrorIs(t, err, payment.ErrNoUpdateFields)

	notes := "cash"
	amount := decimal.NewFromInt(1000)
	got, err := f.svc.Update(ctx, pmt.ID, payment.UpdatePayment{Amount: &amount, Notes: &notes})
	require.NoError(t, err)
	assert.True(t, amount.Equal(got.Amount))
	assert.Equal(t, "cash", got.Notes)
	assert.Equal(t, payment.StatusPaid, got.Status, "untouched")

	bad := payment.Status("refunded")
	_, err = f.svc.Update(ctx, pmt.ID, payment.UpdatePayment{Status: &bad})
	assert.True(t, core.IsValidation(err))

	_, err = f.svc.Update(ctx, "3c3c3c3c-0000-4000-8000-000000000000", payment.UpdatePayment{Notes: &notes})
	assert.ErrorIs(t, err, payment.ErrNotFound)
}

func TestService_CurrentStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	std := testutil.CreateStudent(t, f.students, "Asha", d("2024-01-01"))

	standing, err := f.svc.CurrentStatus(ctx, std.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, standing.Status)
	assert.Nil(t, standing.Payment)

	testutil.CreatePayment(t, f.repo, std.ID, "1200", d("2024-01-01"), d("2024-01-31"), d("2024-01-01"))

	tests := []struct {
		today         string
		wantStatus    payment.Status
		wantRemaining *int
		wantOverdue   *int
	}{
		{today: "2024-01-21", wantStatus: payment.StatusPaid, wantRemaining: intPtr(10)},
		{today: "2024-02-10", wantStatus: payment.StatusPending, wantOverdue: intPtr(10)},
		{today: "2024-02-20", wantStatus: payment.StatusLate, wantOverdue: intPtr(20)},
	}
	for _, tt := range tests {
		t.Run(tt.today, func(t *testing.T) {
			f.today = d(tt.today)
			got, err := f.svc.CurrentStatus(ctx, std.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantRemaining, got.DaysRemaining)
			assert.Equal(t, tt.wantOverdue, got.DaysOverdue)
			require.NotNil(t, got.Payment)
		})
	}

	_, err = f.svc.CurrentStatus(ctx, "lol")
	assert.ErrorIs(t, err, student.ErrNotFound)
}

func TestService_NextPeriod(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	std := testutil.CreateStudent(t, f.students, "Asha", d("2024-01-15"))

	period, err := f.svc.NextPeriod(ctx, std.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", period.Start.String())
	assert.Equal(t, "2024-02-14", period.End.String())

	testutil.CreatePayment(t, f.repo, std.ID, "1200", period.Start, period.End, d("2024-01-15"))
	period, err = f.svc.NextPeriod(ctx, std.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-15", period.Start.String())
	assert.Equal(t, "2024-03-14", period.End.String())
}

func TestService_Query(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	asha := testutil.CreateStudent(t, f.students, "Asha", d("2024-01-01"))
	ravi := testutil.CreateStudent(t, f.students, "Ravi", d("2024-01-01"))
	p1 := testutil.CreatePayment(t, f.repo, asha.ID, "1200", d("2024-01-01"), d("2024-01-31"), d("2024-01-01"))
	p2 := testutil.CreatePayment(t, f.repo, asha.ID, "1200", d("2024-02-01"), d("2024-02-29"), d("2024-02-03"))
	p3 := testutil.CreatePayment(t, f.repo, ravi.ID, "900", d("2024-01-10"), d("2024-02-09"), d("2024-01-10"))

	ids := func(payments []payment.Payment) []string {
		out := make([]string, 0, len(payments))
		for _, p := range payments {
			out = append(out, p.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter *payment.QueryFilter
		want   []string
	}{
		{name: "all, latest paid first", want: []string{p2.ID, p3.ID, p1.ID}},
		{name: "by student", filter: &payment.QueryFilter{StudentID: asha.ID}, want: []string{p2.ID, p1.ID}},
		{name: "by status", filter: &payment.QueryFilter{Status: payment.StatusLate}, want: []string{p2.ID}},
		{name: "paid date range", filter: &payment.QueryFilter{PaidFrom: d("2024-01-01"), PaidTo: d("2024-01-10")}, want: []string{p3.ID, p1.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Query(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func intPtr(i int) *int { return &i }
