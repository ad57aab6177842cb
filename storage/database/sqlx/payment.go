package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/expiry"
	"github.com/trezcool/maktaba/core/payment"
)

const paymentSelect = `SELECT p.id, p.student_id, p.amount, p.period_start, p.period_end, p.paid_date, p.status,
	p.notes, p.created_at, p.updated_at, st.name AS student_name
	FROM payments p
	JOIN students st ON st.id = p.student_id`

type paymentRow struct {
	ID          string          `db:"id"`
	StudentID   string          `db:"student_id"`
	Amount      decimal.Decimal `db:"amount"`
	PeriodStart time.Time       `db:"period_start"`
	PeriodEnd   time.Time       `db:"period_end"`
	PaidDate    time.Time       `db:"paid_date"`
	Status      string          `db:"status"`
	Notes       null.String     `db:"notes"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
	StudentName string          `db:"student_name"`
}

type PaymentRepository struct {
	baseRepository
}

var (
	_ payment.Repository    = (*PaymentRepository)(nil) // interface compliance check
	_ expiry.PaymentUpdater = (*PaymentRepository)(nil)
)

func NewPaymentRepository(db core.DBExecutor) *PaymentRepository {
	return &PaymentRepository{baseRepository{db: db}}
}

func (repo PaymentRepository) toRow(pmt payment.Payment) paymentRow {
	return paymentRow{
		ID:          pmt.ID,
		StudentID:   pmt.StudentID,
		Amount:      pmt.Amount,
		PeriodStart: pmt.PeriodStart.Time(),
		PeriodEnd:   pmt.PeriodEnd.Time(),
		PaidDate:    pmt.PaidDate.Time(),
		Status:      string(pmt.Status),
		Notes:       null.NewString(pmt.Notes, pmt.Notes != ""),
		CreatedAt:   pmt.CreatedAt.UTC(),
		UpdatedAt:   pmt.UpdatedAt.UTC(),
	}
}

func (repo PaymentRepository) fromRow(row paymentRow) payment.Payment {
	return payment.Payment{
		ID:          row.ID,
		StudentID:   row.StudentID,
		Amount:      row.Amount,
		PeriodStart: core.DateOf(row.PeriodStart),
		PeriodEnd:   core.DateOf(row.PeriodEnd),
		PaidDate:    core.DateOf(row.PaidDate),
		Status:      payment.Status(row.Status),
		Notes:       row.Notes.String,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
		StudentName: row.StudentName,
	}
}

// trapNoRowsErr maps sql "no rows" err to payment.ErrNotFound
func (repo PaymentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return payment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo PaymentRepository) CreatePayment(ctx context.Context, pmt payment.Payment, exec ...core.DBExecutor) (payment.Payment, error) {
	pmt.ID = uuid.New().String()
	q := `INSERT INTO payments
		(id, student_id, amount, period_start, period_end, paid_date, status, notes, created_at, updated_at)
		VALUES (:id, :student_id, :amount, :period_start, :period_end, :paid_date, :status, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, repo.toRow(pmt)); err != nil {
		return payment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return repo.GetPayment(ctx, pmt.ID, exec...)
}

func (repo PaymentRepository) getOne(ctx context.Context, exe core.DBExecutor, q string, args ...interface{}) (payment.Payment, error) {
	var row paymentRow
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(q), args...); err != nil {
		return payment.Payment{}, repo.trapNoRowsErr(err, "getting payment")
	}
	return repo.fromRow(row), nil
}

func (repo PaymentRepository) GetPayment(ctx context.Context, id string, exec ...core.DBExecutor) (payment.Payment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return payment.Payment{}, payment.ErrNotFound
	}
	return repo.getOne(ctx, repo.getExec(exec), paymentSelect+` WHERE p.id = ?`, id)
}

func (repo PaymentRepository) GetLatestPayment(ctx context.Context, studentID string, exec ...core.DBExecutor) (payment.Payment, error) {
	q := paymentSelect + ` WHERE p.student_id = ? ORDER BY p.period_end DESC, p.created_at DESC LIMIT 1`
	return repo.getOne(ctx, repo.getExec(exec), q, studentID)
}

func (repo PaymentRepository) QueryPayments(ctx context.Context, filter *payment.QueryFilter, exec ...core.DBExecutor) ([]payment.Payment, error) {
	var w where
	if filter != nil {
		if filter.StudentID != "" {
			w.add("p.student_id = ?", filter.StudentID)
		}
		if filter.Status != "" {
			w.add("p.status = ?", string(filter.Status))
		}
		if !filter.PaidFrom.IsZero() {
			w.add("p.paid_date >= ?", filter.PaidFrom.Time())
		}
		if !filter.PaidTo.IsZero() {
			w.add("p.paid_date <= ?", filter.PaidTo.Time())
		}
	}

	exe := repo.getExec(exec)
	q := paymentSelect + w.String() + ` ORDER BY p.paid_date DESC, p.created_at DESC`
	var rows []paymentRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}

	payments := make([]payment.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, repo.fromRow(row))
	}
	return payments, nil
}

func (repo PaymentRepository) UpdatePayment(
	ctx context.Context,
	id string,
	up payment.UpdatePayment,
	updatedAt time.Time,
	exec ...core.DBExecutor,
) error {
	sets := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	if up.Amount != nil {
		sets = append(sets, "amount = ?")
		args = append(args, *up.Amount)
	}
	if up.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*up.Status))
	}
	if up.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, null.NewString(*up.Notes, *up.Notes != ""))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, updatedAt.UTC(), id)

	exe := repo.getExec(exec)
	q := exe.Rebind(`UPDATE payments SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
	res, err := exe.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, "updating payment")
	}
	return rowsAffected(res, payment.ErrNotFound)
}
