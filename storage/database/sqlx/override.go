package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/override"
)

const overrideSelect = `SELECT o.id, o.student_id, o.reason, o.original_due_date, o.extended_due_date, o.created_at,
	st.name AS student_name, st.phone AS student_phone
	FROM admin_overrides o
	JOIN students st ON st.id = o.student_id`

type overrideRow struct {
	ID              string    `db:"id"`
	StudentID       string    `db:"student_id"`
	Reason          string    `db:"reason"`
	OriginalDueDate time.Time `db:"original_due_date"`
	ExtendedDueDate time.Time `db:"extended_due_date"`
	CreatedAt       time.Time `db:"created_at"`
	StudentName     string    `db:"student_name"`
	StudentPhone    string    `db:"student_phone"`
}

type OverrideRepository struct {
	baseRepository
}

var _ override.Repository = (*OverrideRepository)(nil) // interface compliance check

func NewOverrideRepository(db core.DBExecutor) *OverrideRepository {
	return &OverrideRepository{baseRepository{db: db}}
}

func (repo OverrideRepository) fromRow(row overrideRow) override.Override {
	return override.Override{
		ID:              row.ID,
		StudentID:       row.StudentID,
		Reason:          row.Reason,
		OriginalDueDate: core.DateOf(row.OriginalDueDate),
		ExtendedDueDate: core.DateOf(row.ExtendedDueDate),
		CreatedAt:       row.CreatedAt.UTC(),
		StudentName:     row.StudentName,
		StudentPhone:    row.StudentPhone,
	}
}

func (repo OverrideRepository) CreateOverride(ctx context.Context, ovr override.Override, exec ...core.DBExecutor) (override.Override, error) {
	row := overrideRow{
		ID:              uuid.New().String(),
		StudentID:       ovr.StudentID,
		Reason:          ovr.Reason,
		OriginalDueDate: ovr.OriginalDueDate.Time(),
		ExtendedDueDate: ovr.ExtendedDueDate.Time(),
		CreatedAt:       ovr.CreatedAt.UTC(),
	}
	q := `INSERT INTO admin_overrides (id, student_id, reason, original_due_date, extended_due_date, created_at)
		VALUES (:id, :student_id, :reason, :original_due_date, :extended_due_date, :created_at)`

	exe := repo.getExec(exec)
	if _, err := sqlx.NamedExecContext(ctx, exe, q, row); err != nil {
		return override.Override{}, errors.Wrap(err, "inserting override")
	}
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(overrideSelect+` WHERE o.id = ?`), row.ID); err != nil {
		return override.Override{}, errors.Wrap(err, "getting override")
	}
	return repo.fromRow(row), nil
}

func (repo OverrideRepository) QueryOverrides(
	ctx context.Context,
	studentID string,
	activeOn *core.Date,
	exec ...core.DBExecutor,
) ([]override.Override, error) {
	var w where
	if studentID != "" {
		w.add("o.student_id = ?", studentID)
	}
	if activeOn != nil {
		w.add("o.extended_due_date >= ?", activeOn.Time())
	}

	exe := repo.getExec(exec)
	q := overrideSelect + w.String() + ` ORDER BY o.created_at DESC`
	var rows []overrideRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying overrides")
	}

	overrides := make([]override.Override, 0, len(rows))
	for _, row := range rows {
		overrides = append(overrides, repo.fromRow(row))
	}
	return overrides, nil
}

func (repo OverrideRepository) DeleteOverride(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := uuid.Parse(id); err != nil {
		return override.ErrNotFound
	}

	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind(`DELETE FROM admin_overrides WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "deleting override")
	}
	return rowsAffected(res, override.ErrNotFound)
}
