package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/student"
)

const studentColumns = "id, name, phone, email, join_date, status, left_date, left_reason, created_at, updated_at"

var studentOrderings = map[string]string{
	"name":       "name",
	"join_date":  "join_date",
	"status":     "status",
	"created_at": "created_at",
}

type studentRow struct {
	ID         string      `db:"id"`
	Name       string      `db:"name"`
	Phone      string      `db:"phone"`
	Email      null.String `db:"email"`
	JoinDate   time.Time   `db:"join_date"`
	Status     string      `db:"status"`
	LeftDate   null.Time   `db:"left_date"`
	LeftReason null.String `db:"left_reason"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

type StudentRepository struct {
	baseRepository
}

var _ student.Repository = (*StudentRepository)(nil) // interface compliance check

func NewStudentRepository(db core.DBExecutor) *StudentRepository {
	return &StudentRepository{baseRepository{db: db}}
}

func (repo StudentRepository) toRow(std student.Student) studentRow {
	row := studentRow{
		ID:         std.ID,
		Name:       std.Name,
		Phone:      std.Phone,
		Email:      null.NewString(std.Email, std.Email != ""),
		JoinDate:   std.JoinDate.Time(),
		Status:     string(std.Status),
		LeftReason: null.NewString(std.LeftReason, std.LeftReason != ""),
		CreatedAt:  std.CreatedAt.UTC(),
		UpdatedAt:  std.UpdatedAt.UTC(),
	}
	if std.LeftDate != nil {
		row.LeftDate = null.TimeFrom(std.LeftDate.Time())
	}
	return row
}

func (repo StudentRepository) fromRow(row studentRow) student.Student {
	std := student.Student{
		ID:         row.ID,
		Name:       row.Name,
		Phone:      row.Phone,
		Email:      row.Email.String,
		JoinDate:   core.DateOf(row.JoinDate),
		Status:     student.Status(row.Status),
		LeftReason: row.LeftReason.String,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
	if row.LeftDate.Valid {
		std.LeftDate = core.DatePtr(core.DateOf(row.LeftDate.Time))
	}
	return std
}

// trapNoRowsErr maps sql "no rows" err to student.ErrNotFound
func (repo StudentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return student.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo StudentRepository) CreateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	std.ID = uuid.New().String()
	q := `INSERT INTO students (` + studentColumns + `)
		VALUES (:id, :name, :phone, :email, :join_date, :status, :left_date, :left_reason, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, repo.toRow(std)); err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return repo.GetStudent(ctx, std.ID, exec...)
}

func (repo StudentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}

	exe := repo.getExec(exec)
	var row studentRow
	q := exe.Rebind(`SELECT ` + studentColumns + ` FROM students WHERE id = ?`)
	if err := sqlx.GetContext(ctx, exe, &row, q, id); err != nil {
		return student.Student{}, repo.trapNoRowsErr(err, "getting student")
	}
	return repo.fromRow(row), nil
}

func (repo StudentRepository) QueryStudents(
	ctx context.Context,
	filter *student.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]student.Student, error) {
	var w where
	if filter != nil {
		// students with Name, Phone or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + strings.ToLower(filter.Search) + "%"
			w.add("(LOWER(name) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(COALESCE(email, '')) LIKE ?)", val, val, val)
		}
		if filter.Status != "" {
			w.add("status = ?", string(filter.Status))
		}
	}

	exe := repo.getExec(exec)
	q := `SELECT ` + studentColumns + ` FROM students` + w.String() + orderBy(ordering, studentOrderings, "created_at DESC")
	var rows []studentRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, repo.fromRow(row))
	}
	return students, nil
}

func (repo StudentRepository) UpdateStudent(ctx context.Context, id string, us student.UpdateStudent, exec ...core.DBExecutor) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}

	sets := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	if us.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *us.Name)
	}
	if us.Phone != nil {
		sets = append(sets, "phone = ?")
		args = append(args, *us.Phone)
	}
	if us.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, null.NewString(*us.Email, *us.Email != ""))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, core.NowFunc().UTC(), id)

	exe := repo.getExec(exec)
	q := exe.Rebind(`UPDATE students SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
	res, err := exe.ExecContext(ctx, q, args...)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if err = rowsAffected(res, student.ErrNotFound); err != nil {
		return student.Student{}, err
	}
	return repo.GetStudent(ctx, id, exec...)
}

func (repo StudentRepository) MarkLeft(ctx context.Context, id string, leftDate core.Date, reason string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind(`UPDATE students SET status = ?, left_date = ?, left_reason = ?, updated_at = ? WHERE id = ?`)
	res, err := exe.ExecContext(ctx, q, string(student.StatusLeft), leftDate.Time(), reason, core.NowFunc().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "marking student as left")
	}
	return rowsAffected(res, student.ErrNotFound)
}
