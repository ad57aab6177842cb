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
	"github.com/trezcool/maktaba/core/seat"
	"github.com/trezcool/maktaba/core/student"
)

const (
	seatColumns = "id, seat_number, created_at"

	allocationSelect = `SELECT a.id, a.seat_id, a.student_id, a.shift, a.start_date, a.end_date, a.is_active,
		a.closed_reason, a.created_at, a.updated_at, st.name AS student_name, s.seat_number
		FROM seat_allocations a
		JOIN students st ON st.id = a.student_id
		JOIN seats s ON s.id = a.seat_id`
)

type (
	seatRow struct {
		ID        string    `db:"id"`
		Number    int       `db:"seat_number"`
		CreatedAt time.Time `db:"created_at"`
	}

	allocationRow struct {
		ID           string      `db:"id"`
		SeatID       string      `db:"seat_id"`
		StudentID    string      `db:"student_id"`
		Shift        string      `db:"shift"`
		StartDate    time.Time   `db:"start_date"`
		EndDate      null.Time   `db:"end_date"`
		IsActive     bool        `db:"is_active"`
		ClosedReason null.String `db:"closed_reason"`
		CreatedAt    time.Time   `db:"created_at"`
		UpdatedAt    time.Time   `db:"updated_at"`
		StudentName  string      `db:"student_name"`
		SeatNumber   int         `db:"seat_number"`
	}
)

// SeatRepository stores seats & the allocation ledger.
type SeatRepository struct {
	baseRepository
}

var (
	_ seat.Repository          = (*SeatRepository)(nil) // interface compliance check
	_ student.AllocationCloser = (*SeatRepository)(nil)
)

func NewSeatRepository(db core.DBExecutor) *SeatRepository {
	return &SeatRepository{baseRepository{db: db}}
}

func (repo SeatRepository) seatFromRow(row seatRow) seat.Seat {
	return seat.Seat{ID: row.ID, Number: row.Number, CreatedAt: row.CreatedAt.UTC()}
}

func (repo SeatRepository) allocationToRow(alloc seat.Allocation) allocationRow {
	row := allocationRow{
		ID:           alloc.ID,
		SeatID:       alloc.SeatID,
		StudentID:    alloc.StudentID,
		Shift:        string(alloc.Shift),
		StartDate:    alloc.StartDate.Time(),
		IsActive:     alloc.IsActive,
		ClosedReason: null.NewString(alloc.ClosedReason, alloc.ClosedReason != ""),
		CreatedAt:    alloc.CreatedAt.UTC(),
		UpdatedAt:    alloc.UpdatedAt.UTC(),
	}
	if alloc.EndDate != nil {
		row.EndDate = null.TimeFrom(alloc.EndDate.Time())
	}
	return row
}

func (repo SeatRepository) allocationFromRow(row allocationRow) seat.Allocation {
	alloc := seat.Allocation{
		ID:           row.ID,
		SeatID:       row.SeatID,
		StudentID:    row.StudentID,
		Shift:        seat.Shift(row.Shift),
		StartDate:    core.DateOf(row.StartDate),
		IsActive:     row.IsActive,
		ClosedReason: row.ClosedReason.String,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		StudentName:  row.StudentName,
		SeatNumber:   row.SeatNumber,
	}
	if row.EndDate.Valid {
		alloc.EndDate = core.DatePtr(core.DateOf(row.EndDate.Time))
	}
	return alloc
}

// trapNoRowsErr maps sql "no rows" err to `notFound`
func (repo SeatRepository) trapNoRowsErr(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo SeatRepository) CreateSeats(ctx context.Context, seats []seat.Seat, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := `INSERT INTO seats (` + seatColumns + `) VALUES (:id, :seat_number, :created_at)`
	for _, st := range seats {
		row := seatRow{ID: uuid.New().String(), Number: st.Number, CreatedAt: st.CreatedAt.UTC()}
		if _, err := sqlx.NamedExecContext(ctx, exe, q, row); err != nil {
			if _, ok := uniqueViolation(err); ok {
				return seat.ErrSeatsAlreadySeeded
			}
			return errors.Wrapf(err, "inserting seat %d", st.Number)
		}
	}
	return nil
}

func (repo SeatRepository) selectSeats(ctx context.Context, exe core.DBExecutor, q string, args ...interface{}) ([]seat.Seat, error) {
	var rows []seatRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return nil, err
	}
	seats := make([]seat.Seat, 0, len(rows))
	for _, row := range rows {
		seats = append(seats, repo.seatFromRow(row))
	}
	return seats, nil
}

func (repo SeatRepository) QuerySeats(ctx context.Context, exec ...core.DBExecutor) ([]seat.Seat, error) {
	seats, err := repo.selectSeats(ctx, repo.getExec(exec), `SELECT `+seatColumns+` FROM seats ORDER BY seat_number`)
	return seats, errors.Wrap(err, "querying seats")
}

func (repo SeatRepository) GetSeat(ctx context.Context, id string, exec ...core.DBExecutor) (seat.Seat, error) {
	if _, err := uuid.Parse(id); err != nil {
		return seat.Seat{}, seat.ErrNotFound
	}

	exe := repo.getExec(exec)
	var row seatRow
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(`SELECT `+seatColumns+` FROM seats WHERE id = ?`), id); err != nil {
		return seat.Seat{}, repo.trapNoRowsErr(err, seat.ErrNotFound, "getting seat")
	}
	return repo.seatFromRow(row), nil
}

func (repo SeatRepository) QueryAvailableSeats(ctx context.Context, shift seat.Shift, exec ...core.DBExecutor) ([]seat.Seat, error) {
	q := `SELECT s.id, s.seat_number, s.created_at FROM seats s
		WHERE NOT EXISTS (
			SELECT 1 FROM seat_allocations a WHERE a.seat_id = s.id AND a.shift = ? AND a.is_active = TRUE
		)
		ORDER BY s.seat_number`
	seats, err := repo.selectSeats(ctx, repo.getExec(exec), q, string(shift))
	return seats, errors.Wrap(err, "querying available seats")
}

func (repo SeatRepository) allocationWhere(filter *seat.AllocationFilter) where {
	var w where
	if filter == nil {
		return w
	}
	if filter.SeatID != "" {
		w.add("a.seat_id = ?", filter.SeatID)
	}
	if filter.StudentID != "" {
		w.add("a.student_id = ?", filter.StudentID)
	}
	if filter.Shift != "" {
		w.add("a.shift = ?", string(filter.Shift))
	}
	if filter.ActiveOnly {
		w.add("a.is_active = TRUE")
	}
	return w
}

func (repo SeatRepository) HasActiveAllocation(ctx context.Context, filter seat.AllocationFilter, exec ...core.DBExecutor) (bool, error) {
	filter.ActiveOnly = true
	w := repo.allocationWhere(&filter)

	exe := repo.getExec(exec)
	var count int
	q := exe.Rebind(`SELECT COUNT(*) FROM seat_allocations a` + w.String())
	if err := sqlx.GetContext(ctx, exe, &count, q, w.args...); err != nil {
		return false, errors.Wrap(err, "counting active allocations")
	}
	return count > 0, nil
}

func (repo SeatRepository) CreateAllocation(ctx context.Context, alloc seat.Allocation, exec ...core.DBExecutor) (seat.Allocation, error) {
	alloc.ID = uuid.New().String()
	q := `INSERT INTO seat_allocations
		(id, seat_id, student_id, shift, start_date, end_date, is_active, closed_reason, created_at, updated_at)
		VALUES (:id, :seat_id, :student_id, :shift, :start_date, :end_date, :is_active, :closed_reason, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, repo.allocationToRow(alloc)); err != nil {
		// the partial unique indexes guard the ledger against concurrent writers
		if hint, ok := uniqueViolation(err); ok {
			if strings.Contains(hint, "student") {
				return seat.Allocation{}, seat.ErrStudentHasSeat
			}
			return seat.Allocation{}, seat.ErrSeatOccupied
		}
		return seat.Allocation{}, errors.Wrap(err, "inserting allocation")
	}
	return repo.GetAllocation(ctx, alloc.ID, exec...)
}

func (repo SeatRepository) GetAllocation(ctx context.Context, id string, exec ...core.DBExecutor) (seat.Allocation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return seat.Allocation{}, seat.ErrAllocationNotFound
	}

	exe := repo.getExec(exec)
	var row allocationRow
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(allocationSelect+` WHERE a.id = ?`), id); err != nil {
		return seat.Allocation{}, repo.trapNoRowsErr(err, seat.ErrAllocationNotFound, "getting allocation")
	}
	return repo.allocationFromRow(row), nil
}

func (repo SeatRepository) QueryAllocations(ctx context.Context, filter *seat.AllocationFilter, exec ...core.DBExecutor) ([]seat.Allocation, error) {
	w := repo.allocationWhere(filter)
	q := allocationSelect + w.String() + ` ORDER BY a.created_at DESC, a.id`
	if filter != nil && filter.Limit > 0 {
		q += ` LIMIT ?`
		w.args = append(w.args, filter.Limit)
	}

	exe := repo.getExec(exec)
	var rows []allocationRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying allocations")
	}

	allocations := make([]seat.Allocation, 0, len(rows))
	for _, row := range rows {
		allocations = append(allocations, repo.allocationFromRow(row))
	}
	return allocations, nil
}

func (repo SeatRepository) CloseAllocation(ctx context.Context, id string, endDate core.Date, reason string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind(`UPDATE seat_allocations SET is_active = FALSE, end_date = ?, closed_reason = ?, updated_at = ?
		WHERE id = ? AND is_active = TRUE`)
	res, err := exe.ExecContext(ctx, q, endDate.Time(), reason, core.NowFunc().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "closing allocation")
	}
	return rowsAffected(res, seat.ErrAlreadyClosed)
}

// CloseStudentAllocations closes every active allocation of the student and returns how many were closed.
func (repo SeatRepository) CloseStudentAllocations(
	ctx context.Context,
	studentID string,
	endDate core.Date,
	reason string,
	exec ...core.DBExecutor,
) (int, error) {
	exe := repo.getExec(exec)
	q := exe.Rebind(`UPDATE seat_allocations SET is_active = FALSE, end_date = ?, closed_reason = ?, updated_at = ?
		WHERE student_id = ? AND is_active = TRUE`)
	res, err := exe.ExecContext(ctx, q, endDate.Time(), reason, core.NowFunc().UTC(), studentID)
	if err != nil {
		return 0, errors.Wrap(err, "closing student allocations")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "getting affected rows")
	}
	return int(n), nil
}
