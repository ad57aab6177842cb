package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/expiry"
	"github.com/trezcool/maktaba/core/student"
)

// ExpiryRepository selects the students the expiration sweep removes.
type ExpiryRepository struct {
	baseRepository
}

var _ expiry.Repository = (*ExpiryRepository)(nil) // interface compliance check

func NewExpiryRepository(db core.DBExecutor) *ExpiryRepository {
	return &ExpiryRepository{baseRepository{db: db}}
}

type candidateRow struct {
	StudentID   string    `db:"student_id"`
	StudentName string    `db:"student_name"`
	PaymentID   string    `db:"payment_id"`
	PeriodEnd   time.Time `db:"period_end"`
}

func (repo ExpiryRepository) QueryExpirationCandidates(
	ctx context.Context,
	cutoff, today core.Date,
	exec ...core.DBExecutor,
) ([]expiry.Candidate, error) {
	q := `SELECT st.id AS student_id, st.name AS student_name, p.id AS payment_id, p.period_end
		FROM students st
		JOIN payments p ON p.student_id = st.id
		WHERE st.status = ?
			AND EXISTS (SELECT 1 FROM seat_allocations a WHERE a.student_id = st.id AND a.is_active = TRUE)
			AND p.period_end = (SELECT MAX(p2.period_end) FROM payments p2 WHERE p2.student_id = st.id)
			AND p.period_end < ?
			AND NOT EXISTS (
				SELECT 1 FROM admin_overrides o WHERE o.student_id = st.id AND o.extended_due_date >= ?
			)
		ORDER BY st.name, st.id, p.created_at DESC`

	exe := repo.getExec(exec)
	var rows []candidateRow
	err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), string(student.StatusActive), cutoff.Time(), today.Time())
	if err != nil {
		return nil, errors.Wrap(err, "querying expiration candidates")
	}

	// several payments may share the latest period end: keep the most recent one
	candidates := make([]expiry.Candidate, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.StudentID]; ok {
			continue
		}
		seen[row.StudentID] = struct{}{}
		candidates = append(candidates, expiry.Candidate{
			StudentID:   row.StudentID,
			StudentName: row.StudentName,
			PaymentID:   row.PaymentID,
			PeriodEnd:   core.DateOf(row.PeriodEnd),
		})
	}
	return candidates, nil
}
