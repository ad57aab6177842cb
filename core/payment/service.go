package payment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/student"
)

var (
	ErrNotFound       = core.NewNotFoundError("payment")
	ErrNoUpdateFields = core.NewValidationError(errors.New("No fields to update"))
)

type (
	Repository interface {
		CreatePayment(ctx context.Context, pmt Payment, exec ...core.DBExecutor) (Payment, error)
		GetPayment(ctx context.Context, id string, exec ...core.DBExecutor) (Payment, error)
		// QueryPayments returns payments (with student name) ordered by paid date, newest first.
		QueryPayments(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Payment, error)
		// GetLatestPayment returns the student's payment with the greatest period end, or ErrNotFound.
		GetLatestPayment(ctx context.Context, studentID string, exec ...core.DBExecutor) (Payment, error)
		UpdatePayment(ctx context.Context, id string, up UpdatePayment, updatedAt time.Time, exec ...core.DBExecutor) error
	}

	StudentGetter interface {
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error)
	}

	Service struct {
		db       core.DB
		repo     Repository
		students StudentGetter
		today    core.Clock
	}
)

func NewService(db core.DB, repo Repository, students StudentGetter, today core.Clock) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		students: students,
		today:    today,
	}
}

// Record stores a billing period payment; its status is derived from when it was paid.
func (svc *Service) Record(ctx context.Context, np NewPayment) (Payment, error) {
	if err := np.validatePeriod(); err != nil {
		return Payment{}, err
	}

	var pmt Payment
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.students.GetStudent(ctx, np.StudentID, tx); err != nil {
			return err
		}

		now := core.NowFunc().UTC()
		var err error
		pmt, err = svc.repo.CreatePayment(ctx, Payment{
			StudentID:   np.StudentID,
			Amount:      np.Amount,
			PeriodStart: np.PeriodStart,
			PeriodEnd:   np.PeriodEnd,
			PaidDate:    np.PaidDate,
			Status:      StatusAtRecording(np.PeriodStart, np.PaidDate),
			Notes:       np.Notes,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, tx)
		return err
	})
	return pmt, err
}

// Update applies a partial update to a payment.
func (svc *Service) Update(ctx context.Context, id string, up UpdatePayment) (Payment, error) {
	if up.IsEmpty() {
		return Payment{}, ErrNoUpdateFields
	}
	if up.Amount != nil && up.Amount.IsNegative() {
		return Payment{}, core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "must be 0 or greater"})
	}
	if up.Status != nil && !up.Status.IsValid() {
		return Payment{}, core.NewValidationError(nil, core.FieldError{Field: "status", Error: "invalid status"})
	}

	var pmt Payment
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetPayment(ctx, id, tx); err != nil {
			return err
		}
		if err := svc.repo.UpdatePayment(ctx, id, up, core.NowFunc().UTC(), tx); err != nil {
			return errors.Wrap(err, "updating payment")
		}
		var err error
		pmt, err = svc.repo.GetPayment(ctx, id, tx)
		return err
	})
	return pmt, err
}

func (svc *Service) Get(ctx context.Context, id string) (Payment, error) {
	return svc.repo.GetPayment(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, filter)
}

// CurrentStatus reports the student's standing as of today.
func (svc *Service) CurrentStatus(ctx context.Context, studentID string) (Standing, error) {
	if _, err := svc.students.GetStudent(ctx, studentID); err != nil {
		return Standing{}, err
	}
	latest, err := svc.latest(ctx, studentID)
	if err != nil {
		return Standing{}, err
	}
	return StandingOf(latest, svc.today()), nil
}

// NextPeriod proposes the next contiguous billing period for the student.
func (svc *Service) NextPeriod(ctx context.Context, studentID string) (Period, error) {
	std, err := svc.students.GetStudent(ctx, studentID)
	if err != nil {
		return Period{}, err
	}
	latest, err := svc.latest(ctx, studentID)
	if err != nil {
		return Period{}, err
	}
	return NextPeriod(latest, std.JoinDate), nil
}

func (svc *Service) latest(ctx context.Context, studentID string) (*Payment, error) {
	pmt, err := svc.repo.GetLatestPayment(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "getting latest payment")
	}
	return &pmt, nil
}
