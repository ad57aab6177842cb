package student

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
)

const (
	DefaultLeftReason      = "Left voluntarily before cycle end"
	LeaveAllocationsReason = "Student left voluntarily"
)

var (
	ErrNotFound       = core.NewNotFoundError("student")
	ErrNoUpdateFields = core.NewValidationError(errors.New("No fields to update"))
	ErrAlreadyLeft    = core.NewConflictError("Student has already left")
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		UpdateStudent(ctx context.Context, id string, us UpdateStudent, exec ...core.DBExecutor) (Student, error)
		MarkLeft(ctx context.Context, id string, leftDate core.Date, reason string, exec ...core.DBExecutor) error
	}

	// AllocationCloser closes a student's active seat allocations (implemented by the seat ledger storage).
	AllocationCloser interface {
		CloseStudentAllocations(ctx context.Context, studentID string, endDate core.Date, reason string, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		db     core.DB
		repo   Repository
		closer AllocationCloser
		today  core.Clock
	}
)

func NewService(db core.DB, repo Repository, closer AllocationCloser, today core.Clock) *Service {
	return &Service{
		db:     db,
		repo:   repo,
		closer: closer,
		today:  today,
	}
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	now := core.NowFunc().UTC()
	return svc.repo.CreateStudent(ctx, Student{
		Name:      ns.Name,
		Phone:     ns.Phone,
		Email:     ns.Email,
		JoinDate:  ns.JoinDate,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	if us.IsEmpty() {
		return Student{}, ErrNoUpdateFields
	}
	return svc.repo.UpdateStudent(ctx, id, us)
}

// Leave ends a student's membership voluntarily and frees all their seats, atomically.
func (svc *Service) Leave(ctx context.Context, id, reason string) (Student, error) {
	reason = core.CleanString(reason)
	if reason == "" {
		reason = DefaultLeftReason
	}
	today := svc.today()

	var std Student
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		current, err := svc.repo.GetStudent(ctx, id, tx)
		if err != nil {
			return err
		}
		if !current.IsActive() {
			return ErrAlreadyLeft
		}
		if err = svc.repo.MarkLeft(ctx, id, today, reason, tx); err != nil {
			return errors.Wrap(err, "marking student as left")
		}
		if _, err = svc.closer.CloseStudentAllocations(ctx, id, today, LeaveAllocationsReason, tx); err != nil {
			return errors.Wrap(err, "closing allocations")
		}
		std, err = svc.repo.GetStudent(ctx, id, tx)
		return err
	})
	return std, err
}
