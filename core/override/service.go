package override

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/student"
)

var (
	ErrNotFound       = core.NewNotFoundError("override")
	errReasonRequired = core.NewValidationError(nil, core.FieldError{Field: "reason", Error: "this field is required"})
)

type (
	Repository interface {
		CreateOverride(ctx context.Context, ovr Override, exec ...core.DBExecutor) (Override, error)
		// QueryOverrides returns overrides (with student name & phone), newest first.
		// When activeOn is set, only overrides with an extended due date on or after it are returned.
		QueryOverrides(ctx context.Context, studentID string, activeOn *core.Date, exec ...core.DBExecutor) ([]Override, error)
		// DeleteOverride returns ErrNotFound when nothing was deleted.
		DeleteOverride(ctx context.Context, id string, exec ...core.DBExecutor) error
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

// Create records an extended due date for a student. The reason is mandatory.
func (svc *Service) Create(ctx context.Context, no NewOverride) (Override, error) {
	if core.CleanString(no.Reason) == "" {
		return Override{}, errReasonRequired
	}

	var ovr Override
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.students.GetStudent(ctx, no.StudentID, tx); err != nil {
			return err
		}
		var err error
		ovr, err = svc.repo.CreateOverride(ctx, Override{
			StudentID:       no.StudentID,
			Reason:          core.CleanString(no.Reason),
			OriginalDueDate: no.OriginalDueDate,
			ExtendedDueDate: no.ExtendedDueDate,
			CreatedAt:       core.NowFunc().UTC(),
		}, tx)
		return err
	})
	return ovr, err
}

// List returns overrides newest first, optionally only those still active today.
func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Override, error) {
	var activeOn *core.Date
	if filter.ActiveOnly {
		today := svc.today()
		activeOn = &today
	}
	overrides, err := svc.repo.QueryOverrides(ctx, core.CleanString(filter.StudentID), activeOn)
	if err != nil {
		return nil, errors.Wrap(err, "querying overrides")
	}
	return overrides, nil
}

// Delete removes an override for good.
func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteOverride(ctx, id)
}
