package report

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/override"
	"github.com/trezcool/maktaba/core/payment"
	"github.com/trezcool/maktaba/core/seat"
	"github.com/trezcool/maktaba/core/student"
)

const DefaultActivityLimit = 10

var errInvalidMonth = core.NewValidationError(nil, core.FieldError{Field: "month", Error: "must be between 1 and 12"})

type (
	StudentQuerier interface {
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error)
		QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]student.Student, error)
	}

	SeatQuerier interface {
		QuerySeats(ctx context.Context, exec ...core.DBExecutor) ([]seat.Seat, error)
		QueryAllocations(ctx context.Context, filter *seat.AllocationFilter, exec ...core.DBExecutor) ([]seat.Allocation, error)
	}

	PaymentQuerier interface {
		QueryPayments(ctx context.Context, filter *payment.QueryFilter, exec ...core.DBExecutor) ([]payment.Payment, error)
	}

	OverrideQuerier interface {
		QueryOverrides(ctx context.Context, studentID string, activeOn *core.Date, exec ...core.DBExecutor) ([]override.Override, error)
	}

	Service struct {
		db        core.DB
		students  StudentQuerier
		seats     SeatQuerier
		payments  PaymentQuerier
		overrides OverrideQuerier
		today     core.Clock
	}
)

func NewService(
	db core.DB,
	students StudentQuerier,
	seats SeatQuerier,
	payments PaymentQuerier,
	overrides OverrideQuerier,
	today core.Clock,
) *Service {
	return &Service{
		db:        db,
		students:  students,
		seats:     seats,
		payments:  payments,
		overrides: overrides,
		today:     today,
	}
}

// snapshot loads everything the projections need within one transaction.
func (svc *Service) snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Today: svc.today()}
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if snap.Students, err = svc.students.QueryStudents(ctx, nil, nil, tx); err != nil {
			return errors.Wrap(err, "querying students")
		}
		if snap.Seats, err = svc.seats.QuerySeats(ctx, tx); err != nil {
			return errors.Wrap(err, "querying seats")
		}
		if snap.ActiveAllocations, err = svc.seats.QueryAllocations(ctx, &seat.AllocationFilter{ActiveOnly: true}, tx); err != nil {
			return errors.Wrap(err, "querying active allocations")
		}
		if snap.Payments, err = svc.payments.QueryPayments(ctx, nil, tx); err != nil {
			return errors.Wrap(err, "querying payments")
		}
		if snap.Overrides, err = svc.overrides.QueryOverrides(ctx, "", &snap.Today, tx); err != nil {
			return errors.Wrap(err, "querying overrides")
		}
		return nil
	})
	return snap, err
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	snap, err := svc.snapshot(ctx)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(snap), nil
}

// Pending lists the defaulters: seated students whose payments do not cover today.
func (svc *Service) Pending(ctx context.Context) ([]Defaulter, error) {
	snap, err := svc.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Defaulters(snap), nil
}

func (svc *Service) Activity(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	payments, err := svc.payments.QueryPayments(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	allocations, err := svc.seats.QueryAllocations(ctx, &seat.AllocationFilter{Limit: limit})
	if err != nil {
		return nil, errors.Wrap(err, "querying allocations")
	}
	return RecentActivity(payments, allocations, limit), nil
}

// DailyCollection lists the payments received on `date` (today when zero).
func (svc *Service) DailyCollection(ctx context.Context, date core.Date) (DailyCollection, error) {
	if date.IsZero() {
		date = svc.today()
	}
	payments, err := svc.payments.QueryPayments(ctx, &payment.QueryFilter{PaidFrom: date, PaidTo: date})
	if err != nil {
		return DailyCollection{}, errors.Wrap(err, "querying payments")
	}
	return CollectionOn(payments, date), nil
}

// MonthlySummary totals a month's payments (the current month when month or year is 0).
func (svc *Service) MonthlySummary(ctx context.Context, month, year int) (MonthlySummary, error) {
	today := svc.today()
	if month == 0 {
		month = int(today.Month())
	}
	if year == 0 {
		year = today.Year()
	}
	if month < 1 || month > 12 {
		return MonthlySummary{}, errInvalidMonth
	}

	first := core.NewDate(year, time.Month(month), 1)
	payments, err := svc.payments.QueryPayments(ctx, &payment.QueryFilter{PaidFrom: first, PaidTo: first.AddMonths(1).AddDays(-1)})
	if err != nil {
		return MonthlySummary{}, errors.Wrap(err, "querying payments")
	}
	students, err := svc.students.QueryStudents(ctx, &student.QueryFilter{Status: student.StatusActive}, nil)
	if err != nil {
		return MonthlySummary{}, errors.Wrap(err, "querying students")
	}
	return SummarizeMonth(payments, students, time.Month(month), year), nil
}

func (svc *Service) SeatOccupancy(ctx context.Context) (SeatOccupancy, error) {
	seats, err := svc.seats.QuerySeats(ctx)
	if err != nil {
		return SeatOccupancy{}, errors.Wrap(err, "querying seats")
	}
	active, err := svc.seats.QueryAllocations(ctx, &seat.AllocationFilter{ActiveOnly: true})
	if err != nil {
		return SeatOccupancy{}, errors.Wrap(err, "querying active allocations")
	}
	return OccupancyOf(seat.BuildBoard(seats, active)), nil
}

// StudentProfile returns a student with their whole allocation, payment and override history.
func (svc *Service) StudentProfile(ctx context.Context, id string) (StudentProfile, error) {
	var (
		std         student.Student
		allocations []seat.Allocation
		payments    []payment.Payment
		overrides   []override.Override
	)
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if std, err = svc.students.GetStudent(ctx, id, tx); err != nil {
			return err
		}
		if allocations, err = svc.seats.QueryAllocations(ctx, &seat.AllocationFilter{StudentID: id}, tx); err != nil {
			return errors.Wrap(err, "querying allocations")
		}
		if payments, err = svc.payments.QueryPayments(ctx, &payment.QueryFilter{StudentID: id}, tx); err != nil {
			return errors.Wrap(err, "querying payments")
		}
		if overrides, err = svc.overrides.QueryOverrides(ctx, id, nil, tx); err != nil {
			return errors.Wrap(err, "querying overrides")
		}
		return nil
	})
	if err != nil {
		return StudentProfile{}, err
	}
	return ProfileOf(std, allocations, payments, overrides, svc.today()), nil
}
