package seat

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/student"
)

const (
	DefaultCloseReason       = "Manually closed"
	DefaultShiftChangeReason = "Shift change"
	historyLimit             = 50
)

var (
	ErrNotFound           = core.NewNotFoundError("seat")
	ErrAllocationNotFound = core.NewNotFoundError("allocation")

	ErrSeatOccupied       = core.NewConflictError("Seat is already occupied for this shift")
	ErrStudentHasSeat     = core.NewConflictError("Student already has a seat for this shift")
	ErrDestinationTaken   = core.NewConflictError("New seat/shift is not available")
	ErrAlreadyClosed      = core.NewConflictError("Allocation is already closed")
	ErrStudentNotActive   = core.NewConflictError("Student is not active")
	ErrSeatsAlreadySeeded = core.NewConflictError("Seats already exist")

	errInvalidShift = core.NewValidationError(nil, core.FieldError{Field: "shift", Error: "shift must be one of [morning evening]"})
)

type (
	Repository interface {
		CreateSeats(ctx context.Context, seats []Seat, exec ...core.DBExecutor) error
		QuerySeats(ctx context.Context, exec ...core.DBExecutor) ([]Seat, error)
		GetSeat(ctx context.Context, id string, exec ...core.DBExecutor) (Seat, error)
		QueryAvailableSeats(ctx context.Context, shift Shift, exec ...core.DBExecutor) ([]Seat, error)

		// HasActiveAllocation checks whether an active allocation matches the filter (ActiveOnly is implied).
		HasActiveAllocation(ctx context.Context, filter AllocationFilter, exec ...core.DBExecutor) (bool, error)
		CreateAllocation(ctx context.Context, alloc Allocation, exec ...core.DBExecutor) (Allocation, error)
		GetAllocation(ctx context.Context, id string, exec ...core.DBExecutor) (Allocation, error)
		// QueryAllocations returns allocations (with student name & seat number), newest first.
		QueryAllocations(ctx context.Context, filter *AllocationFilter, exec ...core.DBExecutor) ([]Allocation, error)
		CloseAllocation(ctx context.Context, id string, endDate core.Date, reason string, exec ...core.DBExecutor) error
		CloseStudentAllocations(ctx context.Context, studentID string, endDate core.Date, reason string, exec ...core.DBExecutor) (int, error)
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

func (svc *Service) getActiveStudent(ctx context.Context, id string, tx core.DBExecutor) error {
	std, err := svc.students.GetStudent(ctx, id, tx)
	if err != nil {
		return err
	}
	if !std.IsActive() {
		return ErrStudentNotActive
	}
	return nil
}

// Allocate gives a seat to a student for one shift.
// Rejected when the (seat, shift) or the (student, shift) pair already has an active allocation.
func (svc *Service) Allocate(ctx context.Context, na NewAllocation) (Allocation, error) {
	var alloc Allocation
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.getActiveStudent(ctx, na.StudentID, tx); err != nil {
			return err
		}
		if _, err := svc.repo.GetSeat(ctx, na.SeatID, tx); err != nil {
			return err
		}

		taken, err := svc.repo.HasActiveAllocation(ctx, AllocationFilter{SeatID: na.SeatID, Shift: na.Shift}, tx)
		if err != nil {
			return errors.Wrap(err, "checking seat availability")
		}
		if taken {
			return ErrSeatOccupied
		}
		busy, err := svc.repo.HasActiveAllocation(ctx, AllocationFilter{StudentID: na.StudentID, Shift: na.Shift}, tx)
		if err != nil {
			return errors.Wrap(err, "checking student allocations")
		}
		if busy {
			return ErrStudentHasSeat
		}

		now := core.NowFunc().UTC()
		alloc, err = svc.repo.CreateAllocation(ctx, Allocation{
			SeatID:    na.SeatID,
			StudentID: na.StudentID,
			Shift:     na.Shift,
			StartDate: na.StartDate,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}, tx)
		return err
	})
	return alloc, err
}

// Close deactivates an allocation as of today.
func (svc *Service) Close(ctx context.Context, id, reason string) (Allocation, error) {
	reason = core.CleanString(reason)
	if reason == "" {
		reason = DefaultCloseReason
	}

	var alloc Allocation
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		current, err := svc.repo.GetAllocation(ctx, id, tx)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return ErrAlreadyClosed
		}
		if err = svc.repo.CloseAllocation(ctx, id, svc.today(), reason, tx); err != nil {
			return errors.Wrap(err, "closing allocation")
		}
		alloc, err = svc.repo.GetAllocation(ctx, id, tx)
		return err
	})
	return alloc, err
}

// ChangeShift moves a student to (newSeatID, newShift) starting today.
// Every active allocation of the student is closed, not only the one for newShift.
func (svc *Service) ChangeShift(ctx context.Context, sc ShiftChange) (Allocation, error) {
	reason := core.CleanString(sc.Reason)
	if reason == "" {
		reason = DefaultShiftChangeReason
	}
	today := svc.today()

	var alloc Allocation
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.getActiveStudent(ctx, sc.StudentID, tx); err != nil {
			return err
		}
		if _, err := svc.repo.GetSeat(ctx, sc.NewSeatID, tx); err != nil {
			return err
		}

		taken, err := svc.repo.HasActiveAllocation(ctx, AllocationFilter{SeatID: sc.NewSeatID, Shift: sc.NewShift}, tx)
		if err != nil {
			return errors.Wrap(err, "checking seat availability")
		}
		if taken {
			return ErrDestinationTaken
		}

		if _, err = svc.repo.CloseStudentAllocations(ctx, sc.StudentID, today, reason, tx); err != nil {
			return errors.Wrap(err, "closing current allocations")
		}

		now := core.NowFunc().UTC()
		alloc, err = svc.repo.CreateAllocation(ctx, Allocation{
			SeatID:    sc.NewSeatID,
			StudentID: sc.StudentID,
			Shift:     sc.NewShift,
			StartDate: today,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}, tx)
		return err
	})
	return alloc, err
}

// AvailableSeats lists the seats free for `shift`, ordered by seat number.
func (svc *Service) AvailableSeats(ctx context.Context, shift Shift) ([]Seat, error) {
	if !shift.IsValid() {
		return nil, errInvalidShift
	}
	return svc.repo.QueryAvailableSeats(ctx, shift)
}

// Board lists every seat with its occupants & derived status.
func (svc *Service) Board(ctx context.Context) ([]SeatView, error) {
	seats, err := svc.repo.QuerySeats(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying seats")
	}
	active, err := svc.repo.QueryAllocations(ctx, &AllocationFilter{ActiveOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "querying active allocations")
	}
	return BuildBoard(seats, active), nil
}

func (svc *Service) Detail(ctx context.Context, id string) (SeatDetail, error) {
	st, err := svc.repo.GetSeat(ctx, id)
	if err != nil {
		return SeatDetail{}, err
	}
	current, err := svc.repo.QueryAllocations(ctx, &AllocationFilter{SeatID: id, ActiveOnly: true})
	if err != nil {
		return SeatDetail{}, errors.Wrap(err, "querying current allocations")
	}
	history, err := svc.repo.QueryAllocations(ctx, &AllocationFilter{SeatID: id, Limit: historyLimit})
	if err != nil {
		return SeatDetail{}, errors.Wrap(err, "querying allocation history")
	}

	board := BuildBoard([]Seat{st}, current)
	return SeatDetail{
		Seat:    st,
		Status:  board[0].Status,
		Current: current,
		History: history,
	}, nil
}

// SeedSeats creates seats numbered 1..count in an empty library.
func (svc *Service) SeedSeats(ctx context.Context, count int) ([]Seat, error) {
	if count <= 0 {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "count", Error: "must be greater than 0"})
	}

	var seats []Seat
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		existing, err := svc.repo.QuerySeats(ctx, tx)
		if err != nil {
			return errors.Wrap(err, "querying seats")
		}
		if len(existing) > 0 {
			return ErrSeatsAlreadySeeded
		}

		now := core.NowFunc().UTC()
		seats = make([]Seat, 0, count)
		for n := 1; n <= count; n++ {
			seats = append(seats, Seat{Number: n, CreatedAt: now})
		}
		if err = svc.repo.CreateSeats(ctx, seats, tx); err != nil {
			return errors.Wrap(err, "creating seats")
		}
		seats, err = svc.repo.QuerySeats(ctx, tx)
		return err
	})
	return seats, err
}
