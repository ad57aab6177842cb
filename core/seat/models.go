package seat

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/maktaba/core"
)

type Shift string

const (
	ShiftMorning Shift = "morning"
	ShiftEvening Shift = "evening"
)

var Shifts = []Shift{ShiftMorning, ShiftEvening}

func (s Shift) IsValid() bool {
	return s == ShiftMorning || s == ShiftEvening
}

// Occupancy is the derived status of a seat, computed from its active allocations.
type Occupancy string

const (
	OccupancyVacant  Occupancy = "vacant"
	OccupancyMorning Occupancy = "morning"
	OccupancyEvening Occupancy = "evening"
	OccupancyFull    Occupancy = "full" // same student holds both shifts
	OccupancyDual    Occupancy = "dual" // two different students
)

type Seat struct {
	ID        string    `json:"id"`
	Number    int       `json:"seat_number"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type Allocation struct {
	ID           string     `json:"id"`
	SeatID       string     `json:"seat_id"`
	StudentID    string     `json:"student_id"`
	Shift        Shift      `json:"shift"`
	StartDate    core.Date  `json:"start_date"`
	EndDate      *core.Date `json:"end_date"`
	IsActive     bool       `json:"is_active"`
	ClosedReason string     `json:"closed_reason"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at"` // UTC

	// joined
	StudentName string `json:"student_name"`
	SeatNumber  int    `json:"seat_number"`
}

// OccupancyOf derives a seat's status from its active morning & evening allocations (nil when free).
func OccupancyOf(morning, evening *Allocation) Occupancy {
	switch {
	case morning == nil && evening == nil:
		return OccupancyVacant
	case evening == nil:
		return OccupancyMorning
	case morning == nil:
		return OccupancyEvening
	case morning.StudentID == evening.StudentID:
		return OccupancyFull
	default:
		return OccupancyDual
	}
}

// SeatView is a seat with its current occupants.
type SeatView struct {
	Seat
	Status  Occupancy   `json:"status"`
	Morning *Allocation `json:"morning"`
	Evening *Allocation `json:"evening"`
}

// BuildBoard projects seats and their active allocations into views ordered by seat number.
// Inactive allocations are ignored.
func BuildBoard(seats []Seat, active []Allocation) []SeatView {
	views := make([]SeatView, 0, len(seats))
	idx := make(map[string]int, len(seats))
	for _, st := range seats {
		idx[st.ID] = len(views)
		views = append(views, SeatView{Seat: st})
	}

	for i := range active {
		alloc := active[i]
		pos, ok := idx[alloc.SeatID]
		if !ok || !alloc.IsActive {
			continue
		}
		switch alloc.Shift {
		case ShiftMorning:
			views[pos].Morning = &alloc
		case ShiftEvening:
			views[pos].Evening = &alloc
		}
	}

	for i := range views {
		views[i].Status = OccupancyOf(views[i].Morning, views[i].Evening)
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].Number < views[j].Number })
	return views
}

type SeatDetail struct {
	Seat    Seat         `json:"seat"`
	Status  Occupancy    `json:"status"`
	Current []Allocation `json:"current_allocations"`
	History []Allocation `json:"history"`
}

type NewAllocation struct {
	StudentID string    `json:"student_id" validate:"required"`
	SeatID    string    `json:"seat_id" validate:"required"`
	Shift     Shift     `json:"shift" validate:"required,oneof=morning evening"`
	StartDate core.Date `json:"start_date" validate:"required"`
}

func (na *NewAllocation) Validate(validate *validator.Validate) error {
	na.StudentID = core.CleanString(na.StudentID)
	na.SeatID = core.CleanString(na.SeatID)
	na.Shift = Shift(core.CleanString(string(na.Shift), true /* lower */))
	return validate.Struct(na)
}

type ShiftChange struct {
	StudentID string `json:"student_id" validate:"required"`
	NewSeatID string `json:"new_seat_id" validate:"required"`
	NewShift  Shift  `json:"new_shift" validate:"required,oneof=morning evening"`
	Reason    string `json:"reason" validate:"max=1000"`
}

func (sc *ShiftChange) Validate(validate *validator.Validate) error {
	sc.StudentID = core.CleanString(sc.StudentID)
	sc.NewSeatID = core.CleanString(sc.NewSeatID)
	sc.NewShift = Shift(core.CleanString(string(sc.NewShift), true /* lower */))
	sc.Reason = core.CleanString(sc.Reason)
	return validate.Struct(sc)
}

type CloseRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// AllocationFilter applies AND on its non-zero fields.
type AllocationFilter struct {
	SeatID     string
	StudentID  string
	Shift      Shift
	ActiveOnly bool
	Limit      int
}
