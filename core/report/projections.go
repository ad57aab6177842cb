// Package report holds the read models (dashboard, reports, pending lists).
// They are pure projections over the core entities, recomputed on every read and never stored.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/expiry"
	"github.com/trezcool/maktaba/core/override"
	"github.com/trezcool/maktaba/core/payment"
	"github.com/trezcool/maktaba/core/seat"
	"github.com/trezcool/maktaba/core/student"
)

// Snapshot is the state the projections are computed from.
type Snapshot struct {
	Today             core.Date
	Students          []student.Student
	Seats             []seat.Seat
	ActiveAllocations []seat.Allocation
	Payments          []payment.Payment
	Overrides         []override.Override // active as of Today
}

func (s Snapshot) latestPayments() map[string]*payment.Payment {
	byStudent := make(map[string][]payment.Payment)
	for _, p := range s.Payments {
		byStudent[p.StudentID] = append(byStudent[p.StudentID], p)
	}
	latest := make(map[string]*payment.Payment, len(byStudent))
	for id, payments := range byStudent {
		latest[id] = payment.Latest(payments)
	}
	return latest
}

func (s Snapshot) allocationsByStudent() map[string][]seat.Allocation {
	allocs := make(map[string][]seat.Allocation)
	for _, a := range s.ActiveAllocations {
		if a.IsActive {
			allocs[a.StudentID] = append(allocs[a.StudentID], a)
		}
	}
	return allocs
}

// Defaulter is one active allocation of a student whose payments do not cover today.
type Defaulter struct {
	StudentID       string         `json:"student_id"`
	StudentName     string         `json:"student_name"`
	StudentPhone    string         `json:"student_phone"`
	SeatNumber      int            `json:"seat_number"`
	Shift           seat.Shift     `json:"shift"`
	LastPaymentEnd  *core.Date     `json:"last_payment_end"`
	DaysOverdue     *int           `json:"days_overdue"`
	Status          payment.Status `json:"status"`
	ExtendedDueDate *core.Date     `json:"extended_due_date"`
	OverrideReason  string         `json:"override_reason"`
}

// Defaulters lists active, seated students whose latest period ended before today, or who never paid.
// Ordered by days overdue (most overdue first), never-paid students last.
func Defaulters(s Snapshot) []Defaulter {
	latest := s.latestPayments()
	allocs := s.allocationsByStudent()

	defaulters := make([]Defaulter, 0)
	for _, std := range s.Students {
		if !std.IsActive() {
			continue
		}
		last := latest[std.ID]
		if last != nil && !last.PeriodEnd.Before(s.Today) {
			continue
		}

		d := Defaulter{
			StudentID:    std.ID,
			StudentName:  std.Name,
			StudentPhone: std.Phone,
			Status:       payment.StatusPending,
		}
		if last != nil {
			overdue := s.Today.DaysSince(last.PeriodEnd)
			d.LastPaymentEnd = core.DatePtr(last.PeriodEnd)
			d.DaysOverdue = &overdue
			if overdue > payment.GracePeriodDays {
				d.Status = payment.StatusLate
			}
		}
		if ovr := override.ActiveFor(s.Overrides, std.ID, s.Today); ovr != nil {
			d.ExtendedDueDate = core.DatePtr(ovr.ExtendedDueDate)
			d.OverrideReason = ovr.Reason
		}

		for _, a := range allocs[std.ID] {
			row := d
			row.SeatNumber = a.SeatNumber
			row.Shift = a.Shift
			defaulters = append(defaulters, row)
		}
	}

	sort.SliceStable(defaulters, func(i, j int) bool {
		di, dj := defaulters[i].DaysOverdue, defaulters[j].DaysOverdue
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return *di > *dj
		}
	})
	return defaulters
}

type SeatBreakdown struct {
	Vacant      int `json:"vacant"`
	MorningOnly int `json:"morning_only"`
	EveningOnly int `json:"evening_only"`
	Full        int `json:"full_shift"`
	Dual        int `json:"dual_shift"`
}

func breakdownOf(board []seat.SeatView) SeatBreakdown {
	var b SeatBreakdown
	for _, v := range board {
		switch v.Status {
		case seat.OccupancyVacant:
			b.Vacant++
		case seat.OccupancyMorning:
			b.MorningOnly++
		case seat.OccupancyEvening:
			b.EveningOnly++
		case seat.OccupancyFull:
			b.Full++
		case seat.OccupancyDual:
			b.Dual++
		}
	}
	return b
}

type Stats struct {
	TotalStudents   int             `json:"total_students"`
	OccupiedSeats   int             `json:"occupied_seats"`
	TotalSeats      int             `json:"total_seats"`
	VacantSeats     int             `json:"vacant_seats"`
	PendingPayments int             `json:"pending_payments"`
	LatePayments    int             `json:"late_payments"`
	MonthlyRevenue  decimal.Decimal `json:"monthly_revenue"`
	SeatBreakdown   SeatBreakdown   `json:"seat_breakdown"`
}

// ComputeStats builds the dashboard figures.
// Pending: seated active students with no payment covering today. Late: seated active students
// whose latest period ended more than the grace period ago.
func ComputeStats(s Snapshot) Stats {
	latest := s.latestPayments()
	allocs := s.allocationsByStudent()

	stats := Stats{TotalSeats: len(s.Seats), MonthlyRevenue: decimal.Zero}

	for _, std := range s.Students {
		if !std.IsActive() {
			continue
		}
		stats.TotalStudents++
		if len(allocs[std.ID]) == 0 {
			continue
		}
		last := latest[std.ID]
		if last == nil || last.PeriodEnd.Before(s.Today) {
			stats.PendingPayments++
		}
		if last != nil && s.Today.DaysSince(last.PeriodEnd) > payment.GracePeriodDays {
			stats.LatePayments++
		}
	}

	occupied := make(map[string]struct{})
	for _, a := range s.ActiveAllocations {
		if a.IsActive {
			occupied[a.SeatID] = struct{}{}
		}
	}
	stats.OccupiedSeats = len(occupied)
	stats.VacantSeats = stats.TotalSeats - stats.OccupiedSeats

	for _, p := range s.Payments {
		if p.PaidDate.Year() == s.Today.Year() && p.PaidDate.Month() == s.Today.Month() {
			stats.MonthlyRevenue = stats.MonthlyRevenue.Add(p.Amount)
		}
	}

	stats.SeatBreakdown = breakdownOf(seat.BuildBoard(s.Seats, s.ActiveAllocations))
	return stats
}

const (
	ActivityPayment    = "payment"
	ActivityAllocation = "allocation"
)

type Activity struct {
	Type        string           `json:"type"`
	CreatedAt   time.Time        `json:"created_at"`
	StudentName string           `json:"student_name"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	SeatNumber  int              `json:"seat_number,omitempty"`
	Shift       seat.Shift       `json:"shift,omitempty"`
}

// RecentActivity merges payments & allocations, newest first, keeping at most `limit` entries.
func RecentActivity(payments []payment.Payment, allocations []seat.Allocation, limit int) []Activity {
	activity := make([]Activity, 0, len(payments)+len(allocations))
	for i := range payments {
		p := payments[i]
		activity = append(activity, Activity{
			Type:        ActivityPayment,
			CreatedAt:   p.CreatedAt,
			StudentName: p.StudentName,
			Amount:      &p.Amount,
		})
	}
	for _, a := range allocations {
		activity = append(activity, Activity{
			Type:        ActivityAllocation,
			CreatedAt:   a.CreatedAt,
			StudentName: a.StudentName,
			SeatNumber:  a.SeatNumber,
			Shift:       a.Shift,
		})
	}

	sort.SliceStable(activity, func(i, j int) bool { return activity[i].CreatedAt.After(activity[j].CreatedAt) })
	if limit > 0 && len(activity) > limit {
		activity = activity[:limit]
	}
	return activity
}

type DailyCollection struct {
	Date        core.Date         `json:"date"`
	Collections []payment.Payment `json:"collections"`
	Total       decimal.Decimal   `json:"total"`
	Count       int               `json:"count"`
}

// CollectionOn lists the payments received on `date`, newest first.
func CollectionOn(payments []payment.Payment, date core.Date) DailyCollection {
	dc := DailyCollection{Date: date, Collections: make([]payment.Payment, 0), Total: decimal.Zero}
	for _, p := range payments {
		if p.PaidDate.Equal(date) {
			dc.Collections = append(dc.Collections, p)
			dc.Total = dc.Total.Add(p.Amount)
		}
	}
	sort.SliceStable(dc.Collections, func(i, j int) bool {
		return dc.Collections[i].CreatedAt.After(dc.Collections[j].CreatedAt)
	})
	dc.Count = len(dc.Collections)
	return dc
}

type StatusTotal struct {
	Status payment.Status  `json:"status"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

type MonthlySummary struct {
	Month           int             `json:"month"`
	Year            int             `json:"year"`
	Received        decimal.Decimal `json:"received"`
	ActiveStudents  int             `json:"active_students"`
	StatusBreakdown []StatusTotal   `json:"status_breakdown"`
}

// SummarizeMonth totals the payments received during month/year, broken down by stored status.
func SummarizeMonth(payments []payment.Payment, students []student.Student, month time.Month, year int) MonthlySummary {
	ms := MonthlySummary{
		Month:           int(month),
		Year:            year,
		Received:        decimal.Zero,
		StatusBreakdown: make([]StatusTotal, 0),
	}

	idx := make(map[payment.Status]int)
	for _, p := range payments {
		if p.PaidDate.Year() != year || p.PaidDate.Month() != month {
			continue
		}
		ms.Received = ms.Received.Add(p.Amount)
		pos, ok := idx[p.Status]
		if !ok {
			pos = len(ms.StatusBreakdown)
			idx[p.Status] = pos
			ms.StatusBreakdown = append(ms.StatusBreakdown, StatusTotal{Status: p.Status, Total: decimal.Zero})
		}
		ms.StatusBreakdown[pos].Count++
		ms.StatusBreakdown[pos].Total = ms.StatusBreakdown[pos].Total.Add(p.Amount)
	}
	sort.Slice(ms.StatusBreakdown, func(i, j int) bool { return ms.StatusBreakdown[i].Status < ms.StatusBreakdown[j].Status })

	for _, std := range students {
		if std.IsActive() {
			ms.ActiveStudents++
		}
	}
	return ms
}

type SeatRow struct {
	SeatNumber     int            `json:"seat_number"`
	Status         seat.Occupancy `json:"status"`
	MorningStudent string         `json:"morning_student"`
	EveningStudent string         `json:"evening_student"`
}

type SeatOccupancy struct {
	TotalSeats int `json:"total_seats"`
	SeatBreakdown
	Seats []SeatRow `json:"seats"`
}

func OccupancyOf(board []seat.SeatView) SeatOccupancy {
	occ := SeatOccupancy{
		TotalSeats:    len(board),
		SeatBreakdown: breakdownOf(board),
		Seats:         make([]SeatRow, 0, len(board)),
	}
	for _, v := range board {
		row := SeatRow{SeatNumber: v.Number, Status: v.Status}
		if v.Morning != nil {
			row.MorningStudent = v.Morning.StudentName
		}
		if v.Evening != nil {
			row.EveningStudent = v.Evening.StudentName
		}
		occ.Seats = append(occ.Seats, row)
	}
	return occ
}

type StudentProfile struct {
	Student     student.Student     `json:"student"`
	Standing    payment.Standing    `json:"standing"`
	State       expiry.State        `json:"state"`
	Allocations []seat.Allocation   `json:"allocations"`
	Payments    []payment.Payment   `json:"payments"`
	Overrides   []override.Override `json:"overrides"`
}

// ProfileOf assembles a student's history. overrides may include inactive ones.
func ProfileOf(
	std student.Student,
	allocations []seat.Allocation,
	payments []payment.Payment,
	overrides []override.Override,
	today core.Date,
) StudentProfile {
	latest := payment.Latest(payments)
	state := expiry.Classify(latest, override.ActiveFor(overrides, std.ID, today), today)
	if !std.IsActive() {
		state = ""
	}
	return StudentProfile{
		Student:     std,
		Standing:    payment.StandingOf(latest, today),
		State:       state,
		Allocations: allocations,
		Payments:    payments,
		Overrides:   overrides,
	}
}
