package payment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/maktaba/core"
)

// GracePeriodDays is how long a student may stay overdue before the expiration sweep removes them.
const GracePeriodDays = 15

type Status string

// Stored statuses. Paid/late reflect payment timing at record time; left is set by the expiration sweep.
const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
	StatusLate    Status = "late"
	StatusLeft    Status = "left"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPaid, StatusPending, StatusLate, StatusLeft:
		return true
	}
	return false
}

type Payment struct {
	ID          string          `json:"id"`
	StudentID   string          `json:"student_id"`
	Amount      decimal.Decimal `json:"amount"`
	PeriodStart core.Date       `json:"period_start"`
	PeriodEnd   core.Date       `json:"period_end"`
	PaidDate    core.Date       `json:"paid_date"`
	Status      Status          `json:"status"`
	Notes       string          `json:"notes"`
	CreatedAt   time.Time       `json:"created_at"` // UTC
	UpdatedAt   time.Time       `json:"updated_at"` // UTC

	// joined
	StudentName string `json:"student_name"`
}

// StatusAtRecording is paid when the payment arrives on or before the period start, late otherwise.
func StatusAtRecording(periodStart, paidDate core.Date) Status {
	if paidDate.After(periodStart) {
		return StatusLate
	}
	return StatusPaid
}

// Standing is a student's payment standing relative to today (not the stored status).
type Standing struct {
	Status        Status   `json:"status"`
	DaysRemaining *int     `json:"days_remaining,omitempty"`
	DaysOverdue   *int     `json:"days_overdue,omitempty"`
	Payment       *Payment `json:"payment,omitempty"`
}

// StandingOf computes the standing from the latest payment (by period end), nil when the student never paid.
func StandingOf(latest *Payment, today core.Date) Standing {
	if latest == nil {
		return Standing{Status: StatusPending}
	}

	remaining := latest.PeriodEnd.DaysSince(today)
	if remaining >= 0 {
		return Standing{Status: StatusPaid, DaysRemaining: &remaining, Payment: latest}
	}
	overdue := -remaining
	if overdue <= GracePeriodDays {
		return Standing{Status: StatusPending, DaysOverdue: &overdue, Payment: latest}
	}
	return Standing{Status: StatusLate, DaysOverdue: &overdue, Payment: latest}
}

// Latest returns the payment with the greatest period end (the most recently created one on ties).
func Latest(payments []Payment) *Payment {
	var latest *Payment
	for i := range payments {
		p := &payments[i]
		if latest == nil || p.PeriodEnd.After(latest.PeriodEnd) ||
			(p.PeriodEnd.Equal(latest.PeriodEnd) && p.CreatedAt.After(latest.CreatedAt)) {
			latest = p
		}
	}
	return latest
}

// Period is a billing period, both ends included.
type Period struct {
	Start core.Date `json:"period_start"`
	End   core.Date `json:"period_end"`
}

// NextPeriod proposes the period following `latest` (or starting at joinDate): one calendar month, no gap.
func NextPeriod(latest *Payment, joinDate core.Date) Period {
	start := joinDate
	if latest != nil {
		start = latest.PeriodEnd.AddDays(1)
	}
	return Period{Start: start, End: start.AddMonths(1).AddDays(-1)}
}

type NewPayment struct {
	StudentID   string          `json:"student_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"gte=0"`
	PeriodStart core.Date       `json:"period_start" validate:"required"`
	PeriodEnd   core.Date       `json:"period_end" validate:"required"`
	PaidDate    core.Date       `json:"paid_date" validate:"required"`
	Notes       string          `json:"notes" validate:"max=1000"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.StudentID = core.CleanString(np.StudentID)
	np.Notes = core.CleanString(np.Notes)
	if err := validate.Struct(np); err != nil {
		return err
	}
	return np.validatePeriod()
}

func (np *NewPayment) validatePeriod() error {
	if np.Amount.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "must be 0 or greater"})
	}
	if np.PeriodEnd.Before(np.PeriodStart) {
		return core.NewValidationError(nil, core.FieldError{Field: "period_end", Error: "must not be before period_start"})
	}
	return nil
}

// UpdatePayment is a partial update: nil fields are left untouched.
type UpdatePayment struct {
	Amount *decimal.Decimal `json:"amount" validate:"omitempty,gte=0"`
	Status *Status          `json:"status" validate:"omitempty,oneof=paid pending late left"`
	Notes  *string          `json:"notes" validate:"omitempty,max=1000"`
}

func (up *UpdatePayment) IsEmpty() bool {
	return up.Amount == nil && up.Status == nil && up.Notes == nil
}

func (up *UpdatePayment) Validate(validate *validator.Validate) error {
	if up.IsEmpty() {
		return ErrNoUpdateFields
	}
	if up.Notes != nil {
		notes := core.CleanString(*up.Notes)
		up.Notes = &notes
	}
	return validate.Struct(up)
}

type QueryFilter struct {
	StudentID string    `query:"student_id"`
	Status    Status    `query:"status"`
	PaidFrom  core.Date `query:"start_date"`
	PaidTo    core.Date `query:"end_date"`
}

func (f *QueryFilter) Clean() {
	f.StudentID = core.CleanString(f.StudentID)
	f.Status = Status(core.CleanString(string(f.Status), true /* lower */))
	if !f.Status.IsValid() {
		f.Status = ""
	}
}
