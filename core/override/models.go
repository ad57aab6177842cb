package override

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/maktaba/core"
)

// Override extends a student's due date; while active it suppresses auto-expiration.
type Override struct {
	ID              string    `json:"id"`
	StudentID       string    `json:"student_id"`
	Reason          string    `json:"reason"`
	OriginalDueDate core.Date `json:"original_due_date"`
	ExtendedDueDate core.Date `json:"extended_due_date"`
	CreatedAt       time.Time `json:"created_at"` // UTC

	// joined
	StudentName  string `json:"student_name"`
	StudentPhone string `json:"student_phone"`
}

func (o Override) IsActive(today core.Date) bool {
	return !o.ExtendedDueDate.Before(today)
}

// ActiveFor returns the student's most recent active override, nil when there is none.
func ActiveFor(overrides []Override, studentID string, today core.Date) *Override {
	var active *Override
	for i := range overrides {
		o := &overrides[i]
		if o.StudentID != studentID || !o.IsActive(today) {
			continue
		}
		if active == nil || o.CreatedAt.After(active.CreatedAt) {
			active = o
		}
	}
	return active
}

type NewOverride struct {
	StudentID       string    `json:"student_id" validate:"required"`
	Reason          string    `json:"reason" validate:"required,notblank,max=1000"`
	OriginalDueDate core.Date `json:"original_due_date" validate:"required"`
	ExtendedDueDate core.Date `json:"extended_due_date" validate:"required"`
}

func (no *NewOverride) Validate(validate *validator.Validate) error {
	no.StudentID = core.CleanString(no.StudentID)
	no.Reason = core.CleanString(no.Reason)
	return validate.Struct(no)
}

type QueryFilter struct {
	ActiveOnly bool   `query:"active"`
	StudentID  string `query:"student_id"`
}
