package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/maktaba/core"
)

type Status string

const (
	StatusActive Status = "active"
	StatusLeft   Status = "left"
)

// Student is the aggregation root: allocations, payments and overrides reference it. Never deleted.
type Student struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email"`
	JoinDate   core.Date  `json:"join_date"`
	Status     Status     `json:"status"`
	LeftDate   *core.Date `json:"left_date"` // set iff Status == StatusLeft
	LeftReason string     `json:"left_reason"`
	CreatedAt  time.Time  `json:"created_at"` // UTC
	UpdatedAt  time.Time  `json:"updated_at"` // UTC
}

func (s Student) IsActive() bool {
	return s.Status == StatusActive
}

type NewStudent struct {
	Name     string    `json:"name" validate:"required,notblank,max=255"`
	Phone    string    `json:"phone" validate:"required,notblank,max=20"`
	Email    string    `json:"email" validate:"omitempty,email,max=255"`
	JoinDate core.Date `json:"join_date" validate:"required"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Phone = core.CleanString(ns.Phone)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	return validate.Struct(ns)
}

// UpdateStudent is a partial update: nil fields are left untouched.
type UpdateStudent struct {
	Name  *string `json:"name" validate:"omitempty,notblank,max=255"`
	Phone *string `json:"phone" validate:"omitempty,notblank,max=20"`
	Email *string `json:"email" validate:"omitempty,email,max=255"`
}

func (us *UpdateStudent) IsEmpty() bool {
	return us.Name == nil && us.Phone == nil && us.Email == nil
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	if us.IsEmpty() {
		return ErrNoUpdateFields
	}
	clean := func(s *string, lower bool) {
		if s != nil {
			*s = core.CleanString(*s, lower)
		}
	}
	clean(us.Name, false)
	clean(us.Phone, false)
	clean(us.Email, true)
	return validate.Struct(us)
}

type LeaveRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type QueryFilter struct {
	Search string `query:"search"`
	Status Status `query:"status"`
}

func (f *QueryFilter) Clean() {
	f.Search = core.CleanString(f.Search, true /* lower */)
	f.Status = Status(core.CleanString(string(f.Status), true))
	if f.Status != StatusActive && f.Status != StatusLeft {
		f.Status = ""
	}
}
