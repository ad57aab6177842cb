// Package expiry implements the grace period expiration engine: the daily sweep that removes students
// who stayed overdue beyond the grace period and frees their seats.
package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/override"
	"github.com/trezcool/maktaba/core/payment"
	"github.com/trezcool/maktaba/core/student"
)

const (
	LeftReason   = "Left library due to non-payment (auto-removed after 15-day grace period)"
	ClosedReason = "Auto-closed: Non-payment after grace period"
)

// State of an active student with regard to payments.
type State string

const (
	StateCurrent State = "current"
	StateInGrace State = "in-grace"
	StateExpired State = "expired"
)

// Classify computes a student's state. activeOverride must be an override active as of today (or nil).
// A student without any payment is current: only overdue payment periods ever expire.
func Classify(latest *payment.Payment, activeOverride *override.Override, today core.Date) State {
	if latest == nil || !latest.PeriodEnd.Before(today) {
		return StateCurrent
	}
	if today.DaysSince(latest.PeriodEnd) <= payment.GracePeriodDays || activeOverride != nil {
		return StateInGrace
	}
	return StateExpired
}

// Candidate is a student selected for expiration.
type Candidate struct {
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	PaymentID   string    `json:"payment_id"`
	PeriodEnd   core.Date `json:"period_end"`
}

type Result struct {
	Date           core.Date   `json:"date"`
	ProcessedCount int         `json:"processed_count"`
	Students       []Candidate `json:"students"`
}

type (
	Repository interface {
		// QueryExpirationCandidates selects active students holding an active allocation, whose latest payment
		// period ended before `cutoff` and who have no override extended on or after `today`.
		// Students without payments are never selected. One row per student.
		QueryExpirationCandidates(ctx context.Context, cutoff, today core.Date, exec ...core.DBExecutor) ([]Candidate, error)
	}

	StudentMarker interface {
		MarkLeft(ctx context.Context, id string, leftDate core.Date, reason string, exec ...core.DBExecutor) error
	}

	PaymentUpdater interface {
		UpdatePayment(ctx context.Context, id string, up payment.UpdatePayment, updatedAt time.Time, exec ...core.DBExecutor) error
	}

	Notifier interface {
		Notify(res Result)
	}

	Engine struct {
		db          core.DB
		repo        Repository
		students    StudentMarker
		allocations student.AllocationCloser
		payments    PaymentUpdater
		notifier    Notifier // optional
		logger      core.Logger
	}
)

func NewEngine(
	db core.DB,
	repo Repository,
	students StudentMarker,
	allocations student.AllocationCloser,
	payments PaymentUpdater,
	notifier Notifier,
	logger core.Logger,
) *Engine {
	return &Engine{
		db:          db,
		repo:        repo,
		students:    students,
		allocations: allocations,
		payments:    payments,
		notifier:    notifier,
		logger:      logger,
	}
}

// Preview returns who would be expired on `today`, without writing anything.
func (e *Engine) Preview(ctx context.Context, today core.Date) ([]Candidate, error) {
	candidates, err := e.repo.QueryExpirationCandidates(ctx, cutoffFor(today), today)
	if err != nil {
		return nil, errors.Wrap(err, "querying expiration candidates")
	}
	return candidates, nil
}

// Run expires every candidate as of `today` in a single transaction: all or nothing.
func (e *Engine) Run(ctx context.Context, today core.Date) (Result, error) {
	res := Result{Date: today, Students: []Candidate{}}

	err := core.RunInTx(ctx, e.db, func(tx core.DBExecutor) error {
		candidates, err := e.repo.QueryExpirationCandidates(ctx, cutoffFor(today), today, tx)
		if err != nil {
			return errors.Wrap(err, "querying expiration candidates")
		}

		leftStatus := payment.StatusLeft
		now := core.NowFunc().UTC()
		for _, c := range candidates {
			if err = e.students.MarkLeft(ctx, c.StudentID, today, LeftReason, tx); err != nil {
				return errors.Wrapf(err, "marking student %s as left", c.StudentID)
			}
			if _, err = e.allocations.CloseStudentAllocations(ctx, c.StudentID, today, ClosedReason, tx); err != nil {
				return errors.Wrapf(err, "closing allocations of student %s", c.StudentID)
			}
			if c.PaymentID != "" {
				up := payment.UpdatePayment{Status: &leftStatus}
				if err = e.payments.UpdatePayment(ctx, c.PaymentID, up, now, tx); err != nil {
					return errors.Wrapf(err, "updating payment %s", c.PaymentID)
				}
			}
		}

		res.Students = candidates
		res.ProcessedCount = len(candidates)
		return nil
	})
	if err != nil {
		return Result{Date: today, Students: []Candidate{}}, err
	}

	for _, c := range res.Students {
		e.logger.Info(fmt.Sprintf("Processed expiration for student: %s (%s)", c.StudentName, c.StudentID))
	}
	if res.ProcessedCount > 0 && e.notifier != nil {
		e.notifier.Notify(res)
	}
	return res, nil
}

func cutoffFor(today core.Date) core.Date {
	return today.AddDays(-payment.GracePeriodDays)
}
