package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/override"
	"github.com/trezcool/maktaba/core/payment"
	"github.com/trezcool/maktaba/core/seat"
	"github.com/trezcool/maktaba/core/student"
	"github.com/trezcool/maktaba/storage/database"
)

var (
	ticks     int64
	baseStamp = time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)
)

// PrepareDB opens a migrated in-memory sqlite database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// Clock always returns `today`.
func Clock(today core.Date) core.Clock {
	return func() core.Date { return today }
}

// Stamp returns strictly increasing timestamps, so that "newest first" orderings are deterministic.
func Stamp() time.Time {
	return baseStamp.Add(time.Duration(atomic.AddInt64(&ticks, 1)) * time.Second)
}

func CreateStudent(t *testing.T, repo student.Repository, name string, joinDate core.Date) student.Student {
	t.Helper()
	tstamp := Stamp()
	std, err := repo.CreateStudent(context.Background(), student.Student{
		Name:      name,
		Phone:     "0700000000",
		JoinDate:  joinDate,
		Status:    student.StatusActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return std
}

// CreateSeats creates seats numbered 1..count, returned ordered by number.
func CreateSeats(t *testing.T, repo seat.Repository, count int) []seat.Seat {
	t.Helper()
	ctx := context.Background()
	seats := make([]seat.Seat, 0, count)
	for n := 1; n <= count; n++ {
		seats = append(seats, seat.Seat{Number: n, CreatedAt: Stamp()})
	}
	if err := repo.CreateSeats(ctx, seats); err != nil {
		t.Fatalf("CreateSeats() failed: %v", err)
	}
	seats, err := repo.QuerySeats(ctx)
	if err != nil {
		t.Fatalf("CreateSeats() failed: %v", err)
	}
	return seats
}

func Allocate(t *testing.T, repo seat.Repository, seatID, studentID string, shift seat.Shift, start core.Date) seat.Allocation {
	t.Helper()
	tstamp := Stamp()
	alloc, err := repo.CreateAllocation(context.Background(), seat.Allocation{
		SeatID:    seatID,
		StudentID: studentID,
		Shift:     shift,
		StartDate: start,
		IsActive:  true,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}
	return alloc
}

// CreatePayment stores a payment, its status derived like the payment service does.
func CreatePayment(
	t *testing.T,
	repo payment.Repository,
	studentID, amount string,
	periodStart, periodEnd, paidDate core.Date,
) payment.Payment {
	t.Helper()
	tstamp := Stamp()
	pmt, err := repo.CreatePayment(context.Background(), payment.Payment{
		StudentID:   studentID,
		Amount:      decimal.RequireFromString(amount),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		PaidDate:    paidDate,
		Status:      payment.StatusAtRecording(periodStart, paidDate),
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("CreatePayment() failed: %v", err)
	}
	return pmt
}

func CreateOverride(
	t *testing.T,
	repo override.Repository,
	studentID, reason string,
	originalDueDate, extendedDueDate core.Date,
) override.Override {
	t.Helper()
	ovr, err := repo.CreateOverride(context.Background(), override.Override{
		StudentID:       studentID,
		Reason:          reason,
		OriginalDueDate: originalDueDate,
		ExtendedDueDate: extendedDueDate,
		CreatedAt:       Stamp(),
	})
	if err != nil {
		t.Fatalf("CreateOverride() failed: %v", err)
	}
	return ovr
}

type LogEntry struct {
	Level   string
	Message string
}

// Logger records log entries instead of printing them.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Message: msg})
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("debug", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("info", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("warn", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("error", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("fatal", msg) }

// Messages returns the messages logged at `level`, in order.
func (l *Logger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := make([]string, 0)
	for _, e := range l.entries {
		if e.Level == level {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}
