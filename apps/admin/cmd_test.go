package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/expiry"
	"github.com/trezcool/maktaba/core/seat"
	"github.com/trezcool/maktaba/core/student"
	sqlxrepos "github.com/trezcool/maktaba/storage/database/sqlx"
	"github.com/trezcool/maktaba/tests"
)

var today = core.MustParseDate("2024-02-20")

type fixture struct {
	cli      *commandLine
	out      *bytes.Buffer
	students *sqlxrepos.StudentRepository
	seats    *sqlxrepos.SeatRepository
	payments *sqlxrepos.PaymentRepository
}

func setup(t *testing.T) *fixture {
	// set up DB & repos
	db := testutil.PrepareDB(t)
	f := &fixture{
		out:      new(bytes.Buffer),
		students: sqlxrepos.NewStudentRepository(db),
		seats:    sqlxrepos.NewSeatRepository(db),
		payments: sqlxrepos.NewPaymentRepository(db),
	}
	engine := expiry.NewEngine(db, sqlxrepos.NewExpiryRepository(db), f.students, f.seats, f.payments, nil, &testutil.Logger{})

	// start CLI
	f.cli = &commandLine{
		db:      db,
		seatSvc: seat.NewService(db, f.seats, f.students, testutil.Clock(today)),
		engine:  engine,
		today:   testutil.Clock(today),
		out:     f.out,
	}
	return f
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_run(t *testing.T) {
	f := setup(t)

	for _, args := range [][]string{{"admin"}, {"admin", "lol"}} {
		f.out.Reset()
		err := f.cli.run(args)
		assert.Equal(t, errHelp, err)
		assert.Contains(t, f.out.String(), "Usage:")
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	gooseRunFunc = func(ctx context.Context, command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "add_student_email", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := f.cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_sweep(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	seats := testutil.CreateSeats(t, f.seats, 2)
	asha := testutil.CreateStudent(t, f.students, "Asha", core.MustParseDate("2024-01-01"))
	kiran := testutil.CreateStudent(t, f.students, "Kiran", core.MustParseDate("2024-01-01"))
	testutil.Allocate(t, f.seats, seats[0].ID, asha.ID, seat.ShiftMorning, asha.JoinDate)
	testutil.Allocate(t, f.seats, seats[1].ID, kiran.ID, seat.ShiftMorning, kiran.JoinDate)
	testutil.CreatePayment(t, f.payments, asha.ID, "800", core.MustParseDate("2024-01-01"), core.MustParseDate("2024-01-31"), core.MustParseDate("2024-01-01"))
	testutil.CreatePayment(t, f.payments, kiran.ID, "800", core.MustParseDate("2024-02-01"), core.MustParseDate("2024-02-29"), core.MustParseDate("2024-02-01"))

	wantLine := fmt.Sprintf("  Asha (%s), last period ended 2024-01-31\n", asha.ID)

	tests := []struct {
		cliTest
		wantOut string
	}{
		{cliTest: cliTest{name: "bad date", args: []string{"sweep", "-date", "20/02/2024"}, wantErrStr: `invalid date "20/02/2024", expected YYYY-MM-DD`}},
		{cliTest: cliTest{name: "unknown flag", args: []string{"sweep", "-lol"}, wantErrStr: "flag provided but not defined: -lol"}},
		{
			cliTest: cliTest{name: "before the grace period ends", args: []string{"sweep", "-date", "2024-02-15", "-dry-run"}},
			wantOut: "2024-02-15: 0 student(s) would be expired\n",
		},
		{
			cliTest: cliTest{name: "dry run", args: []string{"sweep", "-dry-run"}},
			wantOut: "2024-02-20: 1 student(s) would be expired\n" + wantLine,
		},
		{
			cliTest: cliTest{name: "run", args: []string{"sweep"}},
			wantOut: "2024-02-20: 1 student(s) expired\n" + wantLine,
		},
		{
			cliTest: cliTest{name: "run again", args: []string{"sweep", "-date", "2024-02-20"}},
			wantOut: "2024-02-20: 0 student(s) expired\n",
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			f.out.Reset()
			err := f.cli.run(args)
			if tt.wantErrStr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOut, f.out.String())
		})
	}

	std, err := f.students.GetStudent(ctx, asha.ID)
	require.NoError(t, err)
	assert.Equal(t, student.StatusLeft, std.Status)

	std, err = f.students.GetStudent(ctx, kiran.ID)
	require.NoError(t, err)
	assert.Equal(t, student.StatusActive, std.Status)
}

func Test_commandLine_seedSeats(t *testing.T) {
	f := setup(t)

	tests := []cliTest{
		{name: "zero count", args: []string{"seedseats", "-count", "0"}, wantErrStr: "count: must be greater than 0"},
		{name: "seed", args: []string{"seedseats", "-count", "5"}, extra: "5 seat(s) created\n"},
		{name: "already seeded", args: []string{"seedseats"}, wantErr: seat.ErrSeatsAlreadySeeded},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			f.out.Reset()
			err := f.cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.extra, f.out.String())
			}
		})
	}

	seats, err := f.seats.QuerySeats(context.Background())
	require.NoError(t, err)
	require.Len(t, seats, 5)
	assert.Equal(t, 1, seats[0].Number)
	assert.Equal(t, 5, seats[4].Number)
}
