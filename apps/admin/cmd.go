package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/expiry"
	"github.com/trezcool/maktaba/core/seat"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db      *sqlx.DB
	seatSvc *seat.Service
	engine  *expiry.Engine
	today   core.Clock
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  sweep [-date YYYY-MM-DD] [-dry-run] - expire students overdue beyond the grace period")
	_, _ = fmt.Fprintln(cli.out, "  seedseats [-count 50] - create the library's seats")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	sweepCmd := flag.NewFlagSet("sweep", flag.ContinueOnError)
	sweepCmd.SetOutput(cli.out)
	sweepDate := sweepCmd.String("date", "", "The day to sweep as of (YYYY-MM-DD). Defaults to today.")
	sweepDryRun := sweepCmd.Bool("dry-run", false, "Only list the students who would be expired.")

	seedSeatsCmd := flag.NewFlagSet("seedseats", flag.ContinueOnError)
	seedSeatsCmd.SetOutput(cli.out)
	seedSeatsCount := seedSeatsCmd.Int("count", 50, "The number of seats to create.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "sweep":
		if err := sweepCmd.Parse(args[2:]); err != nil {
			return err
		}
		today := cli.today()
		if *sweepDate != "" {
			d, err := core.ParseDate(*sweepDate)
			if err != nil {
				sweepCmd.Usage()
				return err
			}
			today = d
		}
		return cli.sweep(today, *sweepDryRun)
	case "seedseats":
		if err := seedSeatsCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.seedSeats(*seedSeatsCount)
	default:
		cli.printUsage()
		return errHelp
	}
}
