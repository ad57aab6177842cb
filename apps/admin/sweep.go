package main

import (
	"context"
	"fmt"

	"github.com/trezcool/maktaba/core"
)

// sweep runs the expiration sweep as of `today`; a dry run only lists the candidates.
func (cli *commandLine) sweep(today core.Date, dryRun bool) error {
	ctx := context.Background()

	if dryRun {
		candidates, err := cli.engine.Preview(ctx, today)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cli.out, "%s: %d student(s) would be expired\n", today, len(candidates))
		for _, c := range candidates {
			_, _ = fmt.Fprintf(cli.out, "  %s (%s), last period ended %s\n", c.StudentName, c.StudentID, c.PeriodEnd)
		}
		return nil
	}

	res, err := cli.engine.Run(ctx, today)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%s: %d student(s) expired\n", res.Date, res.ProcessedCount)
	for _, c := range res.Students {
		_, _ = fmt.Fprintf(cli.out, "  %s (%s), last period ended %s\n", c.StudentName, c.StudentID, c.PeriodEnd)
	}
	return nil
}
