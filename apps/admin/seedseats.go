package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) seedSeats(count int) error {
	seats, err := cli.seatSvc.SeedSeats(context.Background(), count)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d seat(s) created\n", len(seats))
	return nil
}
