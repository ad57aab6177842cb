package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/expiry"
	"github.com/trezcool/maktaba/core/seat"
	logsvc "github.com/trezcool/maktaba/services/logger"
	"github.com/trezcool/maktaba/storage/database"
	sqlxrepos "github.com/trezcool/maktaba/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	rbLogger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	rbLogger.Enable(!conf.Debug)
	var logger core.Logger = rbLogger

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// set up services
	students := sqlxrepos.NewStudentRepository(db)
	seats := sqlxrepos.NewSeatRepository(db)
	payments := sqlxrepos.NewPaymentRepository(db)
	engine := expiry.NewEngine(db, sqlxrepos.NewExpiryRepository(db), students, seats, payments, nil, logger)

	// start CLI
	cli := commandLine{
		db:      db,
		seatSvc: seat.NewService(db, seats, students, conf.Today),
		engine:  engine,
		today:   conf.Today,
		out:     os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
