package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/pkg/errors"

	dig_container "github.com/quizmaster/backend/apps/api/di/dig"
	"github.com/quizmaster/backend/core"
	"github.com/quizmaster/backend/core/export"
	"github.com/quizmaster/backend/core/jobs"
	"github.com/quizmaster/backend/core/reminder"
	"github.com/quizmaster/backend/core/report"
	"github.com/quizmaster/backend/storage/database"
)

func main() {
	logger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	cli := commandLine{
		out: os.Stdout,
		openDB: func(ctx context.Context) (*sql.DB, error) {
			conf, err := core.NewConfig()
			if err != nil {
				return nil, err
			}
			if err = database.CreateIfNotExist(ctx, conf); err != nil {
				return nil, err
			}
			db, err := database.Open(ctx, conf)
			if err != nil {
				return nil, err
			}
			return db.DB, nil
		},
		loadServices: func() (*services, error) {
			var svcs *services
			err := dig_container.New().Invoke(func(
				runner *jobs.Runner,
				reminders *reminder.Service,
				reports *report.Service,
				exports *export.Service,
			) {
				svcs = &services{runner: runner, reminders: reminders, reports: reports, exports: exports}
			})
			if err != nil {
				return nil, errors.Wrap(err, "setting up services")
			}
			return svcs, nil
		},
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
