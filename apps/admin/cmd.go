package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/quizmaster/backend/core/export"
	"github.com/quizmaster/backend/core/jobs"
	"github.com/quizmaster/backend/core/reminder"
	"github.com/quizmaster/backend/core/report"
	"github.com/quizmaster/backend/storage/database"
)

var (
	gooseRunFunc = database.Migrate // mockable

	errHelp      = errors.New("help provided")
	errJobFailed = errors.New("job failed")
)

type (
	services struct {
		runner    *jobs.Runner
		reminders *reminder.Service
		reports   *report.Service
		exports   *export.Service
	}

	commandLine struct {
		out io.Writer

		// opened on demand so that `migrate` never needs the job services and vice versa
		openDB       func(ctx context.Context) (*sql.DB, error)
		loadServices func() (*services, error)
	}
)

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]             - run a goose migration command (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  remind                             - send the daily reminders due this hour")
	_, _ = fmt.Fprintln(cli.out, "  report                             - send last month's activity reports")
	_, _ = fmt.Fprintln(cli.out, "  export users|quizzes|attempts [-user ID] - write a CSV export")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])
	case "remind":
		return cli.runJob(ctx, "daily_reminders", func(svcs *services) jobs.Func {
			return func(ctx context.Context) (interface{}, error) {
				return svcs.reminders.SendDailyReminders(ctx)
			}
		})
	case "report":
		return cli.runJob(ctx, "monthly_reports", func(svcs *services) jobs.Func {
			return func(ctx context.Context) (interface{}, error) {
				return svcs.reports.SendMonthlyReports(ctx)
			}
		})
	case "export":
		return cli.export(ctx, args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) export(ctx context.Context, args []string) error {
	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}

	switch args[0] {
	case "users":
		return cli.runJob(ctx, "users_export", func(svcs *services) jobs.Func {
			return func(ctx context.Context) (interface{}, error) {
				return svcs.exports.ExportUsers(ctx)
			}
		})
	case "quizzes":
		return cli.runJob(ctx, "quizzes_export", func(svcs *services) jobs.Func {
			return func(ctx context.Context) (interface{}, error) {
				return svcs.exports.ExportQuizzes(ctx)
			}
		})
	case "attempts":
		attemptsCmd := flag.NewFlagSet("export attempts", flag.ContinueOnError)
		attemptsCmd.SetOutput(cli.out)
		userID := attemptsCmd.Int("user", 0, "ID of the user whose attempts are exported")
		if err := attemptsCmd.Parse(args[1:]); err != nil {
			return errHelp
		}
		if *userID <= 0 {
			attemptsCmd.Usage()
			return errHelp
		}
		return cli.runJob(ctx, "user_attempts_export", func(svcs *services) jobs.Func {
			return func(ctx context.Context) (interface{}, error) {
				return svcs.exports.ExportUserAttempts(ctx, *userID)
			}
		})
	default:
		cli.printUsage()
		return errHelp
	}
}

// runJob runs the job synchronously and prints its record.
func (cli *commandLine) runJob(ctx context.Context, kind string, build func(*services) jobs.Func) error {
	svcs, err := cli.loadServices()
	if err != nil {
		return err
	}

	job := svcs.runner.Run(ctx, kind, build(svcs))
	out, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cli.out, string(out))

	if job.State == jobs.StateFailed {
		return fmt.Errorf("%w: %s", errJobFailed, job.Error)
	}
	return nil
}
