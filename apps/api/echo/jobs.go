package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/quizmaster/backend/core/jobs"
)

// Job kinds
const (
	KindDailyReminders = "daily_reminders"
	KindMonthlyReports = "monthly_reports"
	KindUsersExport    = "users_export"
	KindQuizzesExport  = "quizzes_export"
	KindAttemptsExport = "user_attempts_export"
)

type jobAPI struct {
	deps *Deps
}

func registerJobAPI(g *echo.Group, deps *Deps) {
	api := jobAPI{deps: deps}

	jg := g.Group("/jobs")
	jg.POST("/reminders", api.sendReminders)
	jg.POST("/reports", api.sendReports)
	jg.GET("/:id", api.retrieve)
}

// submit queues fn and answers 202 with the PENDING job record.
func submit(ctx echo.Context, runner *jobs.Runner, kind string, fn jobs.Func) error {
	job, err := runner.Submit(ctx.Request().Context(), kind, fn)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusAccepted, job)
}

func (api *jobAPI) sendReminders(ctx echo.Context) error {
	return submit(ctx, api.deps.Runner, KindDailyReminders, func(ctx context.Context) (interface{}, error) {
		return api.deps.Reminders.SendDailyReminders(ctx)
	})
}

func (api *jobAPI) sendReports(ctx echo.Context) error {
	return submit(ctx, api.deps.Runner, KindMonthlyReports, func(ctx context.Context) (interface{}, error) {
		return api.deps.Reports.SendMonthlyReports(ctx)
	})
}

func (api *jobAPI) retrieve(ctx echo.Context) error {
	job, err := api.deps.Runner.Get(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, job)
}
